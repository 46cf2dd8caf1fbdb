// Package auth turns bearer tokens into an explicit user identity.
//
// Access tokens are HS256 JWTs carrying the user ID as subject. They are
// validated by signature and expiry only, with no database lookup. The
// resulting user ID is passed to routine execution as part of the
// execution context; nothing downstream reads identity from ambient state.
//
// Issuing tokens to end users (login, refresh, password storage) belongs
// to the account service. GenerateAccessToken exists for the CLI and
// tests.
package auth
