package auth

import "errors"

// Domain errors for the auth package.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
	ErrMissingToken = errors.New("missing bearer token")
)
