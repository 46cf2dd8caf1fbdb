// Package api implements the HTTP REST API and WebSocket server for Synexa.
//
// This package provides:
//   - REST endpoints for device discovery, device connection, routine CRUD,
//     routine execution, and run history
//   - WebSocket hub for real-time routine and discovery events
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Identity
//
// The bearer token's subject is the only source of the caller's user ID.
// Handlers read it from the request context and pass it explicitly to the
// automation engine; routines of other users answer 404.
//
// # Graceful Degradation
//
// The server operates without MQTT. Reads and WebSocket connections work;
// device commands fail as individual routine steps.
package api
