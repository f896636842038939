// Package server provides the HTTP server for the link sharing service.
//
// the server is configured through environment variables
// (see internal/config/config.go for details)
//
// Routes served:
//   - the link protocol endpoints (POST /manifests/{linkID},
//     GET /content/{linkID}/{artifact}) that minted links resolve to
//   - common infrastructure handlers (health, readiness, version)
//   - the admin API for creating and revoking links (dev/test only)
//
// handlers are in internal/server/handlers, middleware in
// internal/server/middleware
package server
