// Package handlers provides the HTTP handlers for the link server.
//
// The link protocol endpoints (manifests, content) are thin wrappers around
// the shl package, which owns the access policy decisions - handlers here
// only decode the request and copy the domain response onto the wire.
//
// Infrastructure handlers (health, readiness, version) follow the usual
// conventions for load balancers and deploy tooling.
//
// links_admin.go is for development and testing only - in production the
// links would be created by the clinical system behind its own
// authentication, and this surface would not be exposed.
package handlers
