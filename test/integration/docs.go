// Package integration contains end-to-end tests for the link server.
//
// These tests verify the server handles the link protocol correctly (manifest
// retrieval, access policy enforcement, content serving, revocation) over real
// HTTP. The server is started in-process with the memory storage backend, and
// the tests act as a link recipient would: decode the link, request the
// manifest, fetch the ciphertext and decrypt it client-side.
//
// These tests assume the crypto and shl packages are working correctly (tested
// separately). If bugs are introduced in lower-level packages, there will be
// cascading failures here - fix the low-level problems first.
package integration
