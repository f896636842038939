// shl package implements the lifecycle of shareable encrypted links:
// creation, manifest serving, content serving and revocation.
//
// **links**
// A link is a self-contained capability: the link string embeds the manifest
// URL and the symmetric decryption key, so possession of the link is the
// access credential. The server stores only ciphertext and policy metadata -
// it never sees the key after creation and never decrypts anything.
// link.go implements the shlink:/ wire format.
//
// **creation**
// The Creator encrypts the payload and attachments, persists the artifacts
// through the storage package, writes the manifest and access metadata, and
// mints the final link string (plus a QR code when a renderer is wired in).
//
// **serving**
// The Handler implements the two retrieval operations: a policy-checked
// manifest request (passcode, expiry, access ceiling) and a verbatim content
// request for individual encrypted artifacts. It is stateless - every request
// re-reads the durable metadata, and the access counter is advanced with a
// conditional write so ceilings hold under concurrent requests.
//
// Handlers return a transport-neutral Response (status, headers, body);
// the HTTP layer in internal/server copies it onto the wire.
//
// **error handling**
// crypto and storage have their own error types, but everything is mapped to
// shl error codes and returned to the client in a standard error body.
// Use MapErrorToResponse() to convert an error into a Response.
//
// **testing**
// The lifecycle is tested end-2-end over HTTP - see test/integration for
// details. Package-level tests cover the policy and format edge cases.
package shl
