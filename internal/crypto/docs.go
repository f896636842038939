// crypto package provides cryptographic functions for the SHL demo app.
//
// these are low level functions - for standard usage (creating links, serving manifests etc) you will not need to call these functions directly
// See the shl package for high level functions.
package crypto
