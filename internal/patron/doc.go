// Package patron defines the identity model held by the upstream
// system-of-record and the Client capability used to read and write it.
//
// Adapters live in subpackages: ilsws talks to Symphony Web Services over
// HTTP and memory keeps identities in process for tests and dry runs.
package patron
