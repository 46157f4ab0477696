// Package roster loads enrollment CSV files and validates each row against a
// per-client schema.
//
// Schemas are data: an ordered table of field rules (kind, required, empty
// handling, validator tag) held in a Registry that is resolved once at startup.
// The Loader streams a file, lower-cases its header, and partitions rows into
// valid Records and Failures that keep the offending row and its messages. A
// malformed file fails the whole load with a services.ErrLoad error.
package roster
