// Package mapping turns validated roster records into create and overlay
// payloads for the system-of-record.
//
// CreatePayload is pure. Overlay works on a deep copy of the existing
// identity: it refreshes the address block while keeping PHONE and EMAIL
// entries the new block does not replace, maintains the ACTIVEID history,
// prunes null entries and refuses to produce a payload whose custom
// information exceeds MaxCustomInfoLength.
package mapping
