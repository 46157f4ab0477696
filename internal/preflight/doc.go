// Package preflight provides readiness checks for the filesystem paths and
// upstream service rostersync depends on.
//
// The daemon runs RunAll at startup and refuses to start when a check fails.
// The CLI "rostersync check" command prints the same results.
package preflight
