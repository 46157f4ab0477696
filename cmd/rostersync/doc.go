// Package main hosts the rostersync CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon, pushes a single roster file
// through the pipeline on demand, inspects the batch and job ledger, checks
// the environment, and scaffolds configuration. Configuration resolution is
// centralized here so subcommands can focus on output.
//
// Keep this package lean: add functionality to the internal packages first,
// then surface it through dedicated commands or flags here.
package main
