// Package cmd implements the command-line interface for liveQ. It provides
// a hierarchical command structure with operations for running a demo
// operation server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - query: Commands for executing, mutating and watching named operations
//   - serve: Commands for starting and configuring a liveQ operation server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See liveq -help for a list of all commands.
package cmd
