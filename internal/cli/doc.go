// Package cli wires together the Cobra command tree for the prrisk binary.
//
// It defines the root command and the analyze, local, config, cache and version
// subcommands, loads configuration, and maps pipeline errors to
// deterministic exit codes for CI gating.
package cli
