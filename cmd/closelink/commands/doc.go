// Package commands defines the closelink CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - profile init   Create the local profile and device identity
//   - profile show   Print the decrypted local profile
//   - discover       Broadcast and scan for nearby compatible people
//   - chat           Open an end-to-end encrypted session with a peer
//
// # Implementation
//
// The root command builds a dependency graph (encrypted store, radio
// backend, logger) before any subcommand runs, so handlers share one
// app context.
package commands
