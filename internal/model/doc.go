// Package model defines the domain types and value objects for the
// neo4japanese CLI.
//
// The central type is LaunchSpec: the ordered container name, image,
// port mappings, volume mounts and environment assignments that make up
// one detached container creation request. Launch backends consume it
// unchanged, so the command they issue is fully determined by the LaunchSpec.
//
// The package also defines exit codes (ExitCode), a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling,
// and RuntimeExitError, which forwards the container runtime's own exit
// status untouched.
package model
