// Package port probes host port availability before a launch.
//
// The probe is advisory. The container runtime remains the authority on
// whether a port can be published; the CLI only warns ahead of time so a
// "port is already allocated" failure is not a surprise.
package port
