package model

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// PortMapping publishes a single container port on the host.
//
// The launcher maps the database's HTTP port (7474) and its Bolt binary
// protocol port (7687) one-to-one by default, but the host side may be
// changed through a launch profile.
type PortMapping struct {
	// HostPort is the port number on the host machine (1-65535).
	HostPort int `json:"hostPort"`

	// ContainerPort is the port number inside the container (1-65535).
	ContainerPort int `json:"containerPort"`

	// Protocol is the network protocol for the port mapping.
	// Defaults to "tcp". Also supports "udp".
	Protocol string `json:"protocol"`

	// Label is an optional human-readable description for this port
	// (e.g., "http", "bolt"). It never reaches the container runtime.
	Label string `json:"label,omitempty"`
}

// Validate checks whether the PortMapping has valid field values.
// It verifies port number ranges and protocol values.
func (p *PortMapping) Validate() error {
	if p.ContainerPort < 1 || p.ContainerPort > 65535 {
		return fmt.Errorf("port mapping: container port %d out of range (1-65535)", p.ContainerPort)
	}
	if p.HostPort < 1 || p.HostPort > 65535 {
		return fmt.Errorf("port mapping: host port %d out of range (1-65535)", p.HostPort)
	}
	if p.Protocol == "" {
		p.Protocol = "tcp"
	}
	if p.Protocol != "tcp" && p.Protocol != "udp" {
		return fmt.Errorf("port mapping: invalid protocol %q (valid: tcp, udp)", p.Protocol)
	}
	return nil
}

// String returns the mapping in the container runtime's publish syntax.
// TCP mappings are written without a protocol suffix ("7474:7474") so that
// the generated command matches what a user would type by hand.
func (p PortMapping) String() string {
	if p.Protocol == "udp" {
		return fmt.Sprintf("%d:%d/udp", p.HostPort, p.ContainerPort)
	}
	return fmt.Sprintf("%d:%d", p.HostPort, p.ContainerPort)
}

// VolumeMount binds a host directory into the container.
type VolumeMount struct {
	// HostPath is the absolute path of the directory on the host.
	HostPath string `json:"hostPath"`

	// ContainerPath is the absolute path inside the container.
	ContainerPath string `json:"containerPath"`

	// Label names the purpose of the mount ("data", "logs", "import", "plugins").
	Label string `json:"label,omitempty"`
}

// Validate checks that both sides of the mount are set and that the
// container side is absolute. The host directory is not required to exist:
// the container runtime creates missing bind sources itself.
func (v *VolumeMount) Validate() error {
	if v.HostPath == "" {
		return fmt.Errorf("volume mount: host path must not be empty")
	}
	if v.ContainerPath == "" {
		return fmt.Errorf("volume mount: container path must not be empty")
	}
	// Container paths are always POSIX, regardless of the host platform.
	if !path.IsAbs(v.ContainerPath) {
		return fmt.Errorf("volume mount: container path %q must be absolute", v.ContainerPath)
	}
	return nil
}

// String returns the mount in "host:container" bind syntax.
func (v VolumeMount) String() string {
	return v.HostPath + ":" + v.ContainerPath
}

// EnvVar is a single environment assignment passed into the container.
// A slice of EnvVar (rather than a map) keeps the assignment order stable,
// so the generated command is identical from one run to the next.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// String returns the assignment in "NAME=value" form.
func (e EnvVar) String() string {
	return e.Name + "=" + e.Value
}

// LaunchSpec is the complete, ordered description of one detached container
// creation request. It is built from a launch profile and handed unchanged
// to a launch backend (the runtime CLI or the Engine API).
type LaunchSpec struct {
	// Name is the fixed container name. A second launch with the same name
	// fails in the runtime with a naming conflict.
	Name string `json:"name"`

	// Image is the image reference (e.g., "neo4j:4.4").
	Image string `json:"image"`

	// Ports lists the published ports in command order.
	Ports []PortMapping `json:"ports"`

	// Volumes lists the bind mounts in command order.
	Volumes []VolumeMount `json:"volumes"`

	// Env lists the environment assignments in command order.
	Env []EnvVar `json:"env"`
}

// containerNameRegex mirrors the container runtime's own name rule.
var containerNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// envNameRegex accepts POSIX-style variable names. Neo4j settings use
// double underscores for literal dots, which this pattern allows.
var envNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateName checks if the given name is a valid container name.
// Valid names start with an alphanumeric character followed by
// alphanumerics, underscores, periods, or hyphens.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("container name must not be empty")
	}
	if !containerNameRegex.MatchString(name) {
		return fmt.Errorf("invalid container name %q: must match %s", name, containerNameRegex.String())
	}
	return nil
}

// Validate checks the structural consistency of the launch spec: a legal name, a
// non-empty image, valid ports without duplicate host ports, valid mounts,
// and unique, well-formed environment names.
//
// Validate does not probe the host. Whether a port is free or an image
// exists is the container runtime's concern.
func (s *LaunchSpec) Validate() error {
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	if strings.TrimSpace(s.Image) == "" {
		return fmt.Errorf("image reference must not be empty")
	}

	// Key: "hostPort/protocol". Different protocols on the same port are allowed.
	seenPorts := make(map[string]PortMapping)
	for i := range s.Ports {
		if err := s.Ports[i].Validate(); err != nil {
			return err
		}
		key := fmt.Sprintf("%d/%s", s.Ports[i].HostPort, s.Ports[i].Protocol)
		if prev, exists := seenPorts[key]; exists {
			return fmt.Errorf("port mapping: host port %s is published twice (%s and %s)",
				key, prev.String(), s.Ports[i].String())
		}
		seenPorts[key] = s.Ports[i]
	}

	for i := range s.Volumes {
		if err := s.Volumes[i].Validate(); err != nil {
			return err
		}
	}

	seenEnv := make(map[string]bool)
	for _, e := range s.Env {
		if !envNameRegex.MatchString(e.Name) {
			return fmt.Errorf("invalid environment variable name %q", e.Name)
		}
		if seenEnv[e.Name] {
			return fmt.Errorf("environment variable %q is assigned twice", e.Name)
		}
		seenEnv[e.Name] = true
	}

	return nil
}

// LookupEnv returns the value assigned to name and whether it is present.
func (s *LaunchSpec) LookupEnv(name string) (string, bool) {
	for _, e := range s.Env {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// LaunchResult reports the outcome of a successful launch.
type LaunchResult struct {
	// ContainerID is the identifier the runtime assigned to the new container.
	ContainerID string `json:"containerId"`

	// Name is the container name that was requested.
	Name string `json:"name"`

	// Backend names the launch backend that created the container ("cli" or "api").
	Backend string `json:"backend"`
}

// ShortID returns the first 12 characters of the container ID, the form
// the container runtime itself prints in listings.
func (r *LaunchResult) ShortID() string {
	if len(r.ContainerID) > 12 {
		return r.ContainerID[:12]
	}
	return r.ContainerID
}
