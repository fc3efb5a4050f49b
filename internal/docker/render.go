package docker

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/syntax"

	"github.com/shinji-kodama/neo4japanese/internal/model"
)

// RenderShell returns binary and args as a single POSIX shell command line,
// quoting each word only where the shell would otherwise reinterpret it.
// Pasting the result into a shell runs exactly the command Launch would.
func RenderShell(binary string, args []string) (string, error) {
	words := make([]string, 0, len(args)+1)
	for _, w := range append([]string{binary}, args...) {
		q, err := syntax.Quote(w, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("cannot quote %q for the shell: %w", w, err)
		}
		words = append(words, q)
	}
	return strings.Join(words, " "), nil
}

// composeFile is the Compose document produced by RenderCompose.
type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

// composeService mirrors the launch: same container name, image, ports,
// bind mounts and environment, in launch order.
type composeService struct {
	ContainerName string   `yaml:"container_name"`
	Image         string   `yaml:"image"`
	Ports         []string `yaml:"ports,omitempty"`
	Volumes       []string `yaml:"volumes,omitempty"`
	Environment   []string `yaml:"environment,omitempty"`
}

// RenderCompose creates a Compose file with one service equivalent to the
// launch described by spec. The environment is emitted in list form so the
// order of assignments is preserved.
//
// Returns the YAML bytes with a header comment, or an error if serialization fails.
func RenderCompose(spec *model.LaunchSpec) ([]byte, error) {
	svc := composeService{
		ContainerName: spec.Name,
		Image:         spec.Image,
	}
	for _, p := range spec.Ports {
		svc.Ports = append(svc.Ports, p.String())
	}
	for _, v := range spec.Volumes {
		svc.Volumes = append(svc.Volumes, v.String())
	}
	for _, e := range spec.Env {
		svc.Environment = append(svc.Environment, e.String())
	}

	doc := composeFile{Services: map[string]composeService{spec.Name: svc}}

	yamlBytes, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize compose YAML: %w", err)
	}

	header := fmt.Sprintf(
		"# Generated by neo4japanese for container %q\n# Start with: docker compose up -d\n",
		spec.Name,
	)
	return []byte(header + string(yamlBytes)), nil
}
