package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/shinji-kodama/neo4japanese/internal/model"
)

// engineExitCode is the status the docker CLI reports when the daemon
// rejects a run request. The API backend uses the same code so both
// backends fail identically.
const engineExitCode = 125

// engineAPI is the subset of the Docker SDK client used by APIRunner.
// *client.Client satisfies it.
type engineAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
}

// APIRunner launches containers through the Docker Engine API instead of
// the CLI. It performs the same steps "docker run -d" performs: create the
// named container (pulling the image if it is missing) and start it.
type APIRunner struct {
	api    engineAPI
	stderr io.Writer
}

// NewAPIRunner creates an APIRunner on top of a connected Client.
func NewAPIRunner(c *Client) *APIRunner {
	return &APIRunner{api: c.Inner(), stderr: os.Stderr}
}

// newAPIRunner creates an APIRunner over any engineAPI (used in tests).
func newAPIRunner(api engineAPI, stderr io.Writer) *APIRunner {
	return &APIRunner{api: api, stderr: stderr}
}

// ContainerConfigs translates spec into the Engine API's container and
// host configuration: image, ordered env list, exposed ports, port
// bindings and bind mounts.
func ContainerConfigs(spec *model.LaunchSpec) (*container.Config, *container.HostConfig, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range spec.Ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port, err := nat.NewPort(proto, strconv.Itoa(p.ContainerPort))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid port mapping %s: %w", p.String(), err)
		}
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{HostPort: strconv.Itoa(p.HostPort)})
	}

	env := make([]string, 0, len(spec.Env))
	for _, e := range spec.Env {
		env = append(env, e.String())
	}

	binds := make([]string, 0, len(spec.Volumes))
	for _, v := range spec.Volumes {
		binds = append(binds, v.String())
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Env:          env,
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{
		Binds:        binds,
		PortBindings: bindings,
	}
	return cfg, hostCfg, nil
}

// Launch creates and starts the container described by spec.
//
// A missing image is pulled once and the create retried, matching
// "docker run". Any daemon rejection (name conflict, port already
// allocated, unknown image) is written verbatim to stderr and returned
// as a model.RuntimeExitError with the CLI's status 125. Nothing is
// rolled back: a created-but-unstarted container is left in place, as
// the CLI leaves it.
func (r *APIRunner) Launch(ctx context.Context, spec *model.LaunchSpec) (*model.LaunchResult, error) {
	cfg, hostCfg, err := ContainerConfigs(spec)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid launch spec", err)
	}

	resp, err := r.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil && cerrdefs.IsNotFound(err) {
		fmt.Fprintf(r.stderr, "Unable to find image '%s' locally\n", spec.Image)
		if pullErr := r.pull(ctx, spec.Image); pullErr != nil {
			return nil, r.engineError(pullErr)
		}
		resp, err = r.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	}
	if err != nil {
		return nil, r.engineError(err)
	}

	if err := r.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, r.engineError(err)
	}

	return &model.LaunchResult{
		ContainerID: resp.ID,
		Name:        spec.Name,
		Backend:     "api",
	}, nil
}

// pull downloads ref and drains the progress stream.
func (r *APIRunner) pull(ctx context.Context, ref string) error {
	rc, err := r.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = io.Copy(io.Discard, rc)
	return err
}

// engineError converts an Engine API error into the CLI-equivalent result.
// Connection failures mean the daemon is unavailable; everything else is
// the daemon's verdict on the request and is surfaced unchanged.
func (r *APIRunner) engineError(err error) error {
	if client.IsErrConnectionFailed(err) {
		return model.WrapCLIError(model.ExitRuntimeUnavailable, "cannot connect to the Docker daemon", err)
	}

	msg := err.Error()
	fmt.Fprintln(r.stderr, msg)
	return &model.RuntimeExitError{
		Runtime: "docker-engine",
		Code:    engineExitCode,
		Stderr:  msg,
		Err:     err,
	}
}
