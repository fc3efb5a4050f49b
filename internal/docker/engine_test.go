package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/neo4japanese/internal/model"
)

// fakeEngine is an in-memory engineAPI. createErrs are returned by
// successive ContainerCreate calls; a nil entry (or running out) succeeds.
type fakeEngine struct {
	createErrs []error
	startErr   error
	pullErr    error

	creates int
	names   []string
	started []string
	pulled  []string
	config  *container.Config
	host    *container.HostConfig
}

func (f *fakeEngine) ContainerCreate(_ context.Context, cfg *container.Config, host *container.HostConfig,
	_ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.creates++
	f.names = append(f.names, name)
	f.config, f.host = cfg, host
	if i := f.creates - 1; i < len(f.createErrs) && f.createErrs[i] != nil {
		return container.CreateResponse{}, f.createErrs[i]
	}
	return container.CreateResponse{ID: fmt.Sprintf("id-%d", f.creates)}, nil
}

func (f *fakeEngine) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	f.started = append(f.started, id)
	return f.startErr
}

func (f *fakeEngine) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.pulled = append(f.pulled, ref)
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	return io.NopCloser(strings.NewReader(`{"status":"Pull complete"}`)), nil
}

// TestContainerConfigs verifies the translation of a launch spec into Engine
// API configuration.
func TestContainerConfigs(t *testing.T) {
	cfg, host, err := ContainerConfigs(testSpec())
	require.NoError(t, err)

	assert.Equal(t, "neo4j:4.4", cfg.Image)
	assert.Equal(t, []string{
		"NEO4J_AUTH=neo4j/japanese",
		`NEO4JLABS_PLUGINS=["apoc","graph-data-science"]`,
		"NEO4J_apoc_export_file_enabled=true",
		"NEO4J_apoc_import_file_enabled=true",
		"NEO4J_apoc_import_file_use__neo4j__config=true",
	}, cfg.Env)

	assert.Len(t, cfg.ExposedPorts, 2)
	assert.Contains(t, cfg.ExposedPorts, nat.Port("7474/tcp"))
	assert.Contains(t, cfg.ExposedPorts, nat.Port("7687/tcp"))

	assert.Equal(t, []nat.PortBinding{{HostPort: "7474"}}, host.PortBindings[nat.Port("7474/tcp")])
	assert.Equal(t, []nat.PortBinding{{HostPort: "7687"}}, host.PortBindings[nat.Port("7687/tcp")])

	assert.Equal(t, []string{
		"/home/u/neo4j/data:/data",
		"/home/u/neo4j/logs:/logs",
		"/home/u/neo4j/import:/var/lib/neo4j/import",
		"/home/u/neo4j/plugins:/plugins",
	}, host.Binds)
}

// TestAPIRunner_Launch verifies create-then-start with the container name.
func TestAPIRunner_Launch(t *testing.T) {
	fake := &fakeEngine{}
	r := newAPIRunner(fake, &bytes.Buffer{})

	res, err := r.Launch(context.Background(), testSpec())
	require.NoError(t, err)

	assert.Equal(t, []string{"neo4japanese"}, fake.names)
	assert.Equal(t, []string{"id-1"}, fake.started)
	assert.Empty(t, fake.pulled)
	assert.Equal(t, "id-1", res.ContainerID)
	assert.Equal(t, "api", res.Backend)
}

// TestAPIRunner_PullsMissingImage verifies the single pull-and-retry when
// the image is not present locally.
func TestAPIRunner_PullsMissingImage(t *testing.T) {
	fake := &fakeEngine{createErrs: []error{
		fmt.Errorf("No such image: neo4j:4.4: %w", cerrdefs.ErrNotFound),
	}}
	var stderr bytes.Buffer
	r := newAPIRunner(fake, &stderr)

	res, err := r.Launch(context.Background(), testSpec())
	require.NoError(t, err)

	assert.Equal(t, []string{"neo4j:4.4"}, fake.pulled)
	assert.Equal(t, 2, fake.creates)
	assert.Equal(t, "id-2", res.ContainerID)
	assert.Contains(t, stderr.String(), "Unable to find image 'neo4j:4.4' locally")
}

// TestAPIRunner_DaemonErrors verifies that daemon rejections surface
// verbatim with the CLI's exit status and are never retried.
func TestAPIRunner_DaemonErrors(t *testing.T) {
	conflict := fmt.Errorf(`Conflict. The container name "/neo4japanese" is already in use: %w`, cerrdefs.ErrConflict)

	tests := []struct {
		name    string
		fake    *fakeEngine
		creates int
	}{
		{
			name:    "name conflict",
			fake:    &fakeEngine{createErrs: []error{conflict}},
			creates: 1,
		},
		{
			name: "pull fails",
			fake: &fakeEngine{
				createErrs: []error{fmt.Errorf("no such image: %w", cerrdefs.ErrNotFound)},
				pullErr:    fmt.Errorf("pull access denied for neo4j: %w", cerrdefs.ErrPermissionDenied),
			},
			creates: 1,
		},
		{
			name:    "start fails",
			fake:    &fakeEngine{startErr: errors.New("Bind for 0.0.0.0:7474 failed: port is already allocated")},
			creates: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			r := newAPIRunner(tt.fake, &stderr)

			_, err := r.Launch(context.Background(), testSpec())
			require.Error(t, err)

			var exitErr *model.RuntimeExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, engineExitCode, exitErr.Code)
			assert.Contains(t, stderr.String(), exitErr.Stderr, "daemon message is written verbatim")
			assert.Equal(t, tt.creates, tt.fake.creates)
		})
	}
}

// TestAPIRunner_SecondLaunchConflicts verifies the conflict classification
// against the errdefs class the daemon reports.
func TestAPIRunner_SecondLaunchConflicts(t *testing.T) {
	fake := &fakeEngine{createErrs: []error{nil, fmt.Errorf("name in use: %w", cerrdefs.ErrConflict)}}
	r := newAPIRunner(fake, &bytes.Buffer{})

	_, err := r.Launch(context.Background(), testSpec())
	require.NoError(t, err)

	_, err = r.Launch(context.Background(), testSpec())
	require.Error(t, err)
	assert.True(t, cerrdefs.IsConflict(err))
	assert.Len(t, fake.started, 1)
}
