package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/neo4japanese/internal/model"
)

// testSpec returns the default launch with a fixed home directory.
func testSpec() *model.LaunchSpec {
	return &model.LaunchSpec{
		Name:  "neo4japanese",
		Image: "neo4j:4.4",
		Ports: []model.PortMapping{
			{HostPort: 7474, ContainerPort: 7474, Protocol: "tcp"},
			{HostPort: 7687, ContainerPort: 7687, Protocol: "tcp"},
		},
		Volumes: []model.VolumeMount{
			{HostPath: "/home/u/neo4j/data", ContainerPath: "/data"},
			{HostPath: "/home/u/neo4j/logs", ContainerPath: "/logs"},
			{HostPath: "/home/u/neo4j/import", ContainerPath: "/var/lib/neo4j/import"},
			{HostPath: "/home/u/neo4j/plugins", ContainerPath: "/plugins"},
		},
		Env: []model.EnvVar{
			{Name: "NEO4J_AUTH", Value: "neo4j/japanese"},
			{Name: "NEO4JLABS_PLUGINS", Value: `["apoc","graph-data-science"]`},
			{Name: "NEO4J_apoc_export_file_enabled", Value: "true"},
			{Name: "NEO4J_apoc_import_file_enabled", Value: "true"},
			{Name: "NEO4J_apoc_import_file_use__neo4j__config", Value: "true"},
		},
	}
}

// TestRunArgs verifies the exact argument vector: every configured value
// appears once, in order, and nothing else is added.
func TestRunArgs(t *testing.T) {
	want := []string{
		"run", "-d", "--name", "neo4japanese",
		"-p", "7474:7474",
		"-p", "7687:7687",
		"-v", "/home/u/neo4j/data:/data",
		"-v", "/home/u/neo4j/logs:/logs",
		"-v", "/home/u/neo4j/import:/var/lib/neo4j/import",
		"-v", "/home/u/neo4j/plugins:/plugins",
		"-e", "NEO4J_AUTH=neo4j/japanese",
		"-e", `NEO4JLABS_PLUGINS=["apoc","graph-data-science"]`,
		"-e", "NEO4J_apoc_export_file_enabled=true",
		"-e", "NEO4J_apoc_import_file_enabled=true",
		"-e", "NEO4J_apoc_import_file_use__neo4j__config=true",
		"neo4j:4.4",
	}
	assert.Equal(t, want, RunArgs(testSpec()))
}

// TestRunArgs_Minimal verifies a spec with no ports, volumes or env.
func TestRunArgs_Minimal(t *testing.T) {
	got := RunArgs(&model.LaunchSpec{Name: "db", Image: "neo4j:5"})
	assert.Equal(t, []string{"run", "-d", "--name", "db", "neo4j:5"}, got)
}

// helperResponse describes what one faked runtime invocation prints and
// how it exits.
type helperResponse struct {
	stdout string
	stderr string
	code   int
}

// fakeRuntime records each invocation and replays responses in order,
// repeating the last one once they run out.
type fakeRuntime struct {
	calls     [][]string
	responses []helperResponse
}

func (f *fakeRuntime) execCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	f.calls = append(f.calls, append([]string{name}, args...))

	resp := f.responses[len(f.responses)-1]
	if i := len(f.calls) - 1; i < len(f.responses) {
		resp = f.responses[i]
	}

	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{
		"GO_WANT_HELPER_PROCESS=1",
		"GO_HELPER_STDOUT=" + resp.stdout,
		"GO_HELPER_STDERR=" + resp.stderr,
		"GO_HELPER_EXIT_CODE=" + strconv.Itoa(resp.code),
	}
	return cmd
}

func lookPathFound(file string) (string, error) {
	return "/usr/bin/" + file, nil
}

// TestHelperProcess is not a real test. It stands in for the container
// runtime binary when re-executed by fakeRuntime.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprint(os.Stdout, os.Getenv("GO_HELPER_STDOUT"))
	fmt.Fprint(os.Stderr, os.Getenv("GO_HELPER_STDERR"))
	code, _ := strconv.Atoi(os.Getenv("GO_HELPER_EXIT_CODE"))
	os.Exit(code)
}

// TestCLIRunner_Launch verifies a successful launch: the resolved binary is
// invoked once with RunArgs, output passes through, and the container ID
// is taken from stdout.
func TestCLIRunner_Launch(t *testing.T) {
	const id = "4f1c0b5e9a7d2c3b1a0f9e8d7c6b5a4f3e2d1c0b9a8f7e6d5c4b3a2f1e0d9c8b"
	fake := &fakeRuntime{responses: []helperResponse{{stdout: id + "\n"}}}

	var stdout, stderr bytes.Buffer
	r := NewCLIRunner("docker",
		WithOutput(&stdout, &stderr),
		WithExecCommand(fake.execCommand),
		WithLookPath(lookPathFound),
	)

	res, err := r.Launch(context.Background(), testSpec())
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "/usr/bin/docker", fake.calls[0][0])
	assert.Equal(t, RunArgs(testSpec()), fake.calls[0][1:])

	assert.Equal(t, id+"\n", stdout.String())
	assert.Empty(t, stderr.String())
	assert.Equal(t, id, res.ContainerID)
	assert.Equal(t, "neo4japanese", res.Name)
	assert.Equal(t, "cli", res.Backend)
}

// TestCLIRunner_PullProgress verifies that pull chatter on stderr does not
// affect the reported container ID.
func TestCLIRunner_PullProgress(t *testing.T) {
	fake := &fakeRuntime{responses: []helperResponse{{
		stdout: "abc123\n",
		stderr: "Unable to find image 'neo4j:4.4' locally\n4.4: Pulling from library/neo4j\n",
	}}}

	var stderr bytes.Buffer
	r := NewCLIRunner("docker",
		WithOutput(&bytes.Buffer{}, &stderr),
		WithExecCommand(fake.execCommand),
		WithLookPath(lookPathFound),
	)

	res, err := r.Launch(context.Background(), testSpec())
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.ContainerID)
	assert.Contains(t, stderr.String(), "Pulling from library/neo4j")
}

// TestCLIRunner_ExitStatus verifies that non-zero runtime exit codes are
// propagated unchanged, together with the runtime's stderr.
func TestCLIRunner_ExitStatus(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		stderr string
	}{
		{"daemon error", 125, "docker: Error response from daemon: driver failed programming external connectivity.\n"},
		{"command cannot be invoked", 126, "docker: permission denied.\n"},
		{"unusual status", 3, "boom\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRuntime{responses: []helperResponse{{stderr: tt.stderr, code: tt.code}}}
			var stderr bytes.Buffer
			r := NewCLIRunner("docker",
				WithOutput(&bytes.Buffer{}, &stderr),
				WithExecCommand(fake.execCommand),
				WithLookPath(lookPathFound),
			)

			_, err := r.Launch(context.Background(), testSpec())
			require.Error(t, err)

			var exitErr *model.RuntimeExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, tt.code, exitErr.Code)
			assert.Equal(t, "docker", exitErr.Runtime)
			assert.Equal(t, tt.stderr, exitErr.Stderr)
			assert.Equal(t, tt.stderr, stderr.String(), "stderr passes through verbatim")
			assert.Len(t, fake.calls, 1, "no retry")
		})
	}
}

// TestCLIRunner_SecondLaunchConflicts verifies that launching twice is not
// idempotent: the second call surfaces the runtime's name-conflict error.
func TestCLIRunner_SecondLaunchConflicts(t *testing.T) {
	conflict := `docker: Error response from daemon: Conflict. The container name "/neo4japanese" is already in use by container "abc123". You have to remove (or rename) that container to be able to reuse that name.` + "\n"
	fake := &fakeRuntime{responses: []helperResponse{
		{stdout: "abc123\n"},
		{stderr: conflict, code: 125},
	}}
	r := NewCLIRunner("docker",
		WithOutput(&bytes.Buffer{}, &bytes.Buffer{}),
		WithExecCommand(fake.execCommand),
		WithLookPath(lookPathFound),
	)

	_, err := r.Launch(context.Background(), testSpec())
	require.NoError(t, err)

	_, err = r.Launch(context.Background(), testSpec())
	var exitErr *model.RuntimeExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 125, exitErr.Code)
	assert.Contains(t, exitErr.Stderr, "is already in use")
	assert.Equal(t, fake.calls[0], fake.calls[1], "both launches issue the identical command")
}

// TestCLIRunner_MissingBinary verifies the runtime-unavailable exit code
// when the binary cannot be resolved.
func TestCLIRunner_MissingBinary(t *testing.T) {
	r := NewCLIRunner("docker", WithLookPath(func(string) (string, error) {
		return "", exec.ErrNotFound
	}))

	_, err := r.Launch(context.Background(), testSpec())
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitRuntimeUnavailable, cliErr.Code)
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Contains(t, cliErr.Message, `"docker"`)
	assert.Equal(t, "docker", r.Binary())
}

// TestLastLine verifies container ID extraction from runtime stdout.
func TestLastLine(t *testing.T) {
	assert.Equal(t, "abc", lastLine("abc\n"))
	assert.Equal(t, "def", lastLine("abc\ndef\n\n"))
	assert.Equal(t, "", lastLine(""))
}

// TestCLIRunner_Docker runs two real launches against the local runtime and
// checks that the second one fails with the runtime's conflict error.
// Set NEO4JAPANESE_E2E=1 to enable; a small image stands in for Neo4j.
func TestCLIRunner_Docker(t *testing.T) {
	if testing.Short() || os.Getenv("NEO4JAPANESE_E2E") != "1" {
		t.Skip("set NEO4JAPANESE_E2E=1 to run against a real container runtime")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}

	spec := &model.LaunchSpec{
		Name:  fmt.Sprintf("neo4japanese-e2e-%d", time.Now().UnixNano()),
		Image: "alpine:3",
	}
	t.Cleanup(func() {
		_ = exec.Command("docker", "rm", "-f", spec.Name).Run()
	})

	r := NewCLIRunner("docker", WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))

	res, err := r.Launch(context.Background(), spec)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ContainerID)

	_, err = r.Launch(context.Background(), spec)
	var exitErr *model.RuntimeExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 125, exitErr.Code)
	assert.True(t, strings.Contains(exitErr.Stderr, "Conflict") || strings.Contains(exitErr.Stderr, "already in use"))
}
