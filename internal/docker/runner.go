package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/shinji-kodama/neo4japanese/internal/model"
)

// Launcher issues one detached container creation request.
// Implementations perform no retry and no rollback.
type Launcher interface {
	Launch(ctx context.Context, spec *model.LaunchSpec) (*model.LaunchResult, error)
}

// ExecCommandFunc matches exec.CommandContext and is replaced in tests.
type ExecCommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// CLIRunner launches containers by shelling out to the container runtime
// binary ("docker run -d ..."). The runtime's stdout and stderr pass
// through unmodified; its exit status is propagated as a
// model.RuntimeExitError.
type CLIRunner struct {
	binary      string
	stdout      io.Writer
	stderr      io.Writer
	execCommand ExecCommandFunc
	lookPath    func(file string) (string, error)
}

// CLIRunnerOption configures a CLIRunner.
type CLIRunnerOption func(*CLIRunner)

// WithOutput sets where the runtime's stdout and stderr are streamed.
func WithOutput(stdout, stderr io.Writer) CLIRunnerOption {
	return func(r *CLIRunner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) CLIRunnerOption {
	return func(r *CLIRunner) {
		r.execCommand = fn
	}
}

// WithLookPath sets a custom binary resolver for testing.
func WithLookPath(fn func(file string) (string, error)) CLIRunnerOption {
	return func(r *CLIRunner) {
		r.lookPath = fn
	}
}

// NewCLIRunner creates a runner for the given runtime binary ("docker",
// "podman", or an absolute path).
func NewCLIRunner(binary string, opts ...CLIRunnerOption) *CLIRunner {
	r := &CLIRunner{
		binary:      binary,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		execCommand: exec.CommandContext,
		lookPath:    exec.LookPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Binary returns the runtime binary this runner invokes.
func (r *CLIRunner) Binary() string {
	return r.binary
}

// RunArgs constructs the argument vector for a detached run of spec.
//
// Generated command: <binary> run -d --name <name> [-p ...] [-v ...] [-e ...] <image>
//
// The vector contains exactly the LaunchSpec's name, ports, volumes, env
// assignments and image, each in spec order.
func RunArgs(spec *model.LaunchSpec) []string {
	args := make([]string, 0, 5+2*(len(spec.Ports)+len(spec.Volumes)+len(spec.Env)))
	args = append(args, "run", "-d", "--name", spec.Name)

	for _, p := range spec.Ports {
		args = append(args, "-p", p.String())
	}
	for _, v := range spec.Volumes {
		args = append(args, "-v", v.String())
	}
	for _, e := range spec.Env {
		args = append(args, "-e", e.String())
	}

	return append(args, spec.Image)
}

// Launch runs the container runtime once with RunArgs(spec).
//
// Stdout is streamed and captured, since the runtime prints the new
// container ID there. Stderr is streamed and captured so the runtime's
// diagnostic (e.g., a name conflict on a second launch) reaches the user
// verbatim and is also available to callers that render JSON.
func (r *CLIRunner) Launch(ctx context.Context, spec *model.LaunchSpec) (*model.LaunchResult, error) {
	path, err := r.lookPath(r.binary)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitRuntimeUnavailable,
			fmt.Sprintf("container runtime %q not found in PATH", r.binary),
			err,
		)
	}

	cmd := r.execCommand(ctx, path, RunArgs(spec)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = io.MultiWriter(r.stdout, &stdout)
	cmd.Stderr = io.MultiWriter(r.stderr, &stderr)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &model.RuntimeExitError{
				Runtime: r.binary,
				Code:    exitErr.ExitCode(),
				Stderr:  stderr.String(),
				Err:     err,
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "launch cancelled", ctxErr)
		}
		return nil, model.WrapCLIError(
			model.ExitRuntimeUnavailable,
			fmt.Sprintf("failed to execute %s", r.binary),
			err,
		)
	}

	return &model.LaunchResult{
		ContainerID: lastLine(stdout.String()),
		Name:        spec.Name,
		Backend:     "cli",
	}, nil
}

// lastLine returns the last non-empty line of s, trimmed.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
