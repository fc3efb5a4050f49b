package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/neo4japanese/internal/config"
	"github.com/shinji-kodama/neo4japanese/internal/docker"
	"github.com/shinji-kodama/neo4japanese/internal/model"
	"github.com/shinji-kodama/neo4japanese/internal/port"
)

// launchFlags holds the flag values for the launch command.
type launchFlags struct {
	dryRun  bool   // --dry-run: print the command instead of running it
	backend string // --backend: cli or api (default: from profile)
	runtime string // --runtime: runtime binary for the cli backend

	// checkPorts (--check-ports) probes the host ports before launching.
	// Off by default: a plain launch touches nothing but the runtime.
	checkPorts bool
}

// NewLaunchCommand creates the "launch" cobra command.
func NewLaunchCommand() *cobra.Command {
	flags := &launchFlags{}

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Start the Neo4j container (detached)",
		Long: `Issue a single detached run request to the container runtime for the
Neo4j container described by the launch profile.

The runtime's output and exit status are passed through unchanged. Running
launch again while the container exists fails with the runtime's name
conflict error; remove the old container first.

Examples:
  neo4japanese launch
  neo4japanese launch --dry-run
  neo4japanese launch --dry-run --check-ports
  neo4japanese launch --config dev.yaml --backend api
  neo4japanese launch --runtime podman`,

		// The launch takes no positional arguments; everything comes from
		// the profile and flags.
		Args: cobra.NoArgs,

		// RunE returns errors to Execute, which maps them to exit codes.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLaunch(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Print the runtime command without running it")
	cmd.Flags().StringVar(&flags.backend, "backend", "", "Launch backend: cli or api (default: from profile, cli)")
	cmd.Flags().BoolVar(&flags.checkPorts, "check-ports", false, "Warn about host ports that are already in use before launching")
	cmd.Flags().StringVar(&flags.runtime, "runtime", "", "Container runtime binary for the cli backend (default: from profile, docker)")

	return cmd
}

// runLaunch resolves the profile, then either prints or performs the launch.
func runLaunch(ctx context.Context, out io.Writer, flags *launchFlags) error {
	// Step 1: Resolve the launch profile (--config, NEO4JAPANESE_CONFIG or
	// the built-in defaults) and apply flag overrides on top.
	profile, err := loadProfile()
	if err != nil {
		return err
	}
	if err := applyLaunchFlags(profile, flags); err != nil {
		return err
	}

	// Step 2: Build and validate the ordered launch spec: name, ports,
	// volumes, env assignments and image.
	spec, err := profile.LaunchSpec()
	if err != nil {
		return err
	}
	VerboseLog("Launch: name=%s image=%s backend=%s", spec.Name, spec.Image, profile.Backend)

	// The probe is advisory and never stops the launch; the runtime still
	// decides whether a port can be published.
	if flags.checkPorts {
		warnBusyPorts(spec)
	}

	if flags.dryRun {
		return printDryRun(out, profile.Runtime, spec)
	}

	// In JSON mode the result document replaces the runtime's stdout.
	runtimeOut := out
	if IsJSONOutput() {
		runtimeOut = io.Discard
	}

	// Step 3: Issue the single run request. No retry and no rollback: a
	// failure (e.g. a name conflict on a second launch) is returned as is.
	launcher, cleanup, err := newLauncher(ctx, profile, runtimeOut)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := launcher.Launch(ctx, spec)
	if err != nil {
		return err
	}

	// Step 4: Report the result.
	if IsJSONOutput() {
		return printLaunchResultJSON(out, res, profile, spec)
	}
	if !quiet {
		printLaunchResultText(os.Stderr, res, profile, spec)
	}
	return nil
}

// applyLaunchFlags overrides profile fields with explicitly set flags.
func applyLaunchFlags(p *config.Profile, flags *launchFlags) error {
	if flags.backend != "" {
		switch flags.backend {
		case config.BackendCLI, config.BackendAPI:
			p.Backend = flags.backend
		default:
			return model.NewCLIError(model.ExitConfigInvalid,
				fmt.Sprintf("unknown backend %q (valid: %s, %s)", flags.backend, config.BackendCLI, config.BackendAPI))
		}
	}
	if flags.runtime != "" {
		p.Runtime = flags.runtime
	}
	return nil
}

// warnBusyPorts logs host ports that are already bound. The launch still
// proceeds; the runtime reports the actual failure.
func warnBusyPorts(spec *model.LaunchSpec) {
	for _, p := range port.NewScanner().Busy(spec.Ports) {
		logger.Warn("Host port already in use", "port", p.HostPort, "label", p.Label)
	}
}

// newLauncher builds the backend selected by the profile. The returned
// cleanup func must be called when the launch is done.
func newLauncher(ctx context.Context, p *config.Profile, stdout io.Writer) (docker.Launcher, func(), error) {
	if p.Backend == config.BackendAPI {
		// The Engine API backend needs a reachable daemon; Ping fails fast
		// with ExitRuntimeUnavailable instead of timing out in create.
		c, err := docker.NewClient()
		if err != nil {
			return nil, nil, err
		}
		if err := c.Ping(ctx); err != nil {
			_ = c.Close()
			return nil, nil, err
		}
		VerboseLog("Using Docker Engine API")
		return docker.NewAPIRunner(c), func() { _ = c.Close() }, nil
	}

	runner := docker.NewCLIRunner(p.Runtime, docker.WithOutput(stdout, os.Stderr))
	VerboseLog("Using %s CLI", runner.Binary())
	return runner, func() {}, nil
}

// dryRunResult is the JSON form of --dry-run.
type dryRunResult struct {
	Command []string `json:"command"`
	Shell   string   `json:"shell"`
}

// printDryRun writes the command the cli backend would run.
func printDryRun(out io.Writer, runtime string, spec *model.LaunchSpec) error {
	args := docker.RunArgs(spec)
	line, err := docker.RenderShell(runtime, args)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "cannot render launch command", err)
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(dryRunResult{
			Command: append([]string{runtime}, args...),
			Shell:   line,
		}, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, line)
	return nil
}

// launchResult is the JSON form of a successful launch.
type launchResult struct {
	ContainerID string   `json:"containerId"`
	Name        string   `json:"name"`
	Image       string   `json:"image"`
	Backend     string   `json:"backend"`
	HTTPURL     string   `json:"httpUrl"`
	BoltURI     string   `json:"boltUri"`
	Ports       []string `json:"ports"`
	Volumes     []string `json:"volumes"`
}

func printLaunchResultJSON(out io.Writer, res *model.LaunchResult, p *config.Profile, spec *model.LaunchSpec) error {
	r := launchResult{
		ContainerID: res.ContainerID,
		Name:        res.Name,
		Image:       spec.Image,
		Backend:     res.Backend,
		HTTPURL:     p.HTTPURL(),
		BoltURI:     p.BoltURI(),
	}
	for _, pm := range spec.Ports {
		r.Ports = append(r.Ports, pm.String())
	}
	for _, v := range spec.Volumes {
		r.Volumes = append(r.Volumes, v.String())
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// printLaunchResultText writes a short human-readable summary. It goes to
// stderr so stdout carries only the runtime's output (the container ID).
func printLaunchResultText(w io.Writer, res *model.LaunchResult, p *config.Profile, spec *model.LaunchSpec) {
	lines := []string{
		headerStyle.Render(fmt.Sprintf("Launched %s (%s)", res.Name, res.ShortID())),
		field("Image", spec.Image),
		field("Browser", p.HTTPURL()),
		field("Bolt", p.BoltURI()),
	}
	for _, v := range spec.Volumes {
		lines = append(lines, field(volumeLabel(v), v.HostPath))
	}
	// Show the plugin list as the container received it, not as the
	// profile spelled it.
	if plugins, ok := spec.LookupEnv(config.EnvPlugins); ok {
		lines = append(lines, field("Plugins", plugins))
	}
	lines = append(lines, hintStyle.Render("  Import a dictionary with: neo4japanese import <JMdict.xml>"))
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

// volumeLabel names a mount for display, falling back to its container path.
func volumeLabel(v model.VolumeMount) string {
	if v.Label != "" {
		return strings.ToUpper(v.Label[:1]) + v.Label[1:]
	}
	return v.ContainerPath
}
