// Package cli implements the cobra-based CLI commands for neo4japanese.
//
// Each subcommand (launch, compose, import) is defined in its own file
// within this package. This file defines the root command that serves as
// the parent for all subcommands and handles global flags, logging and
// exit codes.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shinji-kodama/neo4japanese/internal/config"
	"github.com/shinji-kodama/neo4japanese/internal/model"
)

// envPrefix namespaces every environment variable the CLI reads
// (NEO4JAPANESE_CONFIG, NEO4JAPANESE_NEO4J_URI, ...).
const envPrefix = "NEO4JAPANESE"

// Global flag variables shared across all subcommands.
var (
	// jsonOutput switches command results and errors to JSON.
	jsonOutput bool

	// verbose lowers the log level to debug.
	verbose bool

	// quiet raises the log level to warnings only.
	quiet bool

	// configPath is the launch profile file (--config or NEO4JAPANESE_CONFIG).
	configPath string
)

// logger is the CLI's structured logger. It writes to stderr so stdout
// stays reserved for command results and the runtime's own output.
var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "neo4japanese"})

// errOut receives error reports; tests replace it.
var errOut io.Writer = os.Stderr

// Version, Commit and Date are set at build time via ldflags and injected
// from the main package.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "neo4japanese",
		Short: "Launch a Neo4j container for the Japanese dictionary graph",
		Long: `neo4japanese starts a detached Neo4j container preconfigured for the
JMdict Japanese-English dictionary graph (published HTTP and Bolt ports,
data/logs/import/plugins volumes, APOC and Graph Data Science plugins),
and imports the JMdict XML into it.

With no configuration, "neo4japanese launch" issues exactly:

  docker run -d --name neo4japanese -p 7474:7474 -p 7687:7687 \
    -v $HOME/neo4j/data:/data -v $HOME/neo4j/logs:/logs \
    -v $HOME/neo4j/import:/var/lib/neo4j/import -v $HOME/neo4j/plugins:/plugins \
    -e NEO4J_AUTH=neo4j/japanese -e NEO4JLABS_PLUGINS='["apoc","graph-data-science"]' \
    -e NEO4J_apoc_export_file_enabled=true -e NEO4J_apoc_import_file_enabled=true \
    -e NEO4J_apoc_import_file_use__neo4j__config=true neo4j:4.4`,

		// SilenceUsage keeps cobra from printing usage on every error.
		SilenceUsage: true,

		// SilenceErrors leaves error output to exitCode, which prints text
		// or JSON and stays silent for runtime failures.
		SilenceErrors: true,

		// Version is displayed by --version.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// PersistentPreRunE runs before every subcommand, after flags are
		// parsed, so the logger level reflects --verbose and --quiet.
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			configureLogger()
			return nil
		},
	}

	// Persistent flags are inherited by every subcommand.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Log warnings and errors only")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Launch profile file (.yaml, .json, .jsonc, .toml) [$NEO4JAPANESE_CONFIG]")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	// Register subcommands. Each one lives in its own file (launch.go,
	// compose.go, import.go) and returns a *cobra.Command.
	rootCmd.AddCommand(NewLaunchCommand())
	rootCmd.AddCommand(NewComposeCommand())
	rootCmd.AddCommand(NewImportCommand())

	return rootCmd
}

// Execute runs the root command and exits with the resulting status.
// An interrupt cancels the command's context, which also stops a running
// container runtime child process.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

// exitCode reports err and returns the process exit status for it.
//
// A runtime failure exits with the runtime's own status. The runtime has
// already printed its diagnostic, so nothing is added in text mode.
// CLIErrors carry their own code; other errors exit with 1.
func exitCode(err error) int {
	if err == nil {
		return int(model.ExitSuccess)
	}

	// The runtime already wrote its own diagnostic to stderr. Repeating it
	// in text mode would print the same failure twice.
	var runErr *model.RuntimeExitError
	if errors.As(err, &runErr) {
		if jsonOutput {
			printError(runErr.Error(), errors.New(runErr.Stderr))
		}
		// ExitCode() is -1 when the runtime was killed by a signal.
		if runErr.Code <= 0 {
			return int(model.ExitGeneralError)
		}
		return runErr.Code
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(cliErr.Message, cliErr.Err)
		return int(cliErr.Code)
	}

	// Generic error: exit with code 1.
	printError(err.Error(), nil)
	return int(model.ExitGeneralError)
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]any{
			"error": map[string]any{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]any); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode; stdout is reserved for
		// command results.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(errOut, string(data))
		return
	}

	// Text format: "Error: <message>[: <cause>]" on stderr.
	if underlying != nil {
		fmt.Fprintf(errOut, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(errOut, "Error: %s\n", message)
	}
}

// configureLogger applies --verbose and --quiet.
func configureLogger() {
	switch {
	case verbose:
		logger.SetLevel(log.DebugLevel)
	case quiet:
		logger.SetLevel(log.WarnLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
}

// VerboseLog logs a debug message; it is shown only with --verbose.
func VerboseLog(format string, args ...any) {
	logger.Debugf(format, args...)
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// newEnv returns a viper instance reading NEO4JAPANESE_* variables, with
// dashes in keys mapped to underscores.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadProfile returns the launch profile from --config, NEO4JAPANESE_CONFIG
// or the built-in defaults, in that order.
func loadProfile() (*config.Profile, error) {
	path := configPath
	if path == "" {
		path = newEnv().GetString("config")
	}
	if path == "" {
		VerboseLog("Using built-in launch profile")
		return config.Default()
	}
	VerboseLog("Loading launch profile %s", path)
	return config.Load(path)
}
