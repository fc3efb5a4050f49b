package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/neo4japanese/internal/docker"
	"github.com/shinji-kodama/neo4japanese/internal/model"
)

// composeFlags holds the flag values for the compose command.
type composeFlags struct {
	output string // --output: file to write instead of stdout
}

// NewComposeCommand creates the "compose" cobra command.
func NewComposeCommand() *cobra.Command {
	flags := &composeFlags{}

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Print a Compose file equivalent to the launch",
		Long: `Render the launch profile as a Docker Compose file with a single service
(same container name, image, ports, volumes and environment).

Examples:
  neo4japanese compose > compose.yaml
  neo4japanese compose --output compose.yaml && docker compose up -d`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompose(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write the Compose file to this path")

	return cmd
}

func runCompose(_ context.Context, out io.Writer, flags *composeFlags) error {
	profile, err := loadProfile()
	if err != nil {
		return err
	}
	spec, err := profile.LaunchSpec()
	if err != nil {
		return err
	}

	data, err := docker.RenderCompose(spec)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to render Compose file", err)
	}

	// Without --output the file goes to stdout, ready for redirection.
	if flags.output == "" {
		_, err := out.Write(data)
		return err
	}

	// Create parent directories so "--output deploy/compose.yaml" works
	// in a fresh checkout.
	if err := os.MkdirAll(filepath.Dir(flags.output), 0o755); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to create output directory", err)
	}
	if err := os.WriteFile(flags.output, data, 0o644); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("failed to write %s", flags.output), err)
	}
	logger.Info("Wrote Compose file", "path", flags.output)
	return nil
}
