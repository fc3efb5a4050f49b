package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shinji-kodama/neo4japanese/internal/config"
	"github.com/shinji-kodama/neo4japanese/internal/graph"
	"github.com/shinji-kodama/neo4japanese/internal/importer"
	"github.com/shinji-kodama/neo4japanese/internal/model"
)

// Import flag names; each is also read from NEO4JAPANESE_<NAME>.
const (
	flagNeo4jURI    = "neo4j-uri"
	flagUser        = "user"
	flagPassword    = "password"
	flagBatchSize   = "batch-size"
	flagNeo4jDebug  = "neo4j-debug"
	readBufferBytes = 1 << 20
)

// importSettings is the resolved connection and batching configuration.
type importSettings struct {
	URI         string
	User        string
	Password    string
	BatchSize   int
	DriverDebug bool
}

// NewImportCommand creates the "import" cobra command.
func NewImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <xml-file>",
		Short: "Import a JMdict XML file into the running Neo4j",
		Long: `Parse a JMdict XML file and write its entries, kanji, readings, senses,
glosses, loanword sources, example sentences and cross-references into Neo4j.

Connection settings default to the launch profile (Bolt port and NEO4J_AUTH
credential), so "launch" followed by "import" needs no flags. Each flag can
also be set through the environment, e.g. NEO4JAPANESE_NEO4J_URI.

Examples:
  neo4japanese import JMdict_e_examp.xml
  neo4japanese import -b 512 -n neo4j://db.internal:7687 JMdict_e.xml`,

		Args: cobra.ExactArgs(1),
	}

	cmd.Flags().StringP(flagNeo4jURI, "n", "", "Neo4j URI (default: from launch profile, neo4j://localhost:7687)")
	cmd.Flags().StringP(flagUser, "u", "", "Neo4j user (default: from launch profile)")
	cmd.Flags().StringP(flagPassword, "p", "", "Neo4j password (default: from launch profile)")
	cmd.Flags().IntP(flagBatchSize, "b", importer.DefaultBatchSize, "Entries per write transaction")
	cmd.Flags().Bool(flagNeo4jDebug, false, "Show Neo4j driver debug messages")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		profile, err := loadProfile()
		if err != nil {
			return err
		}
		v := newEnv()
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}
		settings, err := resolveImportSettings(v, profile)
		if err != nil {
			return err
		}
		return runImport(cmd.Context(), cmd.OutOrStdout(), args[0], settings)
	}

	return cmd
}

// resolveImportSettings applies flags, then NEO4JAPANESE_* variables, then
// values derived from the launch profile.
func resolveImportSettings(v *viper.Viper, p *config.Profile) (importSettings, error) {
	// Viper consults a changed flag first, then NEO4JAPANESE_* variables,
	// then these defaults, then the flag's own default.
	v.SetDefault(flagNeo4jURI, p.BoltURI())
	v.SetDefault(flagUser, p.Auth.User)
	v.SetDefault(flagPassword, p.Auth.Password)

	s := importSettings{
		URI:         v.GetString(flagNeo4jURI),
		User:        v.GetString(flagUser),
		Password:    v.GetString(flagPassword),
		BatchSize:   v.GetInt(flagBatchSize),
		DriverDebug: v.GetBool(flagNeo4jDebug),
	}
	if s.BatchSize <= 0 {
		return s, model.NewCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("--batch-size must be positive, got %d", s.BatchSize))
	}
	if strings.TrimSpace(s.URI) == "" {
		return s, model.NewCLIError(model.ExitConfigInvalid, "Neo4j URI is empty")
	}
	return s, nil
}

func runImport(ctx context.Context, out io.Writer, path string, s importSettings) error {
	// Step 1: Open the dictionary before connecting, so a typo in the path
	// fails without touching the database.
	f, err := os.Open(path)
	if err != nil {
		return model.WrapCLIError(model.ExitImportFailed, fmt.Sprintf("cannot open %s", path), err)
	}
	defer f.Close()

	if info, statErr := f.Stat(); statErr == nil {
		logger.Info("Parsing JMdict XML", "file", path, "size", bytefmt.ByteSize(uint64(info.Size())))
	}

	// Step 2: Connect. Open verifies connectivity and reports
	// ExitDatabaseUnavailable when the container is not up yet.
	logger.Info("Connecting to Neo4j", "uri", s.URI, "user", s.User)
	store, err := graph.Open(ctx, graph.Settings{
		URI:         s.URI,
		User:        s.User,
		Password:    s.Password,
		Logger:      logger,
		DriverDebug: s.DriverDebug,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(context.Background()); cerr != nil {
			logger.Warn("Closing Neo4j driver failed", "err", cerr)
		}
	}()

	// Step 3: Stream entries in batches, then write cross-references.
	im := importer.New(store, logger)
	im.BatchSize = s.BatchSize

	sum, err := im.Run(ctx, bufio.NewReaderSize(f, readBufferBytes))
	if err != nil {
		if ctx.Err() != nil {
			logger.Error("Interrupted by user, exiting", "entries", sum.Entries)
		}
		return err
	}

	// Step 4: Report the summary.
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(sum, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}
	printImportSummaryText(out, sum)
	return nil
}

func printImportSummaryText(w io.Writer, sum importer.Summary) {
	lines := []string{
		headerStyle.Render(fmt.Sprintf("Imported %d entries", sum.Entries)),
		field("Batches", fmt.Sprintf("%d", sum.Batches)),
		field("Nodes", fmt.Sprintf("%d created", sum.NodesCreated)),
		field("Links", fmt.Sprintf("%d created", sum.RelsCreated)),
		field("Refs", fmt.Sprintf("%d read, %d links created", sum.Refs, sum.RefRelsCreated)),
		field("Elapsed", sum.Elapsed.Round(time.Millisecond).String()),
	}
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}
