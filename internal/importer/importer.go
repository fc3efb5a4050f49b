// Package importer streams a JMdict file into the graph store in batches.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/charmbracelet/log"

	"github.com/shinji-kodama/neo4japanese/internal/graph"
	"github.com/shinji-kodama/neo4japanese/internal/jmdict"
	"github.com/shinji-kodama/neo4japanese/internal/model"
)

// DefaultBatchSize is the number of entries written per transaction.
const DefaultBatchSize = 1024

// Writer persists decoded entries. *graph.Store implements it.
type Writer interface {
	EnsureSchema(ctx context.Context) error
	WriteBatch(ctx context.Context, entries []*jmdict.Entry) (graph.BatchStats, error)
	WriteRefs(ctx context.Context, refs []jmdict.Ref) (int, error)
}

// Summary reports what an import did.
//
// Refs counts the cross-references read from the file. RefRelsCreated
// counts the RELATED_TO and ANTONYM_OF relationships those references
// produced: a reference whose target is missing creates none, one whose
// kanji form is shared by several entries creates one per entry, and a
// re-import creates none because the relationships already exist.
type Summary struct {
	Entries        int           `json:"entries"`
	Batches        int           `json:"batches"`
	Refs           int           `json:"refs"`
	RefRelsCreated int           `json:"refRelationshipsCreated"`
	NodesCreated   int           `json:"nodesCreated"`
	RelsCreated    int           `json:"relationshipsCreated"`
	Elapsed        time.Duration `json:"elapsedNs"`
}

// Importer reads entries from a JMdict stream and writes them through
// Writer. Cross-references are written last, once every entry they may
// point at exists.
type Importer struct {
	Writer    Writer
	BatchSize int
	Clock     clock.Clock
	Logger    *log.Logger
}

// New returns an Importer with the default batch size and wall clock.
func New(w Writer, logger *log.Logger) *Importer {
	return &Importer{
		Writer:    w,
		BatchSize: DefaultBatchSize,
		Clock:     clock.NewClock(),
		Logger:    logger,
	}
}

// Run imports every entry in r. On failure the returned Summary covers
// the batches committed before the error.
func (im *Importer) Run(ctx context.Context, r io.Reader) (Summary, error) {
	if im.BatchSize <= 0 {
		return Summary{}, model.NewCLIError(
			model.ExitConfigInvalid,
			fmt.Sprintf("batch size must be positive, got %d", im.BatchSize),
		)
	}
	clk := im.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	logger := im.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	start := clk.Now()
	var sum Summary

	if err := im.Writer.EnsureSchema(ctx); err != nil {
		return sum, importError(ctx, "create constraints and indexes", err)
	}
	logger.Debug("Schema ready")

	dec := jmdict.NewDecoder(r)
	batch := make([]*jmdict.Entry, 0, im.BatchSize)
	var refs []jmdict.Ref

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		stats, err := im.Writer.WriteBatch(ctx, batch)
		if err != nil {
			return importError(ctx, fmt.Sprintf("write batch %d", sum.Batches+1), err)
		}
		sum.Batches++
		sum.Entries += len(batch)
		sum.NodesCreated += stats.NodesCreated
		sum.RelsCreated += stats.RelationshipsCreated
		logger.Info("Processed batch",
			"batch", sum.Batches,
			"entries", sum.Entries,
			"elapsed", clk.Since(start).Round(time.Millisecond),
		)
		batch = batch[:0]
		return nil
	}

	for {
		// Cancellation between entries; cancellation inside a write is
		// caught by importError.
		if err := ctx.Err(); err != nil {
			return sum, interrupted(err)
		}

		entry, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, model.WrapCLIError(model.ExitImportFailed, "failed to parse JMdict", err)
		}

		batch = append(batch, entry)
		refs = append(refs, entry.Refs()...)
		if len(batch) == im.BatchSize {
			if err := flush(); err != nil {
				return sum, err
			}
		}
	}
	if err := flush(); err != nil {
		return sum, err
	}

	sum.Refs = len(refs)
	for i, n := 0, 1; i < len(refs); i, n = i+im.BatchSize, n+1 {
		if err := ctx.Err(); err != nil {
			return sum, interrupted(err)
		}
		end := min(i+im.BatchSize, len(refs))
		created, err := im.Writer.WriteRefs(ctx, refs[i:end])
		if err != nil {
			return sum, importError(ctx, fmt.Sprintf("write reference batch %d", n), err)
		}
		sum.RefRelsCreated += created
		sum.RelsCreated += created
		logger.Info("Processed reference batch",
			"batch", n,
			"elapsed", clk.Since(start).Round(time.Millisecond),
		)
	}

	sum.Elapsed = clk.Since(start)
	return sum, nil
}

// interrupted reports a cancelled import. It exits with the general
// error code, like any other interrupted command.
func interrupted(err error) error {
	return model.WrapCLIError(model.ExitGeneralError, "import interrupted", err)
}

// importError classifies a Writer failure.
//
// A write that fails because ctx was cancelled (SIGINT while a transaction
// is in flight) is an interruption, whatever error the driver wrapped it
// in. Otherwise an existing exit code (e.g. database unavailable) is kept
// and everything else is a failed import.
func importError(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return interrupted(err)
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return model.WrapCLIError(cliErr.Code, what, err)
	}
	return model.WrapCLIError(model.ExitImportFailed, what, err)
}
