// Package graph writes JMdict entries into Neo4j.
//
// The graph shape:
//
//	(:Entry {ent_seq})-[:CONTAINS]->(:Kanji {keb})
//	(:Entry)-[:CONTAINS]->(:Reading {reb})
//	(:Kanji)-[:HAS_READING]->(:Reading)
//	(:Entry)-[:CONTAINS {rank}]->(:Sense)
//	(:Sense)-[:HAS_GLOSS]->(:Gloss)
//	(:Kanji|Reading)-[:HAS_SENSE]->(:Sense)
//	(:Sense)-[:SOURCED_FROM {phrase, partial, wasei}]->(:Language {name})
//	(:Sense)-[:USED_IN {ex_text}]->(:Sentence {ex_srce})
//	(:Sense)-[:RELATED_TO|ANTONYM_OF]->(:Sense|Entry)
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/shinji-kodama/neo4japanese/internal/jmdict"
	"github.com/shinji-kodama/neo4japanese/internal/model"
)

// Settings configures the connection to Neo4j.
type Settings struct {
	URI      string
	User     string
	Password string

	// Logger receives driver diagnostics. Nil discards them.
	Logger *log.Logger

	// DriverDebug forwards the driver's info and debug output as well as
	// its warnings and errors.
	DriverDebug bool
}

// BatchStats summarizes the changes made by one write.
type BatchStats struct {
	NodesCreated         int
	RelationshipsCreated int
}

func (b *BatchStats) add(c neo4j.Counters) {
	b.NodesCreated += c.NodesCreated()
	b.RelationshipsCreated += c.RelationshipsCreated()
}

// Store writes dictionary data through a Neo4j driver.
type Store struct {
	driver neo4j.DriverWithContext
}

// Open creates a driver for s.URI and verifies that the database is
// reachable. Failures are reported with ExitDatabaseUnavailable.
func Open(ctx context.Context, s Settings) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(
		s.URI,
		neo4j.BasicAuth(s.User, s.Password, ""),
		func(c *neo4j.Config) {
			c.Log = newDriverLogger(s.Logger, s.DriverDebug)
		},
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDatabaseUnavailable,
			fmt.Sprintf("invalid Neo4j URI %q", s.URI),
			err,
		)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, model.WrapCLIError(
			model.ExitDatabaseUnavailable,
			fmt.Sprintf("cannot connect to Neo4j at %s (is the container running?)", s.URI),
			err,
		)
	}

	return &Store{driver: driver}, nil
}

// Close releases the driver's connections.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureSchema creates the uniqueness constraints and lookup indexes.
// Running it against an initialized database is a no-op.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := neo4j.ExecuteQuery(ctx, s.driver, stmt, nil, neo4j.EagerResultTransformer); err != nil {
			return fmt.Errorf("create schema: %w", classify(err))
		}
	}
	return nil
}

// WriteBatch merges entries and everything they contain in a single write
// transaction. Entries already present are left as they are.
func (s *Store) WriteBatch(ctx context.Context, entries []*jmdict.Entry) (BatchStats, error) {
	if len(entries) == 0 {
		return BatchStats{}, nil
	}
	params := map[string]any{"entries": entryParams(entries)}
	stats, err := s.write(ctx, batchStatements, params)
	if err != nil {
		return stats, fmt.Errorf("write entries %d..%d: %w",
			entries[0].EntSeq, entries[len(entries)-1].EntSeq, err)
	}
	return stats, nil
}

// WriteRefs links senses to the entries or senses their cross-references
// and antonyms point at. It must run after every referenced entry has
// been written. Returns the number of relationships created.
func (s *Store) WriteRefs(ctx context.Context, refs []jmdict.Ref) (int, error) {
	groups := refParams(refs)

	keys := make([]refKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].relType != keys[j].relType {
			return keys[i].relType < keys[j].relType
		}
		return keys[i].byKanji && !keys[j].byKanji
	})

	var total BatchStats
	for _, k := range keys {
		stats, err := s.write(ctx,
			[]string{refStatement(k.relType, k.byKanji)},
			map[string]any{"refs": groups[k]},
		)
		if err != nil {
			return total.RelationshipsCreated, fmt.Errorf("write %s references: %w", k.relType, err)
		}
		total.RelationshipsCreated += stats.RelationshipsCreated
	}
	return total.RelationshipsCreated, nil
}

// write runs stmts in order in one managed write transaction. The driver
// retries the whole function on transient errors.
func (s *Store) write(ctx context.Context, stmts []string, params map[string]any) (BatchStats, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	res, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		var stats BatchStats
		for _, stmt := range stmts {
			result, err := tx.Run(ctx, stmt, params)
			if err != nil {
				return nil, err
			}
			summary, err := result.Consume(ctx)
			if err != nil {
				return nil, err
			}
			stats.add(summary.Counters())
		}
		return stats, nil
	})
	if err != nil {
		return BatchStats{}, classify(err)
	}
	return res.(BatchStats), nil
}

// classify marks connectivity failures so the CLI reports them as an
// unavailable database rather than a failed import.
func classify(err error) error {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return err
	}
	if neo4j.IsConnectivityError(err) {
		return model.WrapCLIError(model.ExitDatabaseUnavailable, "lost connection to Neo4j", err)
	}
	return err
}
