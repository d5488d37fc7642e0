package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/askdb/askdb/internal/schema"
)

// TrainingProvider accepts schema and example material. Training is
// assumed idempotent on the provider side but costs a paid call, so
// the trainer gates it behind a durable marker.
type TrainingProvider interface {
	TrainDDL(ctx context.Context, ddl string) error
	TrainSQL(ctx context.Context, sql string) error
}

type Trainer struct {
	Provider   TrainingProvider
	MarkerPath string
	Logger     *slog.Logger
}

// TrainOnce primes the provider with every table definition in the
// script plus a sample query against the first table. It runs at most
// once per deployment: the marker is written only after every
// submission succeeds, so a failed run retries next start.
func (t *Trainer) TrainOnce(ctx context.Context, script string) error {
	if t.Provider == nil {
		return fmt.Errorf("training provider is required")
	}
	if t.MarkerPath == "" {
		return fmt.Errorf("trained marker path is required")
	}

	if _, err := os.Stat(t.MarkerPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat trained marker: %w", err)
	}

	ddl, err := schema.ExtractDDL(script)
	if err != nil {
		return fmt.Errorf("extract training DDL: %w", err)
	}
	if err := t.Provider.TrainDDL(ctx, ddl); err != nil {
		return fmt.Errorf("submit training DDL: %w", err)
	}

	if table, ok := schema.FirstTableName(ddl); ok {
		sample := fmt.Sprintf("SELECT * FROM %s LIMIT 5;", table)
		if err := t.Provider.TrainSQL(ctx, sample); err != nil {
			return fmt.Errorf("submit training sample: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(t.MarkerPath), 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	if err := os.WriteFile(t.MarkerPath, []byte("trained"), 0o644); err != nil {
		return fmt.Errorf("write trained marker: %w", err)
	}
	if t.Logger != nil {
		t.Logger.InfoContext(ctx, "provider trained", slog.String("marker", t.MarkerPath))
	}
	return nil
}
