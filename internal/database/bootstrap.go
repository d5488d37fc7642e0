package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/askdb/askdb/internal/schema"
)

// markerContent matches what the tool has always written; the
// bootstrapper only ever checks presence, never content.
const markerContent = "ok"

// Bootstrapper opens the local database and, on the very first run,
// executes the downloaded schema script against it. The init marker
// file is the durable record that the DDL ran; it is written only
// after the script commits, so a partial failure leaves the next run
// free to retry.
type Bootstrapper struct {
	Driver     string
	Path       string
	DSN        string
	SchemaPath string
	MarkerPath string
	Logger     *slog.Logger

	// open is seamed for tests; nil means sql.Open.
	open func(driverName, dataSourceName string) (*sql.DB, error)
}

func (b *Bootstrapper) Open(ctx context.Context) (*sql.DB, error) {
	driverName, ok := driverNames[b.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", b.Driver)
	}
	dsn, err := b.dataSourceName()
	if err != nil {
		return nil, err
	}

	firstRun, err := b.needsInit()
	if err != nil {
		return nil, err
	}

	openFunc := b.open
	if openFunc == nil {
		openFunc = sql.Open
	}
	db, err := openFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if firstRun {
		if err := b.runSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := writeMarker(b.MarkerPath); err != nil {
			_ = db.Close()
			return nil, err
		}
		if b.Logger != nil {
			b.Logger.InfoContext(ctx, "database initialized",
				slog.String("driver", b.Driver),
				slog.String("schema", b.SchemaPath),
			)
		}
	}
	return db, nil
}

func (b *Bootstrapper) dataSourceName() (string, error) {
	switch b.Driver {
	case "sqlite", "duckdb":
		if strings.TrimSpace(b.Path) == "" {
			return "", fmt.Errorf("database path is required for driver %q", b.Driver)
		}
		if err := os.MkdirAll(filepath.Dir(b.Path), 0o755); err != nil {
			return "", fmt.Errorf("create database directory: %w", err)
		}
		return b.Path, nil
	case "postgres":
		if strings.TrimSpace(b.DSN) == "" {
			return "", fmt.Errorf("database DSN is required for the postgres driver")
		}
		return b.DSN, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", b.Driver)
	}
}

func (b *Bootstrapper) needsInit() (bool, error) {
	if strings.TrimSpace(b.MarkerPath) == "" {
		return false, fmt.Errorf("init marker path is required")
	}
	if _, err := os.Stat(b.MarkerPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat init marker: %w", err)
	}
	return true, nil
}

// runSchema executes the full schema script inside one transaction:
// either every statement lands or none do.
func (b *Bootstrapper) runSchema(ctx context.Context, db *sql.DB) error {
	raw, err := os.ReadFile(b.SchemaPath)
	if err != nil {
		return fmt.Errorf("read schema script: %w", err)
	}
	script := string(raw)
	if _, err := schema.ExtractDDL(script); err != nil {
		return fmt.Errorf("validate schema script: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute schema script: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}

func writeMarker(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(markerContent), 0o644); err != nil {
		return fmt.Errorf("write init marker: %w", err)
	}
	return nil
}
