package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/observability"
)

// Executor owns the process-lifetime database handle. Every failure
// comes back as *ExecutionError so a bad query never tears down the
// session.
type Executor struct {
	db *sql.DB
}

func NewExecutor(db *sql.DB) (*Executor, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	return &Executor{db: db}, nil
}

func (e *Executor) Execute(ctx context.Context, sqlText string) (Table, error) {
	if strings.TrimSpace(sqlText) == "" {
		return Table{}, &ExecutionError{SQL: sqlText, Err: fmt.Errorf("sql is required")}
	}

	start := time.Now()
	table, err := e.run(ctx, sqlText)
	observability.ObserveQuery(len(table.Rows), time.Since(start), err)
	if err != nil {
		return Table{}, &ExecutionError{SQL: sqlText, Err: err}
	}
	return table, nil
}

func (e *Executor) run(ctx context.Context, sqlText string) (Table, error) {
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return Table{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Table{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Table{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Table{Columns: columns, Rows: resultRows}, nil
}

// Run satisfies the resolver's data-access capability.
func (e *Executor) Run(ctx context.Context, sqlText string) ([]string, [][]any, error) {
	table, err := e.Execute(ctx, sqlText)
	if err != nil {
		return nil, nil, err
	}
	return table.Columns, table.Rows, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
