// Package query runs resolved SQL against the bootstrapped database
// and shapes the answer as an ordered, named-column table.
package query

import (
	"fmt"
)

// Table is an ephemeral query result: named columns and rows in the
// order the engine returned them.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// ExecutionError wraps a driver rejection. Callers render it as
// "no results or query failed" and keep the session alive; it is
// distinguishable from a successful empty table.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %q: %v", e.SQL, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
