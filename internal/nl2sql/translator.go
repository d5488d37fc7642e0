// Package nl2sql turns natural-language questions into executable SQL
// by walking an ordered list of provider tiers with a durable
// translation cache in front.
package nl2sql

import "context"

// Result is a resolved translation. Provider names the tier that
// produced the SQL, or "cache" on a hit.
type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Cached   bool   `json:"cached"`
}

// Strategy is one tier of the resolution pipeline. Attempt returns
// the provider's raw response; the pipeline owns sanitization and the
// decision to fall through to the next tier.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, question string) (string, error)
}

// DataAccess is the capability a provider uses to inspect live data.
// It is injected at construction; a provider without it never offers
// data access to the remote service.
type DataAccess interface {
	Run(ctx context.Context, sql string) (columns []string, rows [][]any, err error)
}
