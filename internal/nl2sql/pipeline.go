package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/cache"
	"github.com/askdb/askdb/internal/observability"
)

// ResolutionError means every tier was exhausted without producing
// usable SQL. It carries the per-tier outcomes for the caller's logs.
type ResolutionError struct {
	Question string
	Attempts []TierOutcome
}

type TierOutcome struct {
	Tier string
	Err  error
}

func (e *ResolutionError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		if attempt.Err != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", attempt.Tier, attempt.Err))
		} else {
			parts = append(parts, fmt.Sprintf("%s: unusable response", attempt.Tier))
		}
	}
	return fmt.Sprintf("resolve %q: all tiers failed (%s)", e.Question, strings.Join(parts, "; "))
}

// Pipeline resolves questions through the cache and an ordered list
// of provider tiers. It serializes resolution: the cache assumes a
// single writer.
type Pipeline struct {
	mu     sync.Mutex
	cache  *cache.Cache
	tiers  []Strategy
	logger *slog.Logger
}

func NewPipeline(translations *cache.Cache, tiers []Strategy, logger *slog.Logger) (*Pipeline, error) {
	if translations == nil {
		return nil, fmt.Errorf("translation cache is required")
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one resolver tier is required")
	}
	return &Pipeline{cache: translations, tiers: tiers, logger: logger}, nil
}

// Resolve returns SQL for the question. A cache hit short-circuits
// the tiers entirely. Otherwise each tier is attempted in order; a
// tier failure or unusable response falls through to the next, and
// only the final tier's failure is fatal. The winning SQL is stored
// in the cache before returning.
func (p *Pipeline) Resolve(ctx context.Context, question string) (Result, error) {
	if strings.TrimSpace(question) == "" {
		return Result{}, fmt.Errorf("question is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	defer func() { observability.ObserveResolve(time.Since(start)) }()

	if sql, ok := p.cache.Lookup(question); ok {
		observability.ObserveCacheLookup(true)
		return Result{SQL: sql, Provider: "cache", Cached: true}, nil
	}
	observability.ObserveCacheLookup(false)

	attempts := make([]TierOutcome, 0, len(p.tiers))
	for _, tier := range p.tiers {
		raw, err := tier.Attempt(ctx, question)
		observability.ObserveProviderAttempt(tier.Name(), err)
		if err != nil {
			attempts = append(attempts, TierOutcome{Tier: tier.Name(), Err: err})
			if p.logger != nil {
				p.logger.WarnContext(ctx, "resolver tier failed",
					slog.String("tier", tier.Name()),
					slog.Any("error", err),
				)
			}
			continue
		}

		sql := Sanitize(raw)
		if unusable(sql) {
			attempts = append(attempts, TierOutcome{Tier: tier.Name()})
			continue
		}

		if err := p.cache.Store(question, sql); err != nil {
			return Result{}, err
		}
		result := Result{SQL: sql, Provider: tier.Name()}
		if named, ok := tier.(interface{ Model() string }); ok {
			result.Model = named.Model()
		}
		return result, nil
	}

	return Result{}, &ResolutionError{Question: question, Attempts: attempts}
}
