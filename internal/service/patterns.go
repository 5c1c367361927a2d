package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"gardener/internal/domain"
)

// ReconcileResult counts the changes made to the pattern log.
type ReconcileResult struct {
	Added   int
	Retired int
}

// PatternReconciler keeps the append-only pattern log in line with the
// desired expression list.
type PatternReconciler struct {
	store  PatternStore
	logger *slog.Logger
}

func NewPatternReconciler(store PatternStore, logger *slog.Logger) *PatternReconciler {
	return &PatternReconciler{store: store, logger: logger}
}

// Reconcile retires effective patterns missing from desired, then appends a
// new pattern for every desired expression that is not effective anymore.
// Retirement runs first so an expression dropped and listed again comes
// back as a new row.
//
// A pattern in memory only changes after its write succeeded, so on error
// the returned working set still matches the store.
func (r *PatternReconciler) Reconcile(ctx context.Context, patterns []*domain.Pattern, desired []string, now time.Time) ([]*domain.Pattern, ReconcileResult, error) {
	var res ReconcileResult

	wanted := make(map[string]bool, len(desired))
	for _, expr := range desired {
		wanted[expr] = true
	}

	for _, p := range patterns {
		if !p.Effective() || wanted[p.Expression] {
			continue
		}

		retired := *p
		retired.Retire(now)
		if _, err := r.store.Upsert(ctx, &retired); err != nil {
			return patterns, res, fmt.Errorf("retire pattern %d: %w", p.ID, err)
		}
		*p = retired
		res.Retired++
		r.logger.Info("retired pattern", "pattern_id", p.ID, "expression", p.Expression)
	}

	effective := make(map[string]bool)
	for _, p := range patterns {
		if p.Effective() {
			effective[p.Expression] = true
		}
	}

	for _, expr := range desired {
		if effective[expr] {
			continue
		}
		if _, err := regexp.Compile(expr); err != nil {
			r.logger.Warn("skipping invalid pattern", "expression", expr, "error", err)
			continue
		}

		p := &domain.Pattern{Expression: expr, AddedAt: now}
		id, err := r.store.Upsert(ctx, p)
		if err != nil {
			return patterns, res, fmt.Errorf("add pattern %q: %w", expr, err)
		}
		p.ID = id
		patterns = append(patterns, p)
		effective[expr] = true
		res.Added++
		r.logger.Info("added pattern", "pattern_id", id, "expression", expr)
	}

	return patterns, res, nil
}
