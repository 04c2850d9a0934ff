// Package refdata loads and caches the read-mostly reference data of the
// engine: duplicate rules, the pivot group definition, certification levels,
// and attribute key definitions. Cached views are swapped atomically on an
// invalidation signal, never mutated in place.
package refdata

import (
	"context"
	"log/slog"
	"sync/atomic"

	"civreg/internal/duplicate"
	"civreg/internal/pivot"
	dErrors "civreg/pkg/domain-errors"
)

// RuleStore loads the duplicate rule list and the pivot group definition.
type RuleStore interface {
	LoadRules(ctx context.Context) ([]duplicate.Rule, error)
	LoadPivotGroup(ctx context.Context) (pivot.Group, error)
}

type ruleSnapshot struct {
	rules []duplicate.Rule
	group pivot.Group
}

// Rules serves the cached rule set. Safe for concurrent readers.
type Rules struct {
	store   RuleStore
	logger  *slog.Logger
	current atomic.Pointer[ruleSnapshot]
}

type RulesOption func(*Rules)

func WithRulesLogger(logger *slog.Logger) RulesOption {
	return func(r *Rules) {
		r.logger = logger
	}
}

// NewRules constructs the rule service and performs the initial load.
func NewRules(ctx context.Context, store RuleStore, opts ...RulesOption) (*Rules, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "rule store is required")
	}
	r := &Rules{store: store}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh reloads rules and pivot group, validating before the swap so a bad
// configuration never replaces a good one.
func (r *Rules) Refresh(ctx context.Context) error {
	rules, err := r.store.LoadRules(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load duplicate rules")
	}
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return err
		}
	}
	group, err := r.store.LoadPivotGroup(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pivot group")
	}

	r.current.Store(&ruleSnapshot{rules: rules, group: group})
	if r.logger != nil {
		r.logger.InfoContext(ctx, "rule reference data refreshed",
			"duplicate_rules", len(rules),
			"pivot_keys", len(group.Keys),
		)
	}
	return nil
}

// Rules returns the duplicate rules in priority order.
func (r *Rules) Rules() []duplicate.Rule {
	return r.current.Load().rules
}

// PivotGroup returns the configured pivot attribute group.
func (r *Rules) PivotGroup() pivot.Group {
	return r.current.Load().group
}
