// Package duplicate evaluates priority-ordered matching rules against a
// candidate attribute set to flag suspected duplicate identities.
package duplicate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	change "civreg/internal/change/models"
	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// CandidateSource supplies stored identities that could match a candidate on
// the given keys. Implementations may over-return (e.g. block on exact values
// only); the evaluator applies the precise rule matching. Merged and deleted
// identities must not be returned.
type CandidateSource interface {
	FindCandidates(ctx context.Context, attrs identity.AttributeSet, keys []id.AttrKey) ([]*identity.Identity, error)
}

// DefinitionSource resolves attribute weights for scoring; satisfied by the
// certification registry.
type DefinitionSource interface {
	Definition(key id.AttrKey) (identity.KeyDefinition, error)
}

// Evaluator runs the configured duplicate rules. Rules fire independently and
// concurrently; results are deduplicated per identity keeping the
// highest-priority matching rule, and ordered deterministically.
type Evaluator struct {
	source CandidateSource
	defs   DefinitionSource
	logger *slog.Logger
}

type Option func(*Evaluator)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

func NewEvaluator(source CandidateSource, defs DefinitionSource, opts ...Option) (*Evaluator, error) {
	if source == nil {
		return nil, fmt.Errorf("candidate source is required")
	}
	if defs == nil {
		return nil, fmt.Errorf("definition source is required")
	}
	e := &Evaluator{source: source, defs: defs}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type ruleHit struct {
	cuid  id.CUID
	rule  Rule
	score int
}

// FindSuspects evaluates every rule against the candidate. selfCUID excludes
// the candidate's own record during an update (zero for creations).
//
// Determinism: for a fixed rule set, store snapshot, and candidate, the
// returned order is identical across runs — rules are joined after the
// concurrent phase and sorted by (priority asc, score desc, cuid asc).
func (e *Evaluator) FindSuspects(ctx context.Context, candidate identity.AttributeSet, selfCUID id.CUID, rules []Rule) ([]change.Suspect, error) {
	if len(rules) == 0 || len(candidate) == 0 {
		return []change.Suspect{}, nil
	}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	var (
		mu   sync.Mutex
		hits []ruleHit
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, rule := range rules {
		g.Go(func() error {
			stored, err := e.source.FindCandidates(gctx, candidate, rule.Keys)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load duplicate candidates")
			}
			for _, ident := range stored {
				if ident.CUID == selfCUID {
					continue
				}
				score, fired := e.match(rule, candidate, ident.Attributes)
				if !fired {
					continue
				}
				mu.Lock()
				hits = append(hits, ruleHit{cuid: ident.CUID, rule: rule, score: score})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dedupe(hits), nil
}

// match counts the rule's keys whose values agree between candidate and
// stored attributes. The rule fires when the count reaches MinMatches; the
// score is the weight sum of the matched keys.
func (e *Evaluator) match(rule Rule, candidate, stored identity.AttributeSet) (int, bool) {
	matched, score := 0, 0
	for _, key := range rule.Keys {
		cand, okC := candidate[key]
		have, okS := stored[key]
		if !okC || !okS || cand.Value == "" || have.Value == "" {
			continue
		}
		equal := cand.Value == have.Value
		if !equal && rule.Kind == MatchFuzzy {
			equal = fuzzyEqual(cand.Value, have.Value)
		}
		if !equal {
			continue
		}
		matched++
		score += e.weight(key)
	}
	return score, matched >= rule.MinMatches
}

func (e *Evaluator) weight(key id.AttrKey) int {
	def, err := e.defs.Definition(key)
	if err != nil || def.Weight <= 0 {
		return 1
	}
	return def.Weight
}

// dedupe keeps one suspect per identity — the hit from the highest-priority
// (lowest number) rule, highest score on equal priority — and applies the
// deterministic final ordering.
func dedupe(hits []ruleHit) []change.Suspect {
	best := make(map[id.CUID]ruleHit, len(hits))
	for _, h := range hits {
		current, seen := best[h.cuid]
		if !seen || h.rule.Priority < current.rule.Priority ||
			(h.rule.Priority == current.rule.Priority && h.score > current.score) {
			best[h.cuid] = h
		}
	}

	suspects := make([]change.Suspect, 0, len(best))
	for _, h := range best {
		suspects = append(suspects, change.Suspect{
			CUID:         h.cuid,
			RuleID:       h.rule.ID,
			RulePriority: h.rule.Priority,
			Score:        h.score,
		})
	}
	sort.Slice(suspects, func(i, j int) bool {
		if suspects[i].RulePriority != suspects[j].RulePriority {
			return suspects[i].RulePriority < suspects[j].RulePriority
		}
		if suspects[i].Score != suspects[j].Score {
			return suspects[i].Score > suspects[j].Score
		}
		return suspects[i].CUID < suspects[j].CUID
	})
	return suspects
}
