package duplicate

import (
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// MatchKind selects the value comparison a rule applies.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// Rule is one configured duplicate-detection criterion: a set of attribute
// keys and the minimum number of them that must match for the rule to fire.
// Rules are evaluated independently; any firing rule makes a stored identity
// a suspect.
type Rule struct {
	ID         string
	Priority   int
	Keys       []id.AttrKey
	Kind       MatchKind
	MinMatches int
}

// Validate rejects rules that could never fire or would match everything.
func (r Rule) Validate() error {
	if r.ID == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "duplicate rule id cannot be empty")
	}
	if len(r.Keys) == 0 {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "duplicate rule %s has no attribute keys", r.ID)
	}
	if r.MinMatches < 1 || r.MinMatches > len(r.Keys) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"duplicate rule %s requires %d matches over %d keys", r.ID, r.MinMatches, len(r.Keys))
	}
	if r.Kind != MatchExact && r.Kind != MatchFuzzy {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "duplicate rule %s has unknown match kind %q", r.ID, r.Kind)
	}
	return nil
}
