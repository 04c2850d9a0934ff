package duplicate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

type stubCandidates struct {
	identities []*identity.Identity
	err        error
}

func (s *stubCandidates) FindCandidates(context.Context, identity.AttributeSet, []id.AttrKey) ([]*identity.Identity, error) {
	return s.identities, s.err
}

type stubWeights map[id.AttrKey]int

func (w stubWeights) Definition(key id.AttrKey) (identity.KeyDefinition, error) {
	weight, ok := w[key]
	if !ok {
		return identity.KeyDefinition{}, dErrors.Newf(dErrors.CodeInternal, "unknown attribute key %q", key)
	}
	return identity.KeyDefinition{Key: key, Weight: weight}, nil
}

type EvaluatorSuite struct {
	suite.Suite

	source    *stubCandidates
	evaluator *Evaluator
	rules     []Rule
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorSuite))
}

func (s *EvaluatorSuite) SetupTest() {
	s.source = &stubCandidates{}
	weights := stubWeights{
		identity.KeyFamilyName: 10,
		identity.KeyGivenName:  10,
		identity.KeyBirthDate:  15,
	}
	evaluator, err := NewEvaluator(s.source, weights)
	s.Require().NoError(err)
	s.evaluator = evaluator

	s.rules = []Rule{
		{
			ID:         "exact-name-birthdate",
			Priority:   1,
			Keys:       []id.AttrKey{identity.KeyFamilyName, identity.KeyBirthDate},
			Kind:       MatchExact,
			MinMatches: 2,
		},
		{
			ID:         "fuzzy-full-name",
			Priority:   2,
			Keys:       []id.AttrKey{identity.KeyFamilyName, identity.KeyGivenName, identity.KeyBirthDate},
			Kind:       MatchFuzzy,
			MinMatches: 2,
		},
	}
}

func stored(cuid id.CUID, family, given, birthDate string) *identity.Identity {
	return &identity.Identity{
		CUID:   cuid,
		Active: true,
		Attributes: identity.AttributeSet{
			identity.KeyFamilyName: {Value: family},
			identity.KeyGivenName:  {Value: given},
			identity.KeyBirthDate:  {Value: birthDate},
		},
	}
}

func candidate(family, given, birthDate string) identity.AttributeSet {
	return identity.AttributeSet{
		identity.KeyFamilyName: {Value: family},
		identity.KeyGivenName:  {Value: given},
		identity.KeyBirthDate:  {Value: birthDate},
	}
}

func (s *EvaluatorSuite) TestFindSuspects() {
	ctx := context.Background()

	s.Run("exact rule fires on full agreement", func() {
		s.source.identities = []*identity.Identity{stored("cuid-1", "DUPONT", "MARIE", "1990-04-12")}

		suspects, err := s.evaluator.FindSuspects(ctx, candidate("DUPONT", "MARIE", "1990-04-12"), "", s.rules)
		s.Require().NoError(err)
		s.Require().Len(suspects, 1)
		s.Equal(id.CUID("cuid-1"), suspects[0].CUID)
		// Both rules fire; the highest-priority one is reported.
		s.Equal("exact-name-birthdate", suspects[0].RuleID)
		s.Equal(25, suspects[0].Score)
	})

	s.Run("fuzzy rule catches near-matches the exact rule misses", func() {
		s.source.identities = []*identity.Identity{stored("cuid-2", "DUPOND", "MARIE", "1990-04-12")}

		suspects, err := s.evaluator.FindSuspects(ctx, candidate("DUPONT", "MARIE", "1990-04-12"), "", s.rules)
		s.Require().NoError(err)
		s.Require().Len(suspects, 1)
		s.Equal("fuzzy-full-name", suspects[0].RuleID)
	})

	s.Run("below min matches nothing fires", func() {
		s.source.identities = []*identity.Identity{stored("cuid-3", "MARTIN", "PAUL", "1990-04-12")}

		suspects, err := s.evaluator.FindSuspects(ctx, candidate("DUPONT", "MARIE", "1990-04-12"), "", s.rules)
		s.Require().NoError(err)
		s.Empty(suspects)
	})

	s.Run("self is excluded during update checks", func() {
		s.source.identities = []*identity.Identity{stored("cuid-self", "DUPONT", "MARIE", "1990-04-12")}

		suspects, err := s.evaluator.FindSuspects(ctx, candidate("DUPONT", "MARIE", "1990-04-12"), "cuid-self", s.rules)
		s.Require().NoError(err)
		s.Empty(suspects)
	})

	s.Run("empty values never count as matches", func() {
		s.source.identities = []*identity.Identity{stored("cuid-4", "DUPONT", "", "")}

		suspects, err := s.evaluator.FindSuspects(ctx, candidate("DUPONT", "", ""), "", s.rules)
		s.Require().NoError(err)
		s.Empty(suspects)
	})

	s.Run("no rules means no suspects", func() {
		s.source.identities = []*identity.Identity{stored("cuid-5", "DUPONT", "MARIE", "1990-04-12")}

		suspects, err := s.evaluator.FindSuspects(ctx, candidate("DUPONT", "MARIE", "1990-04-12"), "", nil)
		s.Require().NoError(err)
		s.Empty(suspects)
	})

	s.Run("invalid rule fails the evaluation", func() {
		_, err := s.evaluator.FindSuspects(ctx, candidate("DUPONT", "MARIE", "1990-04-12"), "",
			[]Rule{{ID: "", Keys: []id.AttrKey{identity.KeyFamilyName}, Kind: MatchExact, MinMatches: 1}})
		s.Error(err)
	})
}

func (s *EvaluatorSuite) TestDeterministicOrdering() {
	s.source.identities = []*identity.Identity{
		stored("cuid-b", "DUPONT", "MARIE", "1990-04-12"),
		stored("cuid-a", "DUPONT", "MARIE", "1990-04-12"),
		stored("cuid-c", "DUPOND", "MARIE", "1990-04-12"),
	}

	first, err := s.evaluator.FindSuspects(context.Background(), candidate("DUPONT", "MARIE", "1990-04-12"), "", s.rules)
	s.Require().NoError(err)
	s.Require().Len(first, 3)

	// Priority 1 hits come first, CUID breaks the tie; the fuzzy-only hit
	// trails on priority 2.
	s.Equal(id.CUID("cuid-a"), first[0].CUID)
	s.Equal(id.CUID("cuid-b"), first[1].CUID)
	s.Equal(id.CUID("cuid-c"), first[2].CUID)
	s.Equal("fuzzy-full-name", first[2].RuleID)

	// The concurrent rule phase must not leak into the ordering.
	for range 10 {
		again, err := s.evaluator.FindSuspects(context.Background(), candidate("DUPONT", "MARIE", "1990-04-12"), "", s.rules)
		s.Require().NoError(err)
		s.Equal(first, again)
	}
}

func (s *EvaluatorSuite) TestWeightFallback() {
	// Unknown keys score 1 rather than failing the evaluation.
	rules := []Rule{{
		ID:         "email-exact",
		Priority:   1,
		Keys:       []id.AttrKey{identity.KeyEmail},
		Kind:       MatchExact,
		MinMatches: 1,
	}}
	s.source.identities = []*identity.Identity{{
		CUID:   "cuid-6",
		Active: true,
		Attributes: identity.AttributeSet{
			identity.KeyEmail: {Value: "a@b.fr"},
		},
	}}

	suspects, err := s.evaluator.FindSuspects(context.Background(),
		identity.AttributeSet{identity.KeyEmail: {Value: "a@b.fr"}}, "", rules)
	s.Require().NoError(err)
	s.Require().Len(suspects, 1)
	s.Equal(1, suspects[0].Score)
}
