package refdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"civreg/internal/duplicate"
	identity "civreg/internal/identity/models"
	"civreg/internal/pivot"
	id "civreg/pkg/domain"
)

type RulesSuite struct {
	suite.Suite

	ctx   context.Context
	store *InMemory
}

func TestRulesSuite(t *testing.T) {
	suite.Run(t, new(RulesSuite))
}

func (s *RulesSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = SeedDefaults()
}

func (s *RulesSuite) TestNewRules() {
	s.Run("initial load serves the seeded configuration", func() {
		rules, err := NewRules(s.ctx, s.store)
		s.Require().NoError(err)
		s.Len(rules.Rules(), 2)
		s.Len(rules.PivotGroup().Keys, 6)
	})

	s.Run("invalid seeded rule fails construction", func() {
		s.store.SetRules([]duplicate.Rule{{ID: "broken"}})
		_, err := NewRules(s.ctx, s.store)
		s.Error(err)
	})
}

func (s *RulesSuite) TestRefresh() {
	rules, err := NewRules(s.ctx, s.store)
	s.Require().NoError(err)

	s.Run("valid reload swaps the snapshot", func() {
		s.store.SetRules([]duplicate.Rule{{
			ID:         "email-exact",
			Priority:   1,
			Keys:       []id.AttrKey{identity.KeyEmail},
			Kind:       duplicate.MatchExact,
			MinMatches: 1,
		}})
		s.Require().NoError(rules.Refresh(s.ctx))
		s.Require().Len(rules.Rules(), 1)
		s.Equal("email-exact", rules.Rules()[0].ID)
	})

	s.Run("invalid reload keeps the previous snapshot", func() {
		s.store.SetRules([]duplicate.Rule{{ID: "no-keys", Kind: duplicate.MatchExact, MinMatches: 1}})
		s.Require().Error(rules.Refresh(s.ctx))

		s.Require().Len(rules.Rules(), 1)
		s.Equal("email-exact", rules.Rules()[0].ID)
	})

	s.Run("pivot group reloads alongside the rules", func() {
		s.store.SetRules(nil)
		s.store.SetPivotGroup(pivot.Group{Keys: []id.AttrKey{identity.KeyFamilyName}})
		s.Require().NoError(rules.Refresh(s.ctx))
		s.Equal([]id.AttrKey{identity.KeyFamilyName}, rules.PivotGroup().Keys)
	})
}
