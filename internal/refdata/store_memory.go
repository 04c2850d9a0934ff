package refdata

import (
	"context"
	"sync"

	"civreg/internal/certification"
	"civreg/internal/duplicate"
	identity "civreg/internal/identity/models"
	"civreg/internal/pivot"
	id "civreg/pkg/domain"
)

// InMemory serves reference data from process memory. Used by unit tests and
// local runs; administration of reference data happens out of band.
type InMemory struct {
	mu     sync.RWMutex
	levels []certification.ProcessusLevel
	defs   []identity.KeyDefinition
	rules  []duplicate.Rule
	group  pivot.Group
}

func NewInMemoryRef() *InMemory {
	return &InMemory{}
}

func (s *InMemory) SetLevels(levels []certification.ProcessusLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels = levels
}

func (s *InMemory) SetKeyDefinitions(defs []identity.KeyDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = defs
}

func (s *InMemory) SetRules(rules []duplicate.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}

func (s *InMemory) SetPivotGroup(group pivot.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group = group
}

func (s *InMemory) LoadLevels(_ context.Context) ([]certification.ProcessusLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]certification.ProcessusLevel, len(s.levels))
	copy(out, s.levels)
	return out, nil
}

func (s *InMemory) LoadKeyDefinitions(_ context.Context) ([]identity.KeyDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]identity.KeyDefinition, len(s.defs))
	copy(out, s.defs)
	return out, nil
}

func (s *InMemory) LoadRules(_ context.Context) ([]duplicate.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]duplicate.Rule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

func (s *InMemory) LoadPivotGroup(_ context.Context) (pivot.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.group, nil
}

// SeedDefaults returns an in-memory reference store preloaded with the stock
// configuration: the six-key pivot group, the NUM1/DEC processus scale, and
// two duplicate rules. Local runs and tests start from this.
func SeedDefaults() *InMemory {
	s := NewInMemoryRef()

	pivotKeys := []id.AttrKey{
		identity.KeyGender,
		identity.KeyFamilyName,
		identity.KeyGivenName,
		identity.KeyBirthDate,
		identity.KeyBirthPlaceCode,
		identity.KeyBirthCountryCode,
	}

	var defs []identity.KeyDefinition
	for _, key := range pivotKeys {
		def := identity.KeyDefinition{
			Key:               key,
			Kind:              identity.KindText,
			Pivot:             true,
			Certifiable:       true,
			MandatoryOnCreate: true,
			Weight:            10,
		}
		switch key {
		case identity.KeyGender:
			def.Kind = identity.KindCode
			def.Enum = []string{"F", "M", "X"}
			def.Weight = 2
		case identity.KeyBirthDate:
			def.Kind = identity.KindDate
			def.Weight = 15
		case identity.KeyBirthPlaceCode, identity.KeyBirthCountryCode:
			def.Kind = identity.KindCode
			def.Pattern = `^[0-9A-Z]{2,5}$`
			def.Weight = 5
		}
		defs = append(defs, def)
	}
	defs = append(defs,
		identity.KeyDefinition{Key: identity.KeyAddress, Kind: identity.KindText, Certifiable: true, Weight: 3},
		identity.KeyDefinition{Key: identity.KeyEmail, Kind: identity.KindText, Weight: 3},
		identity.KeyDefinition{Key: identity.KeyPhone, Kind: identity.KindText, Weight: 3},
	)
	s.SetKeyDefinitions(defs)

	var levels []certification.ProcessusLevel
	for _, def := range defs {
		if !def.Certifiable {
			continue
		}
		levels = append(levels,
			certification.ProcessusLevel{Processus: "NUM1", Key: def.Key, Level: 400},
			certification.ProcessusLevel{Processus: "DEC", Key: def.Key, Level: 100},
		)
	}
	s.SetLevels(levels)

	s.SetPivotGroup(pivot.Group{
		Keys: pivotKeys,
		PlaceExemption: &pivot.PlaceExemption{
			PlaceKey:      identity.KeyBirthPlaceCode,
			CountryKey:    identity.KeyBirthCountryCode,
			DomesticCodes: []string{"FR", "99100"},
		},
	})

	s.SetRules([]duplicate.Rule{
		{
			ID:         "exact-name-birthdate",
			Priority:   1,
			Keys:       []id.AttrKey{identity.KeyFamilyName, identity.KeyBirthDate},
			Kind:       duplicate.MatchExact,
			MinMatches: 2,
		},
		{
			ID:         "fuzzy-full-name",
			Priority:   2,
			Keys:       []id.AttrKey{identity.KeyFamilyName, identity.KeyGivenName, identity.KeyBirthDate},
			Kind:       duplicate.MatchFuzzy,
			MinMatches: 2,
		},
	})

	return s
}
