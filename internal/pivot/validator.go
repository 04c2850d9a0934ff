// Package pivot validates the pivot attribute group as one atomic trust unit.
//
// The pivot group (typically gender, family name, given name, birth date,
// birth place, birth country) protects against identity spoofing: individual
// writes that would each pass the contract gate can still degrade the trust
// of the group as a whole. This validator rejects exactly those writes, one
// attribute at a time, without ever failing sibling attributes.
package pivot

import (
	"fmt"
	"log/slog"

	change "civreg/internal/change/models"
	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
)

// PlaceExemption lifts the group-minimum check from PlaceKey when the
// effective value of CountryKey is not a domestic code. Foreign birth places
// are certified by foreign authorities whose levels are not on the domestic
// scale, so holding them to the group minimum would block legitimate records.
type PlaceExemption struct {
	PlaceKey      id.AttrKey
	CountryKey    id.AttrKey
	DomesticCodes []string
}

// Group is the configured pivot attribute group. Loaded from the rule store;
// immutable at request time.
type Group struct {
	Keys           []id.AttrKey
	PlaceExemption *PlaceExemption
}

// Contains reports whether a key belongs to the group.
func (g Group) Contains(key id.AttrKey) bool {
	for _, k := range g.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// exempt reports whether the group-minimum check is lifted for key given the
// effective attribute state.
func (g Group) exempt(key id.AttrKey, effective identity.AttributeSet) bool {
	ex := g.PlaceExemption
	if ex == nil || key != ex.PlaceKey {
		return false
	}
	country, ok := effective[ex.CountryKey]
	if !ok || country.Value == "" {
		return false
	}
	for _, code := range ex.DomesticCodes {
		if code == country.Value {
			return false
		}
	}
	return true
}

// DefinitionSource resolves attribute key definitions; satisfied by the
// certification registry.
type DefinitionSource interface {
	Definition(key id.AttrKey) (identity.KeyDefinition, error)
}

// RequirementSource exposes the contract's minimum level per key; satisfied
// by the service contract.
type RequirementSource interface {
	RequiredLevel(key id.AttrKey) int
}

// Validator checks pivot integrity for creations and updates.
type Validator struct {
	defs   DefinitionSource
	logger *slog.Logger
}

type Option func(*Validator)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

func NewValidator(defs DefinitionSource, opts ...Option) (*Validator, error) {
	if defs == nil {
		return nil, fmt.Errorf("definition source is required")
	}
	v := &Validator{defs: defs}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// ValidateCreate checks a creation request: every mandatory pivot key must be
// present with a non-empty, certified value. Any returned non-OK status is
// fatal to the creation (there is no existing state to fall back on).
// If all mandatory keys pass, acceptance is unconditional.
func (v *Validator) ValidateCreate(group Group, attrs identity.AttributeSet) ([]change.AttributeStatus, error) {
	var statuses []change.AttributeStatus
	for _, key := range group.Keys {
		def, err := v.defs.Definition(key)
		if err != nil {
			return nil, err
		}
		if !def.MandatoryOnCreate {
			continue
		}
		a, ok := attrs[key]
		if !ok || a.Value == "" {
			statuses = append(statuses, change.AttributeStatus{
				Key:    key,
				Code:   change.CodeMissingPivotAttribute,
				Reason: "mandatory pivot attribute missing at creation",
			})
			continue
		}
		if a.Certification == nil {
			statuses = append(statuses, change.AttributeStatus{
				Key:    key,
				Code:   change.CodeNotCertified,
				Reason: "mandatory pivot attribute must be certified at creation",
			})
		}
	}
	return statuses, nil
}

// ValidateUpdate checks the proposed pivot changes against the existing
// state. It returns one status per proposed pivot key; non-pivot keys are
// ignored. A rejected pivot key excludes only that key's change — the
// orchestrator applies the rest and reports INCOMPLETE_SUCCESS.
//
// A request touching no pivot keys always passes (nothing to validate).
func (v *Validator) ValidateUpdate(group Group, existing, proposed identity.AttributeSet, reqs RequirementSource) []change.AttributeStatus {
	effective := effectiveState(group, existing, proposed)
	minBefore, seeded := groupMinimum(group, existing, effective)

	var statuses []change.AttributeStatus
	for _, key := range group.Keys {
		incoming, ok := proposed[key]
		if !ok {
			continue
		}

		if group.exempt(key, effective) {
			statuses = append(statuses, change.AttributeStatus{Key: key, Code: change.CodeOK})
			continue
		}

		level := incoming.Level()
		if seeded && level < minBefore {
			statuses = append(statuses, change.AttributeStatus{
				Key:    key,
				Code:   change.CodeLowerCertificationLevel,
				Reason: fmt.Sprintf("level %d below pivot group minimum %d", level, minBefore),
			})
			continue
		}

		// A value change below the contract's own threshold for the key is
		// rejected even when the group minimum would tolerate it.
		if reqs != nil && valueChanged(existing, key, incoming) && level < reqs.RequiredLevel(key) {
			statuses = append(statuses, change.AttributeStatus{
				Key:    key,
				Code:   change.CodeLowerCertificationLevel,
				Reason: fmt.Sprintf("level %d below contract threshold %d for pivot change", level, reqs.RequiredLevel(key)),
			})
			continue
		}

		statuses = append(statuses, change.AttributeStatus{Key: key, Code: change.CodeOK})
	}
	return statuses
}

// effectiveState is the pivot view after applying the proposal: incoming
// value if present, else the existing one.
func effectiveState(group Group, existing, proposed identity.AttributeSet) identity.AttributeSet {
	effective := make(identity.AttributeSet, len(group.Keys))
	for _, key := range group.Keys {
		if a, ok := proposed[key]; ok {
			effective[key] = a
			continue
		}
		if a, ok := existing[key]; ok {
			effective[key] = a
		}
	}
	return effective
}

// groupMinimum is the lowest certification level across the pivot keys
// present before the change. Keys never supplied leave the group incomplete
// rather than failing; an exempt place key does not drag the minimum down.
func groupMinimum(group Group, existing identity.AttributeSet, effective identity.AttributeSet) (int, bool) {
	minLevel, seeded := 0, false
	for _, key := range group.Keys {
		a, ok := existing[key]
		if !ok {
			continue
		}
		if group.exempt(key, effective) {
			continue
		}
		if !seeded || a.Level() < minLevel {
			minLevel = a.Level()
			seeded = true
		}
	}
	return minLevel, seeded
}

func valueChanged(existing identity.AttributeSet, key id.AttrKey, incoming identity.Attribute) bool {
	current, ok := existing[key]
	if !ok {
		return true
	}
	return current.Value != incoming.Value
}
