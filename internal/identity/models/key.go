package models

import (
	"regexp"
	"time"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// Well-known attribute keys. The pivot group is configured over a subset of
// these; nothing in the engine hard-codes the list.
const (
	KeyGender           id.AttrKey = "gender"
	KeyFamilyName       id.AttrKey = "family_name"
	KeyGivenName        id.AttrKey = "given_name"
	KeyBirthDate        id.AttrKey = "birth_date"
	KeyBirthPlaceCode   id.AttrKey = "birth_place_code"
	KeyBirthCountryCode id.AttrKey = "birth_country_code"
	KeyAddress          id.AttrKey = "address"
	KeyEmail            id.AttrKey = "email"
	KeyPhone            id.AttrKey = "phone"
)

// SemanticKind drives value validation and fuzzy matching behavior.
type SemanticKind string

const (
	KindText SemanticKind = "text"
	KindCode SemanticKind = "code"
	KindDate SemanticKind = "date"
)

// KeyDefinition is the static reference record for one attribute key.
// Definitions are immutable at request time; the reference store owns them.
type KeyDefinition struct {
	Key               id.AttrKey
	Kind              SemanticKind
	Pivot             bool
	Certifiable       bool
	MandatoryOnCreate bool
	Pattern           string
	Enum              []string
	Weight            int

	compiled *regexp.Regexp
}

// Compile prepares the validation pattern. Call once when loading reference
// data; a bad pattern is a configuration defect.
func (d *KeyDefinition) Compile() error {
	if d.Pattern == "" {
		return nil
	}
	re, err := regexp.Compile(d.Pattern)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "invalid validation pattern for attribute "+d.Key.String())
	}
	d.compiled = re
	return nil
}

// ValidateValue checks a raw value against the definition's pattern, enum,
// and kind. Returns a validation-coded error on mismatch.
func (d *KeyDefinition) ValidateValue(value string) error {
	if value == "" {
		return dErrors.New(dErrors.CodeValidation, "attribute value cannot be empty")
	}
	if d.compiled != nil && !d.compiled.MatchString(value) {
		return dErrors.Newf(dErrors.CodeValidation, "value does not match pattern for %s", d.Key)
	}
	if len(d.Enum) > 0 {
		ok := false
		for _, allowed := range d.Enum {
			if allowed == value {
				ok = true
				break
			}
		}
		if !ok {
			return dErrors.Newf(dErrors.CodeValidation, "value not in allowed set for %s", d.Key)
		}
	}
	if d.Kind == KindDate {
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return dErrors.Newf(dErrors.CodeValidation, "value is not a valid date for %s", d.Key)
		}
	}
	return nil
}
