package pivot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	change "civreg/internal/change/models"
	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

type stubDefs struct {
	mandatory map[id.AttrKey]bool
}

func (s stubDefs) Definition(key id.AttrKey) (identity.KeyDefinition, error) {
	mandatory, ok := s.mandatory[key]
	if !ok {
		return identity.KeyDefinition{}, dErrors.Newf(dErrors.CodeInternal, "unknown attribute key %q", key)
	}
	return identity.KeyDefinition{Key: key, Pivot: true, Certifiable: true, MandatoryOnCreate: mandatory}, nil
}

type stubReqs map[id.AttrKey]int

func (r stubReqs) RequiredLevel(key id.AttrKey) int { return r[key] }

type ValidatorSuite struct {
	suite.Suite

	validator *Validator
	group     Group
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	defs := stubDefs{mandatory: map[id.AttrKey]bool{
		identity.KeyGender:           true,
		identity.KeyFamilyName:       true,
		identity.KeyGivenName:        true,
		identity.KeyBirthDate:        true,
		identity.KeyBirthPlaceCode:   true,
		identity.KeyBirthCountryCode: true,
	}}
	validator, err := NewValidator(defs)
	s.Require().NoError(err)
	s.validator = validator
	s.group = Group{
		Keys: []id.AttrKey{
			identity.KeyGender,
			identity.KeyFamilyName,
			identity.KeyGivenName,
			identity.KeyBirthDate,
			identity.KeyBirthPlaceCode,
			identity.KeyBirthCountryCode,
		},
		PlaceExemption: &PlaceExemption{
			PlaceKey:      identity.KeyBirthPlaceCode,
			CountryKey:    identity.KeyBirthCountryCode,
			DomesticCodes: []string{"FR", "99100"},
		},
	}
}

func certified(value string, level int) identity.Attribute {
	return identity.Attribute{
		Value: value,
		Certification: &identity.Certification{
			Processus:   "NUM1",
			CertifiedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Level:       level,
		},
	}
}

func (s *ValidatorSuite) fullSet(level int) identity.AttributeSet {
	return identity.AttributeSet{
		identity.KeyGender:           certified("F", level),
		identity.KeyFamilyName:       certified("DUPONT", level),
		identity.KeyGivenName:        certified("MARIE", level),
		identity.KeyBirthDate:        certified("1990-04-12", level),
		identity.KeyBirthPlaceCode:   certified("75056", level),
		identity.KeyBirthCountryCode: certified("FR", level),
	}
}

// ============================================================
// Creation
// ============================================================

func (s *ValidatorSuite) TestValidateCreate() {
	s.Run("complete certified pivot group passes", func() {
		statuses, err := s.validator.ValidateCreate(s.group, s.fullSet(400))
		s.NoError(err)
		s.Empty(statuses)
	})

	s.Run("missing mandatory pivot key is reported", func() {
		attrs := s.fullSet(400)
		delete(attrs, identity.KeyBirthCountryCode)

		statuses, err := s.validator.ValidateCreate(s.group, attrs)
		s.Require().NoError(err)
		s.Require().Len(statuses, 1)
		s.Equal(identity.KeyBirthCountryCode, statuses[0].Key)
		s.Equal(change.CodeMissingPivotAttribute, statuses[0].Code)
	})

	s.Run("empty value counts as missing", func() {
		attrs := s.fullSet(400)
		attrs[identity.KeyGivenName] = identity.Attribute{Value: ""}

		statuses, err := s.validator.ValidateCreate(s.group, attrs)
		s.Require().NoError(err)
		s.Require().Len(statuses, 1)
		s.Equal(change.CodeMissingPivotAttribute, statuses[0].Code)
	})

	s.Run("uncertified mandatory pivot key is reported", func() {
		attrs := s.fullSet(400)
		attrs[identity.KeyBirthDate] = identity.Attribute{Value: "1990-04-12"}

		statuses, err := s.validator.ValidateCreate(s.group, attrs)
		s.Require().NoError(err)
		s.Require().Len(statuses, 1)
		s.Equal(identity.KeyBirthDate, statuses[0].Key)
		s.Equal(change.CodeNotCertified, statuses[0].Code)
	})

	s.Run("several failures are all reported", func() {
		attrs := s.fullSet(400)
		delete(attrs, identity.KeyGender)
		attrs[identity.KeyFamilyName] = identity.Attribute{Value: "DUPONT"}

		statuses, err := s.validator.ValidateCreate(s.group, attrs)
		s.NoError(err)
		s.Len(statuses, 2)
	})
}

// ============================================================
// Update
// ============================================================

func (s *ValidatorSuite) TestValidateUpdate() {
	s.Run("no pivot keys touched passes trivially", func() {
		proposed := identity.AttributeSet{identity.KeyAddress: certified("1 rue de la Paix", 100)}
		statuses := s.validator.ValidateUpdate(s.group, s.fullSet(400), proposed, stubReqs{})
		s.Empty(statuses)
	})

	s.Run("write below seeded group minimum is refused", func() {
		proposed := identity.AttributeSet{identity.KeyFamilyName: certified("DURAND", 100)}
		statuses := s.validator.ValidateUpdate(s.group, s.fullSet(400), proposed, stubReqs{})
		s.Require().Len(statuses, 1)
		s.Equal(change.CodeLowerCertificationLevel, statuses[0].Code)
	})

	s.Run("group minimum is the weakest existing link", func() {
		existing := s.fullSet(400)
		existing[identity.KeyBirthPlaceCode] = certified("75056", 100)

		// 100 is not below the minimum once one key sits at 100.
		proposed := identity.AttributeSet{identity.KeyGivenName: certified("JEANNE", 100)}
		statuses := s.validator.ValidateUpdate(s.group, existing, proposed, stubReqs{})
		s.Require().Len(statuses, 1)
		s.Equal(change.CodeOK, statuses[0].Code)
	})

	s.Run("value change below contract threshold is refused even above group minimum", func() {
		existing := s.fullSet(400)
		existing[identity.KeyBirthDate] = certified("1990-04-12", 100)

		proposed := identity.AttributeSet{identity.KeyBirthDate: certified("1990-04-13", 150)}
		statuses := s.validator.ValidateUpdate(s.group, existing, proposed, stubReqs{identity.KeyBirthDate: 200})
		s.Require().Len(statuses, 1)
		s.Equal(change.CodeLowerCertificationLevel, statuses[0].Code)
	})

	s.Run("same value restated below contract threshold passes", func() {
		existing := s.fullSet(400)
		existing[identity.KeyBirthDate] = certified("1990-04-12", 100)

		proposed := identity.AttributeSet{identity.KeyBirthDate: certified("1990-04-12", 150)}
		statuses := s.validator.ValidateUpdate(s.group, existing, proposed, stubReqs{identity.KeyBirthDate: 200})
		s.Require().Len(statuses, 1)
		s.Equal(change.CodeOK, statuses[0].Code)
	})

	s.Run("incomplete group never seeds a minimum", func() {
		existing := identity.AttributeSet{identity.KeyFamilyName: certified("DUPONT", 400)}
		delete(existing, identity.KeyBirthDate)

		proposed := identity.AttributeSet{identity.KeyGivenName: certified("MARIE", 100)}
		statuses := s.validator.ValidateUpdate(s.group, existing, proposed, stubReqs{})
		s.Require().Len(statuses, 1)
		// 100 < 400, the only seeded key, so still refused.
		s.Equal(change.CodeLowerCertificationLevel, statuses[0].Code)
	})

	s.Run("each proposed pivot key gets its own status", func() {
		proposed := identity.AttributeSet{
			identity.KeyFamilyName: certified("DURAND", 400),
			identity.KeyGivenName:  certified("JEANNE", 100),
		}
		statuses := s.validator.ValidateUpdate(s.group, s.fullSet(400), proposed, stubReqs{})
		s.Require().Len(statuses, 2)

		byKey := map[id.AttrKey]change.StatusCode{}
		for _, st := range statuses {
			byKey[st.Key] = st.Code
		}
		s.Equal(change.CodeOK, byKey[identity.KeyFamilyName])
		s.Equal(change.CodeLowerCertificationLevel, byKey[identity.KeyGivenName])
	})
}

// ============================================================
// Foreign birth place exemption
// ============================================================

func (s *ValidatorSuite) TestPlaceExemption() {
	s.Run("foreign birth place is exempt from the group minimum", func() {
		existing := s.fullSet(400)
		existing[identity.KeyBirthCountryCode] = certified("US", 400)

		proposed := identity.AttributeSet{identity.KeyBirthPlaceCode: certified("NYC", 100)}
		statuses := s.validator.ValidateUpdate(s.group, existing, proposed, stubReqs{identity.KeyBirthPlaceCode: 200})
		s.Require().Len(statuses, 1)
		s.Equal(change.CodeOK, statuses[0].Code)
	})

	s.Run("domestic birth place stays subject to the minimum", func() {
		proposed := identity.AttributeSet{identity.KeyBirthPlaceCode: certified("69123", 100)}
		statuses := s.validator.ValidateUpdate(s.group, s.fullSet(400), proposed, stubReqs{})
		s.Require().Len(statuses, 1)
		s.Equal(change.CodeLowerCertificationLevel, statuses[0].Code)
	})

	s.Run("country switched foreign in the same request exempts the place", func() {
		proposed := identity.AttributeSet{
			identity.KeyBirthCountryCode: certified("DE", 400),
			identity.KeyBirthPlaceCode:   certified("BER", 100),
		}
		statuses := s.validator.ValidateUpdate(s.group, s.fullSet(400), proposed, stubReqs{})

		byKey := map[id.AttrKey]change.StatusCode{}
		for _, st := range statuses {
			byKey[st.Key] = st.Code
		}
		s.Equal(change.CodeOK, byKey[identity.KeyBirthPlaceCode])
		s.Equal(change.CodeOK, byKey[identity.KeyBirthCountryCode])
	})

	s.Run("exempt place does not drag the group minimum down", func() {
		existing := s.fullSet(400)
		existing[identity.KeyBirthCountryCode] = certified("US", 400)
		existing[identity.KeyBirthPlaceCode] = certified("NYC", 100)

		// Minimum over the non-exempt keys is 400, so 200 is refused.
		proposed := identity.AttributeSet{identity.KeyGivenName: certified("JEANNE", 200)}
		statuses := s.validator.ValidateUpdate(s.group, existing, proposed, stubReqs{})
		s.Require().Len(statuses, 1)
		s.Equal(change.CodeLowerCertificationLevel, statuses[0].Code)
	})
}
