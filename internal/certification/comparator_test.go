package certification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civreg/internal/identity/models"
)

type ComparatorSuite struct {
	suite.Suite
}

func TestComparatorSuite(t *testing.T) {
	suite.Run(t, new(ComparatorSuite))
}

func cert(level int, expiresAt *time.Time) *models.Certification {
	return &models.Certification{
		Processus:   "NUM1",
		CertifiedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ExpiresAt:   expiresAt,
		Level:       level,
	}
}

func at(year int) *time.Time {
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

// ============================================================
// Compare
// ============================================================

func (s *ComparatorSuite) TestCompare() {
	s.Run("higher incoming level wins", func() {
		s.Equal(Higher, Compare(cert(100, nil), cert(400, nil)))
	})

	s.Run("lower incoming level loses", func() {
		s.Equal(Lower, Compare(cert(400, nil), cert(100, nil)))
	})

	s.Run("absent existing certification compares as level zero", func() {
		s.Equal(Higher, Compare(nil, cert(100, nil)))
	})

	s.Run("absent incoming against certified existing loses", func() {
		s.Equal(Lower, Compare(cert(100, nil), nil))
	})

	s.Run("both absent is equal", func() {
		s.Equal(EqualOrLonger, Compare(nil, nil))
	})

	s.Run("equal level, incoming expires later wins", func() {
		s.Equal(EqualOrLonger, Compare(cert(200, at(2025)), cert(200, at(2030))))
	})

	s.Run("equal level, incoming expires earlier loses", func() {
		s.Equal(Lower, Compare(cert(200, at(2030)), cert(200, at(2025))))
	})

	s.Run("equal level, incoming without expiry beats dated existing", func() {
		s.Equal(EqualOrLonger, Compare(cert(200, at(2030)), cert(200, nil)))
	})

	s.Run("equal level, existing without expiry never outlived", func() {
		s.Equal(EqualOrLonger, Compare(cert(200, nil), cert(200, at(2030))))
	})

	s.Run("unresolved existing level is incomparable", func() {
		s.Equal(Incomparable, Compare(cert(LevelUnresolved, nil), cert(100, nil)))
	})

	s.Run("unresolved incoming level is incomparable", func() {
		s.Equal(Incomparable, Compare(cert(400, nil), cert(LevelUnresolved, nil)))
	})
}

// Compare must agree with itself when sides swap: if incoming is Higher one
// way, it cannot also be Higher the other way.
func (s *ComparatorSuite) TestCompareAntisymmetry() {
	pairs := []struct {
		name string
		a, b *models.Certification
	}{
		{"distinct levels", cert(100, nil), cert(400, nil)},
		{"equal level distinct expiries", cert(200, at(2025)), cert(200, at(2030))},
		{"one uncertified", nil, cert(100, nil)},
	}
	for _, p := range pairs {
		s.Run(p.name, func() {
			forward := Compare(p.a, p.b)
			backward := Compare(p.b, p.a)
			if forward == Higher {
				s.NotEqual(Higher, backward)
			}
			if forward == Lower {
				s.NotEqual(Lower, backward)
			}
		})
	}
}

// ============================================================
// CanOverwrite
// ============================================================

func (s *ComparatorSuite) TestCanOverwrite() {
	existing := &models.Attribute{Value: "DUPONT", Certification: cert(200, nil)}

	s.Run("no existing attribute always writable", func() {
		s.True(CanOverwrite(nil, models.Attribute{Value: "DUPONT"}))
	})

	s.Run("higher trust overwrites", func() {
		s.True(CanOverwrite(existing, models.Attribute{Value: "DURAND", Certification: cert(400, nil)}))
	})

	s.Run("equal trust with changed value overwrites", func() {
		s.True(CanOverwrite(existing, models.Attribute{Value: "DURAND", Certification: cert(200, nil)}))
	})

	s.Run("equal trust with identical value is a no-op", func() {
		s.False(CanOverwrite(existing, models.Attribute{Value: "DUPONT", Certification: cert(200, nil)}))
	})

	s.Run("lower trust never overwrites", func() {
		s.False(CanOverwrite(existing, models.Attribute{Value: "DURAND", Certification: cert(100, nil)}))
	})

	s.Run("uncertified write never overwrites certified value", func() {
		s.False(CanOverwrite(existing, models.Attribute{Value: "DURAND"}))
	})

	s.Run("incomparable never overwrites", func() {
		s.False(CanOverwrite(existing, models.Attribute{Value: "DURAND", Certification: cert(LevelUnresolved, nil)}))
	})

	s.Run("repeated identical writes stay refused", func() {
		incoming := models.Attribute{Value: "DUPONT", Certification: cert(200, nil)}
		s.False(CanOverwrite(existing, incoming))
		s.False(CanOverwrite(existing, incoming))
	})
}
