package models

import (
	"sort"
	"time"

	id "civreg/pkg/domain"
)

// Certification records the trust a processus granted to one attribute value.
// Level is denormalized from the certification registry at write time so
// stored snapshots stay comparable even if reference data evolves later.
type Certification struct {
	Processus   id.ProcessusCode
	CertifiedAt time.Time
	ExpiresAt   *time.Time
	Level       int
}

// Expired reports whether the certification has lapsed as of now.
// A nil ExpiresAt never expires.
func (c *Certification) Expired(now time.Time) bool {
	return c != nil && c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Attribute is the value of one (identity, attribute key) pair.
//
// An attribute with a nil Certification is uncertified and compares as level 0.
// Accepted writes replace the attribute wholesale; nothing mutates it in place.
type Attribute struct {
	Value         string
	Author        id.ClientCode
	UpdatedAt     time.Time
	Certification *Certification
}

// Level returns the certification level, 0 when uncertified.
func (a Attribute) Level() int {
	if a.Certification == nil {
		return 0
	}
	return a.Certification.Level
}

// AttributeSet maps attribute keys to their current values. It is the unit
// the engine validates and the stores persist.
type AttributeSet map[id.AttrKey]Attribute

// Clone returns a deep copy. Certifications are copied so callers can hold a
// snapshot across a later write.
func (s AttributeSet) Clone() AttributeSet {
	if s == nil {
		return nil
	}
	out := make(AttributeSet, len(s))
	for k, a := range s {
		if a.Certification != nil {
			cert := *a.Certification
			if cert.ExpiresAt != nil {
				exp := *cert.ExpiresAt
				cert.ExpiresAt = &exp
			}
			a.Certification = &cert
		}
		out[k] = a
	}
	return out
}

// Keys returns the attribute keys in lexical order.
func (s AttributeSet) Keys() []id.AttrKey {
	keys := make([]id.AttrKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
