package certification

import (
	"civreg/internal/identity/models"
)

// Compare orders an incoming certification against the existing one for the
// same attribute key. Pure: both records must already carry their stamped
// level (the orchestrator resolves levels through the registry before
// validation), so the comparison never does I/O.
//
// An absent certification compares as level 0. At equal level the later
// expiration wins; an absent expiration never expires and beats any date.
func Compare(existing, incoming *models.Certification) Outcome {
	existingLevel, incomingLevel := 0, 0
	if existing != nil {
		existingLevel = existing.Level
	}
	if incoming != nil {
		incomingLevel = incoming.Level
	}

	if existingLevel == LevelUnresolved || incomingLevel == LevelUnresolved {
		return Incomparable
	}
	if incomingLevel > existingLevel {
		return Higher
	}
	if incomingLevel < existingLevel {
		return Lower
	}

	// Same level: the certification that stays valid longer wins.
	if expiresAfter(existing, incoming) {
		return Lower
	}
	return EqualOrLonger
}

// expiresAfter reports whether existing outlives incoming. Nil certifications
// and nil expirations never expire.
func expiresAfter(existing, incoming *models.Certification) bool {
	if existing == nil || existing.ExpiresAt == nil {
		return false
	}
	if incoming == nil || incoming.ExpiresAt == nil {
		return false
	}
	return existing.ExpiresAt.After(*incoming.ExpiresAt)
}

// CanOverwrite decides whether an incoming attribute write may replace the
// existing one, based solely on relative trust:
//   - no existing attribute: always
//   - strictly higher trust: always
//   - equal trust with at least as long a validity: only if the value
//     actually changes (a value refresh at equal trust is allowed; an
//     identical write is a no-op and needs no overwrite)
func CanOverwrite(existing *models.Attribute, incoming models.Attribute) bool {
	if existing == nil {
		return true
	}
	switch Compare(existing.Certification, incoming.Certification) {
	case Higher:
		return true
	case EqualOrLonger:
		return existing.Value != incoming.Value
	default:
		return false
	}
}
