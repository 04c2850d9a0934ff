package certification

import (
	id "civreg/pkg/domain"
)

// ProcessusLevel is one row of the certification reference scale: the level a
// processus grants to one attribute key. Levels are totally ordered within a
// key; comparing levels across keys is undefined and the engine never does it.
type ProcessusLevel struct {
	Processus id.ProcessusCode
	Key       id.AttrKey
	Level     int
}

// Outcome classifies an incoming certification against the existing one for
// the same attribute key.
type Outcome string

const (
	// Higher: the incoming certification carries strictly more trust.
	Higher Outcome = "HIGHER"
	// EqualOrLonger: same level, and the incoming certification expires no
	// earlier than the existing one.
	EqualOrLonger Outcome = "EQUAL_OR_LONGER"
	// Lower: strictly less trust, or same level with a shorter validity.
	Lower Outcome = "LOWER"
	// Incomparable: at least one side carries a level the registry cannot
	// resolve (e.g. a processus retired since the snapshot was written).
	Incomparable Outcome = "INCOMPARABLE"
)

// LevelUnresolved marks a certification whose processus is unknown to the
// registry for its key. Snapshots stamped with it compare as Incomparable.
const LevelUnresolved = -1
