// Package merge combines two identities' attribute sets into one, arbitrating
// per-attribute trust through the certification comparator.
package merge

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"civreg/internal/certification"
	change "civreg/internal/change/models"
	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
)

// SnapshotStore retains the secondary identity's pre-merge attribute set so a
// cancel-merge can fully restore it. Implemented by the persistence adapter.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, cuid id.CUID, attrs identity.AttributeSet, takenAt time.Time) error
	LoadSnapshot(ctx context.Context, cuid id.CUID) (identity.AttributeSet, error)
	DeleteSnapshot(ctx context.Context, cuid id.CUID) error
}

// Engine resolves attribute fusion. It holds no state; the orchestrator owns
// sequencing, snapshots, and persistence.
type Engine struct {
	logger *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve produces the unified attribute set of a fusion. For each key held
// by either side: a one-sided key is kept as is; a contested key goes to the
// side with the higher certification, the primary winning ties (it keeps the
// surviving CUID). An incomparable pair is reported as a conflict and the
// primary's value kept provisionally.
//
// Conflicts never fail the merge; the caller decides whether to surface them.
func (e *Engine) Resolve(primary, secondary identity.AttributeSet) (identity.AttributeSet, []change.AttributeConflict) {
	unified := make(identity.AttributeSet, len(primary)+len(secondary))
	conflicts := []change.AttributeConflict{}

	for key, a := range primary {
		unified[key] = a
	}
	for key, theirs := range secondary {
		ours, contested := primary[key]
		if !contested {
			unified[key] = theirs
			continue
		}
		switch certification.Compare(ours.Certification, theirs.Certification) {
		case certification.Higher:
			unified[key] = theirs
		case certification.Incomparable:
			conflicts = append(conflicts, change.AttributeConflict{
				Key:            key,
				PrimaryValue:   ours.Value,
				SecondaryValue: theirs.Value,
				Code:           change.CodeIncomparableCertification,
			})
		default:
			// EqualOrLonger and Lower both keep the primary's value.
		}
	}

	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Key < conflicts[j].Key })
	return unified.Clone(), conflicts
}
