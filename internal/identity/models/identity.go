package models

import (
	"time"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// Identity is the aggregate root for one registered person.
//
// Invariants:
//   - CUID is non-empty and immutable after construction
//   - Attribute keys are unique (enforced by the map representation)
//   - An identity is never hard-deleted by the engine; deletion sets DeletedAt
//     and an expiration date after which the persistence layer may purge it
//   - A merged identity keeps its CUID as an alias: MergedInto names the
//     surviving master and MergedAt records when the fusion happened
//   - All mutations go through the change orchestrator; stores persist
//     snapshots produced there and never edit attributes in place
type Identity struct {
	CUID       id.CUID
	Active     bool
	MergedInto id.CUID
	MergedAt   *time.Time
	DeletedAt  *time.Time
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Attributes AttributeSet
}

// NewIdentity constructs an active identity from an accepted creation write.
func NewIdentity(cuid id.CUID, attrs AttributeSet, now time.Time) (*Identity, error) {
	if cuid.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity cuid cannot be empty")
	}
	if len(attrs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity must carry at least one attribute")
	}
	return &Identity{
		CUID:       cuid,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
		Attributes: attrs.Clone(),
	}, nil
}

func (i *Identity) IsMerged() bool {
	return !i.MergedInto.IsZero()
}

// IsDeleted reports whether the identity was soft-deleted as of now.
func (i *Identity) IsDeleted() bool {
	return i.DeletedAt != nil
}

// IsMutable reports whether the identity can accept attribute changes.
// Merged and soft-deleted identities are frozen.
func (i *Identity) IsMutable() bool {
	return i.Active && !i.IsMerged() && !i.IsDeleted()
}

// CanDelete checks the soft-delete transition.
func (i *Identity) CanDelete() error {
	if i.IsDeleted() {
		return dErrors.New(dErrors.CodeInvariantViolation, "identity is already deleted")
	}
	if i.IsMerged() {
		return dErrors.New(dErrors.CodeInvariantViolation, "merged identity cannot be deleted")
	}
	return nil
}

// ApplyDelete soft-deletes the identity. The record is retained until the
// expiration date so a deletion can be audited and reversed out of band.
func (i *Identity) ApplyDelete(now time.Time, retain time.Duration) {
	deleted := now
	expires := now.Add(retain)
	i.Active = false
	i.DeletedAt = &deleted
	i.ExpiresAt = &expires
	i.UpdatedAt = now
}

// CanMergeInto checks that the identity may become the secondary of a fusion.
func (i *Identity) CanMergeInto(primary id.CUID) error {
	if primary.IsZero() || primary == i.CUID {
		return dErrors.New(dErrors.CodeInvariantViolation, "merge target must be a distinct identity")
	}
	if !i.IsMutable() {
		return dErrors.New(dErrors.CodeInvariantViolation, "identity is not mergeable in its current state")
	}
	return nil
}

// ApplyMergeInto marks the identity as fused into the primary. Attributes are
// kept untouched; cancel-merge restores from the snapshot taken by the engine.
func (i *Identity) ApplyMergeInto(primary id.CUID, now time.Time) {
	merged := now
	i.Active = false
	i.MergedInto = primary
	i.MergedAt = &merged
	i.UpdatedAt = now
}

// ApplyCancelMerge reactivates the identity with its pre-merge attribute set.
func (i *Identity) ApplyCancelMerge(snapshot AttributeSet, now time.Time) {
	i.Active = true
	i.MergedInto = ""
	i.MergedAt = nil
	i.Attributes = snapshot.Clone()
	i.UpdatedAt = now
}
