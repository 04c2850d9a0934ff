package change

import (
	"context"
	"errors"

	"civreg/internal/audit"
	change "civreg/internal/change/models"
	contractmodels "civreg/internal/contract/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// ValidateMerge fuses the secondary identity into the primary.
//
// The secondary's attribute set is snapshotted first so CancelMerge can fully
// restore it. The unified set is arbitrated per attribute by certification;
// incomparable pairs are reported as conflicts with the primary's value kept
// provisionally. Conflicts never fail the merge.
func (s *Service) ValidateMerge(ctx context.Context, clientCode id.ClientCode, primaryCUID, secondaryCUID id.CUID) (*change.MergeResult, error) {
	ctx, span := s.startSpan(ctx, "change.ValidateMerge", clientCode)
	defer span.End()
	now := requestcontext.Now(ctx)

	fail := func(code change.StatusCode) *change.MergeResult {
		result := &change.MergeResult{
			PrimaryCUID:   primaryCUID,
			SecondaryCUID: secondaryCUID,
			Status:        change.StatusFailure,
			Code:          code,
			Conflicts:     []change.AttributeConflict{},
			MergedAt:      now,
		}
		if s.metrics != nil {
			s.metrics.ObserveDecision("merge", string(result.Status))
		}
		return result
	}

	_, failed, err := s.resolveContract(ctx, clientCode, contractmodels.CapMerge, now)
	if err != nil {
		return nil, err
	}
	if failed != nil {
		return fail(failed.Code), nil
	}
	if primaryCUID == secondaryCUID || primaryCUID.IsZero() || secondaryCUID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "merge requires two distinct identities")
	}

	unlock := s.locks.LockAll(primaryCUID, secondaryCUID)
	defer unlock()

	primary, err := s.identities.FindByCUID(ctx, primaryCUID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return fail(change.CodeIdentityNotFound), nil
		}
		return nil, err
	}
	secondary, err := s.identities.FindByCUID(ctx, secondaryCUID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return fail(change.CodeIdentityNotFound), nil
		}
		return nil, err
	}
	if !primary.IsMutable() {
		if primary.IsDeleted() {
			return fail(change.CodeIdentityDeleted), nil
		}
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "primary identity is not mergeable in its current state")
	}
	if err := secondary.CanMergeInto(primaryCUID); err != nil {
		if secondary.IsDeleted() {
			return fail(change.CodeIdentityDeleted), nil
		}
		return nil, err
	}

	if err := s.snapshots.SaveSnapshot(ctx, secondaryCUID, secondary.Attributes, now); err != nil {
		return nil, err
	}

	unified, conflicts := s.merger.Resolve(
		s.restampStored(primary.Attributes),
		s.restampStored(secondary.Attributes),
	)

	primary.Attributes = unified
	primary.UpdatedAt = now
	if err := s.identities.Update(ctx, primary); err != nil {
		return nil, err
	}
	secondary.ApplyMergeInto(primaryCUID, now)
	if err := s.identities.Update(ctx, secondary); err != nil {
		return nil, err
	}

	result := &change.MergeResult{
		PrimaryCUID:   primaryCUID,
		SecondaryCUID: secondaryCUID,
		Status:        change.StatusOK,
		Conflicts:     conflicts,
		MergedAt:      now,
	}
	if s.metrics != nil {
		s.metrics.ObserveDecision("merge", string(result.Status))
		for range conflicts {
			s.metrics.MergeConflicts.Inc()
		}
	}
	s.emitAudit(ctx, audit.Event{
		RequestID:  requestcontext.RequestID(ctx),
		ClientCode: clientCode,
		CUID:       primaryCUID,
		Action:     audit.EventIdentityMerged,
		Status:     result.Status,
		Detail:     "absorbed " + secondaryCUID.String(),
	})
	return result, nil
}

// CancelMerge undoes a fusion: the secondary is reactivated with its pre-merge
// attribute set and the primary keeps its current state (attributes gained
// from the fusion are not clawed back; a follow-up update can correct them).
func (s *Service) CancelMerge(ctx context.Context, clientCode id.ClientCode, secondaryCUID id.CUID) error {
	ctx, span := s.startSpan(ctx, "change.CancelMerge", clientCode)
	defer span.End()
	now := requestcontext.Now(ctx)

	active, code, err := s.gate.ResolveActive(ctx, clientCode)
	if err != nil {
		return err
	}
	if code != change.CodeOK {
		return dErrors.New(dErrors.CodeForbidden, "no active contract for client")
	}
	if code := s.gate.AuthorizeOperation(ctx, active, contractmodels.CapMerge); code != change.CodeOK {
		return dErrors.New(dErrors.CodeForbidden, "merge capability not granted by contract")
	}

	unlock := s.locks.Lock(secondaryCUID)
	defer unlock()

	secondary, err := s.identities.FindByCUID(ctx, secondaryCUID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return err
	}
	if !secondary.IsMerged() {
		return dErrors.New(dErrors.CodeInvariantViolation, "identity is not merged")
	}

	snapshot, err := s.snapshots.LoadSnapshot(ctx, secondaryCUID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no merge snapshot retained for identity")
		}
		return err
	}

	secondary.ApplyCancelMerge(snapshot, now)
	if err := s.identities.Update(ctx, secondary); err != nil {
		return err
	}
	if err := s.snapshots.DeleteSnapshot(ctx, secondaryCUID); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "merge snapshot cleanup failed", "cuid", secondaryCUID, "error", err)
	}

	s.emitAudit(ctx, audit.Event{
		RequestID:  requestcontext.RequestID(ctx),
		ClientCode: clientCode,
		CUID:       secondaryCUID,
		Action:     audit.EventMergeCancelled,
		Status:     change.StatusOK,
	})
	return nil
}
