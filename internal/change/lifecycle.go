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

// Delete soft-deletes an identity. The record is retained for
// DeletionRetention so the deletion can be audited and reversed out of band;
// the persistence layer may purge it after the expiry.
func (s *Service) Delete(ctx context.Context, clientCode id.ClientCode, cuid id.CUID) error {
	ctx, span := s.startSpan(ctx, "change.Delete", clientCode)
	defer span.End()
	now := requestcontext.Now(ctx)

	active, code, err := s.gate.ResolveActive(ctx, clientCode)
	if err != nil {
		return err
	}
	if code != change.CodeOK {
		return dErrors.New(dErrors.CodeForbidden, "no active contract for client")
	}
	if code := s.gate.AuthorizeOperation(ctx, active, contractmodels.CapDeletion); code != change.CodeOK {
		return dErrors.New(dErrors.CodeForbidden, "deletion capability not granted by contract")
	}

	unlock := s.locks.Lock(cuid)
	defer unlock()

	ident, err := s.identities.FindByCUID(ctx, cuid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return err
	}
	if err := ident.CanDelete(); err != nil {
		return err
	}

	ident.ApplyDelete(now, DeletionRetention)
	if err := s.identities.Update(ctx, ident); err != nil {
		return err
	}

	s.emitAudit(ctx, audit.Event{
		RequestID:  requestcontext.RequestID(ctx),
		ClientCode: clientCode,
		CUID:       cuid,
		Action:     audit.EventIdentityDeleted,
		Status:     change.StatusOK,
	})
	return nil
}

// Decertify strips the certification from one attribute, keeping its value.
// The contract must hold the decertification capability and the certifiable
// right on the key; decertifying an uncertified attribute is a no-op.
func (s *Service) Decertify(ctx context.Context, clientCode id.ClientCode, cuid id.CUID, key id.AttrKey) error {
	ctx, span := s.startSpan(ctx, "change.Decertify", clientCode)
	defer span.End()
	now := requestcontext.Now(ctx)

	active, code, err := s.gate.ResolveActive(ctx, clientCode)
	if err != nil {
		return err
	}
	if code != change.CodeOK {
		return dErrors.New(dErrors.CodeForbidden, "no active contract for client")
	}
	if code := s.gate.AuthorizeOperation(ctx, active, contractmodels.CapDecertification); code != change.CodeOK {
		return dErrors.New(dErrors.CodeForbidden, "decertification capability not granted by contract")
	}
	if right, ok := active.Right(key); !ok || !right.Certifiable {
		return dErrors.New(dErrors.CodeForbidden, "contract does not grant certification on this attribute")
	}

	unlock := s.locks.Lock(cuid)
	defer unlock()

	ident, err := s.identities.FindByCUID(ctx, cuid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return err
	}
	if !ident.IsMutable() {
		return dErrors.New(dErrors.CodeInvariantViolation, "identity is not mutable in its current state")
	}

	a, held := ident.Attributes[key]
	if !held {
		return dErrors.New(dErrors.CodeNotFound, "attribute not held by identity")
	}
	if a.Certification == nil {
		return nil
	}

	next := ident.Attributes.Clone()
	a = next[key]
	a.Certification = nil
	a.Author = clientCode
	a.UpdatedAt = now
	next[key] = a
	ident.Attributes = next
	ident.UpdatedAt = now
	if err := s.identities.Update(ctx, ident); err != nil {
		return err
	}

	s.emitAudit(ctx, audit.Event{
		RequestID:  requestcontext.RequestID(ctx),
		ClientCode: clientCode,
		CUID:       cuid,
		Action:     audit.EventDecertified,
		Status:     change.StatusOK,
		Detail:     key.String(),
	})
	return nil
}
