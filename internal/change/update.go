package change

import (
	"context"
	"errors"
	"fmt"

	"civreg/internal/audit"
	"civreg/internal/certification"
	change "civreg/internal/change/models"
	contractmodels "civreg/internal/contract/models"
	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// ValidateUpdate decides an attribute update against an existing identity and
// persists the accepted subset.
//
// Per-attribute independence holds throughout: a rejected attribute is
// reported with its status code and never blocks its siblings. The request
// fails as a whole only when the contract or the identity itself disqualifies
// it (no contract, capability missing, identity unknown or deleted).
func (s *Service) ValidateUpdate(ctx context.Context, clientCode id.ClientCode, cuid id.CUID, attrs identity.AttributeSet) (*change.ChangeResult, error) {
	ctx, span := s.startSpan(ctx, "change.ValidateUpdate", clientCode)
	defer span.End()
	now := requestcontext.Now(ctx)

	active, failed, err := s.resolveContract(ctx, clientCode, contractmodels.CapUpdate, now)
	if err != nil {
		return nil, err
	}
	if failed != nil {
		s.observe("update", failed)
		return failed, nil
	}

	stamped, err := s.stampLevels(attrs)
	if err != nil {
		return nil, err
	}

	// Resolve merge aliases before locking so the lock covers the master.
	ident, err := s.resolveMaster(ctx, cuid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			result := change.Failure(change.CodeIdentityNotFound, "identity not found", now)
			s.observe("update", result)
			return result, nil
		}
		return nil, err
	}

	unlock := s.locks.Lock(ident.CUID)
	defer unlock()

	// Reload under the lock; the pre-lock read only resolved the alias.
	ident, err = s.identities.FindByCUID(ctx, ident.CUID)
	if err != nil {
		return nil, err
	}
	if ident.IsDeleted() {
		result := change.Failure(change.CodeIdentityDeleted, "identity is deleted", now)
		s.observe("update", result)
		return result, nil
	}

	accepted, rejected, err := s.screenAttributes(active, stamped)
	if err != nil {
		return nil, err
	}

	existing := s.restampStored(ident.Attributes)

	// Pivot integrity: a rejected pivot key drops only that key's change.
	for _, status := range s.validator.ValidateUpdate(s.rules.PivotGroup(), existing, accepted, active) {
		if status.Accepted() {
			continue
		}
		delete(accepted, status.Key)
		rejected = append(rejected, status)
	}

	// Overwrite policy per surviving attribute.
	applied := make(identity.AttributeSet, len(accepted))
	var noops []id.AttrKey
	for key, incoming := range accepted {
		current, held := existing[key]
		if !held {
			applied[key] = incoming
			continue
		}
		if certification.CanOverwrite(&current, incoming) {
			applied[key] = incoming
			continue
		}
		switch certification.Compare(current.Certification, incoming.Certification) {
		case certification.Incomparable:
			rejected = append(rejected, change.AttributeStatus{
				Key:    key,
				Code:   change.CodeIncomparableCertification,
				Reason: "existing certification cannot be compared with the incoming one",
			})
		case certification.EqualOrLonger:
			// Same value at equivalent trust: accepted as a no-op, so replays
			// of the same request stay idempotent.
			noops = append(noops, key)
		default:
			rejected = append(rejected, change.AttributeStatus{
				Key:    key,
				Code:   change.CodeLowerCertificationLevel,
				Reason: fmt.Sprintf("incoming level %d does not outrank stored level %d", incoming.Level(), current.Level()),
			})
		}
	}

	if len(applied) > 0 {
		stampAuthorship(applied, clientCode, now)
		next := ident.Attributes.Clone()
		for key, a := range applied {
			next[key] = a
		}
		ident.Attributes = next
		ident.UpdatedAt = now
		if err := s.identities.Update(ctx, ident); err != nil {
			return nil, err
		}
	}

	result := &change.ChangeResult{
		CUID:      ident.CUID,
		Status:    change.StatusOK,
		DecidedAt: now,
	}
	for _, key := range applied.Keys() {
		result.Attributes = append(result.Attributes, change.AttributeStatus{Key: key, Code: change.CodeOK})
	}
	for _, key := range noops {
		result.Attributes = append(result.Attributes, change.AttributeStatus{Key: key, Code: change.CodeOK,
			Reason: "identical value already held at an equivalent certification"})
	}
	result.Attributes = append(result.Attributes, rejected...)
	// Per-attribute rejections never escalate to a request failure, even when
	// every requested attribute was rejected; FAILURE is reserved for the
	// contract and identity checks above.
	if len(rejected) > 0 {
		result.Status = change.StatusIncompleteSuccess
	}

	s.observe("update", result)
	if len(applied) > 0 {
		s.emitAudit(ctx, audit.Event{
			RequestID:  requestcontext.RequestID(ctx),
			ClientCode: clientCode,
			CUID:       ident.CUID,
			Action:     audit.EventIdentityUpdated,
			Status:     result.Status,
		})
	}
	for _, status := range rejected {
		s.emitAudit(ctx, audit.Event{
			RequestID:  requestcontext.RequestID(ctx),
			ClientCode: clientCode,
			CUID:       ident.CUID,
			Action:     audit.EventAttributeRefused,
			Detail:     fmt.Sprintf("%s: %s", status.Key, status.Code),
		})
	}
	return result, nil
}
