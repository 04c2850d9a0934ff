package change

import (
	"context"

	"civreg/internal/audit"
	change "civreg/internal/change/models"
	contractmodels "civreg/internal/contract/models"
	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
	"civreg/pkg/requestcontext"
)

// ValidateCreate decides and, when at least one attribute survives, persists a
// new identity.
//
// The pipeline is: active contract, creation capability, certification level
// stamping, per-attribute screening (value format, contract rights,
// processus, required level), contract-mandatory presence, then pivot
// integrity. Pivot failures at creation are fatal — there is no existing
// record to fall back on — while ordinary attribute rejections only shrink the
// accepted set.
func (s *Service) ValidateCreate(ctx context.Context, clientCode id.ClientCode, attrs identity.AttributeSet) (*change.ChangeResult, error) {
	ctx, span := s.startSpan(ctx, "change.ValidateCreate", clientCode)
	defer span.End()
	now := requestcontext.Now(ctx)

	active, failed, err := s.resolveContract(ctx, clientCode, contractmodels.CapCreation, now)
	if err != nil {
		return nil, err
	}
	if failed != nil {
		s.observe("create", failed)
		return failed, nil
	}

	stamped, err := s.stampLevels(attrs)
	if err != nil {
		return nil, err
	}

	accepted, rejected, err := s.screenAttributes(active, stamped)
	if err != nil {
		return nil, err
	}

	// Contract-mandatory keys must be present at creation, on top of whatever
	// the pivot group demands.
	for _, key := range active.MandatoryKeys() {
		if a, ok := accepted[key]; !ok || a.Value == "" {
			result := change.Failure(change.CodeMissingMandatoryAttribute, "contract-mandatory attribute missing: "+key.String(), now)
			result.Attributes = rejected
			s.observe("create", result)
			return result, nil
		}
	}

	pivotStatuses, err := s.validator.ValidateCreate(s.rules.PivotGroup(), accepted)
	if err != nil {
		return nil, err
	}
	for _, status := range pivotStatuses {
		if !status.Accepted() {
			result := change.Failure(status.Code, status.Reason, now)
			result.Attributes = append(rejected, pivotStatuses...)
			s.observe("create", result)
			return result, nil
		}
	}

	if len(accepted) == 0 {
		result := &change.ChangeResult{
			Status:     change.StatusFailure,
			Code:       change.CodeInvalidValue,
			Attributes: rejected,
			DecidedAt:  now,
		}
		s.observe("create", result)
		return result, nil
	}

	stampAuthorship(accepted, clientCode, now)
	ident, err := identity.NewIdentity(id.NewCUID(), accepted, now)
	if err != nil {
		return nil, err
	}
	if err := s.identities.Create(ctx, ident); err != nil {
		return nil, err
	}

	result := &change.ChangeResult{
		CUID:       ident.CUID,
		Status:     change.StatusOK,
		Attributes: make([]change.AttributeStatus, 0, len(accepted)+len(rejected)),
		DecidedAt:  now,
	}
	for _, key := range accepted.Keys() {
		result.Attributes = append(result.Attributes, change.AttributeStatus{Key: key, Code: change.CodeOK})
	}
	result.Attributes = append(result.Attributes, rejected...)
	if len(rejected) > 0 {
		result.Status = change.StatusIncompleteSuccess
	}

	s.observe("create", result)
	s.emitAudit(ctx, audit.Event{
		RequestID:  requestcontext.RequestID(ctx),
		ClientCode: clientCode,
		CUID:       ident.CUID,
		Action:     audit.EventIdentityCreated,
		Status:     result.Status,
	})
	return result, nil
}
