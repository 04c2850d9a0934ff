package change

import (
	"context"
	"errors"

	change "civreg/internal/change/models"
	contractmodels "civreg/internal/contract/models"
	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// EvaluateDuplicates runs the configured duplicate rules against a candidate
// attribute set. selfCUID, when non-zero, excludes the caller's own record
// (the pre-update check on an existing identity).
//
// Only keys the contract may search on participate: the candidate set is
// projected onto the contract's searchable rights before evaluation, so a
// client cannot probe attributes it has no access to.
func (s *Service) EvaluateDuplicates(ctx context.Context, clientCode id.ClientCode, candidate identity.AttributeSet, selfCUID id.CUID) ([]change.Suspect, error) {
	ctx, span := s.startSpan(ctx, "change.EvaluateDuplicates", clientCode)
	defer span.End()

	active, code, err := s.gate.ResolveActive(ctx, clientCode)
	if err != nil {
		return nil, err
	}
	if code != change.CodeOK {
		return nil, dErrors.New(dErrors.CodeForbidden, "no active contract for client")
	}
	if code := s.gate.AuthorizeOperation(ctx, active, contractmodels.CapSearch); code != change.CodeOK {
		return nil, dErrors.New(dErrors.CodeForbidden, "search capability not granted by contract")
	}

	searchable := make(identity.AttributeSet, len(candidate))
	for key, a := range candidate {
		if s.gate.CheckSearchable(active, key) {
			searchable[key] = a
		}
	}

	if !selfCUID.IsZero() {
		// A stale alias is fine here: resolving it only tightens exclusion.
		if master, err := s.resolveMaster(ctx, selfCUID); err == nil {
			selfCUID = master.CUID
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
	}

	suspects, err := s.evaluator.FindSuspects(ctx, searchable, selfCUID, s.rules.Rules())
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DuplicateSuspects.Observe(float64(len(suspects)))
	}
	if s.logger != nil && len(suspects) > 0 {
		s.logger.InfoContext(ctx, "duplicate suspects found",
			"client_code", clientCode,
			"count", len(suspects),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return suspects, nil
}
