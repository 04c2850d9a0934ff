// Package change orchestrates identity mutations. It sequences the contract
// gate, the pivot validator, the certification comparator, and the merge
// engine per request; it owns no business rules itself.
//
// All decisions are computed before any write is issued, so there is no
// partial-commit state to roll back. Mutating operations are serialized per
// CUID; reads run fully in parallel.
package change

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"civreg/internal/audit"
	"civreg/internal/change/metrics"
	change "civreg/internal/change/models"
	"civreg/internal/contract"
	contractmodels "civreg/internal/contract/models"
	"civreg/internal/duplicate"
	identity "civreg/internal/identity/models"
	"civreg/internal/merge"
	"civreg/internal/pivot"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// IdentityStore is the persistence capability the orchestrator needs.
// Updates replace the stored snapshot wholesale.
type IdentityStore interface {
	Create(ctx context.Context, ident *identity.Identity) error
	FindByCUID(ctx context.Context, cuid id.CUID) (*identity.Identity, error)
	Update(ctx context.Context, ident *identity.Identity) error
}

// ReferenceSource resolves key definitions and certification levels;
// satisfied by the certification registry.
type ReferenceSource interface {
	Definition(key id.AttrKey) (identity.KeyDefinition, error)
	LevelOf(processus id.ProcessusCode, key id.AttrKey) (int, error)
	ResolveLevel(processus id.ProcessusCode, key id.AttrKey) int
}

// RuleSource serves the configured duplicate rules and pivot group;
// satisfied by the refdata rule service.
type RuleSource interface {
	Rules() []duplicate.Rule
	PivotGroup() pivot.Group
}

// AuditPublisher forwards decision events. Best-effort: failures are logged,
// never propagated.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// DeletionRetention is how long a soft-deleted identity is kept before the
// persistence layer may purge it.
const DeletionRetention = 90 * 24 * time.Hour

// Service is the change orchestrator.
type Service struct {
	identities IdentityStore
	gate       *contract.Gate
	reference  ReferenceSource
	rules      RuleSource
	validator  *pivot.Validator
	evaluator  *duplicate.Evaluator
	merger     *merge.Engine
	snapshots  merge.SnapshotStore

	locks   *keyedMutex
	tracer  trace.Tracer
	logger  *slog.Logger
	auditor AuditPublisher
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the orchestrator. Every collaborator except the options is
// required.
func New(
	identities IdentityStore,
	gate *contract.Gate,
	reference ReferenceSource,
	rules RuleSource,
	validator *pivot.Validator,
	evaluator *duplicate.Evaluator,
	merger *merge.Engine,
	snapshots merge.SnapshotStore,
	opts ...Option,
) (*Service, error) {
	switch {
	case identities == nil:
		return nil, fmt.Errorf("identity store is required")
	case gate == nil:
		return nil, fmt.Errorf("contract gate is required")
	case reference == nil:
		return nil, fmt.Errorf("reference source is required")
	case rules == nil:
		return nil, fmt.Errorf("rule source is required")
	case validator == nil:
		return nil, fmt.Errorf("pivot validator is required")
	case evaluator == nil:
		return nil, fmt.Errorf("duplicate evaluator is required")
	case merger == nil:
		return nil, fmt.Errorf("merge engine is required")
	case snapshots == nil:
		return nil, fmt.Errorf("snapshot store is required")
	}

	s := &Service{
		identities: identities,
		gate:       gate,
		reference:  reference,
		rules:      rules,
		validator:  validator,
		evaluator:  evaluator,
		merger:     merger,
		snapshots:  snapshots,
		locks:      newKeyedMutex(),
		tracer:     otel.Tracer("civreg/change"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// resolveContract runs the two request-level checks shared by every entry
// point: active contract and operation capability. A nil contract with a
// non-nil result means the request already failed.
func (s *Service) resolveContract(ctx context.Context, clientCode id.ClientCode, cap contractmodels.Capability, decidedAt time.Time) (*contractmodels.ServiceContract, *change.ChangeResult, error) {
	active, code, err := s.gate.ResolveActive(ctx, clientCode)
	if err != nil {
		return nil, nil, err
	}
	if code != change.CodeOK {
		return nil, change.Failure(code, "no active contract for client", decidedAt), nil
	}
	if code := s.gate.AuthorizeOperation(ctx, active, cap); code != change.CodeOK {
		return nil, change.Failure(code, "operation not granted by contract", decidedAt), nil
	}
	return active, nil, nil
}

// stampLevels returns a copy of the attribute set with every certification's
// level resolved through the registry. An unknown (processus, key) pair on an
// incoming write is a reference-data defect and fails the request.
func (s *Service) stampLevels(attrs identity.AttributeSet) (identity.AttributeSet, error) {
	stamped := attrs.Clone()
	for key, a := range stamped {
		if a.Certification == nil {
			continue
		}
		level, err := s.reference.LevelOf(a.Certification.Processus, key)
		if err != nil {
			return nil, err
		}
		a.Certification.Level = level
		stamped[key] = a
	}
	return stamped, nil
}

// screenAttributes runs value validation and the contract's per-attribute
// checks. It returns the surviving set and the statuses of the rejected
// attributes. Per-attribute failures never abort siblings.
func (s *Service) screenAttributes(c *contractmodels.ServiceContract, attrs identity.AttributeSet) (identity.AttributeSet, []change.AttributeStatus, error) {
	accepted := make(identity.AttributeSet, len(attrs))
	var rejected []change.AttributeStatus

	for key, a := range attrs {
		def, err := s.reference.Definition(key)
		if err != nil {
			return nil, nil, err
		}
		if err := def.ValidateValue(a.Value); err != nil {
			rejected = append(rejected, change.AttributeStatus{
				Key:    key,
				Code:   change.CodeInvalidValue,
				Reason: err.Error(),
			})
			continue
		}
		if status := s.gate.CheckWrite(c, key, a); !status.Accepted() {
			rejected = append(rejected, status)
			continue
		}
		accepted[key] = a
	}
	return accepted, rejected, nil
}

// stampAuthorship marks every attribute in the set as written by the client at
// the request time. Applied only to accepted writes.
func stampAuthorship(attrs identity.AttributeSet, author id.ClientCode, now time.Time) {
	for key, a := range attrs {
		a.Author = author
		a.UpdatedAt = now
		attrs[key] = a
	}
}

// resolveMaster follows merge aliases so a secondary's CUID keeps working
// after a fusion.
func (s *Service) resolveMaster(ctx context.Context, cuid id.CUID) (*identity.Identity, error) {
	const maxHops = 10
	for range maxHops {
		ident, err := s.identities.FindByCUID(ctx, cuid)
		if err != nil {
			return nil, err
		}
		if !ident.IsMerged() {
			return ident, nil
		}
		cuid = ident.MergedInto
	}
	return nil, dErrors.Newf(dErrors.CodeInternal, "merge alias chain too deep for %s", cuid)
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"action", event.Action,
			"cuid", event.CUID,
			"error", err,
		)
	}
}

func (s *Service) observe(op string, result *change.ChangeResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDecision(op, string(result.Status))
	for _, status := range result.Attributes {
		if !status.Accepted() {
			s.metrics.ObserveRejection(string(status.Code))
		}
	}
}

func (s *Service) startSpan(ctx context.Context, name string, clientCode id.ClientCode) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("client_code", clientCode.String()),
	))
}

// levelsResolvable preflights stored certifications before a merge: sides
// carrying retired processus stay comparable as Incomparable rather than
// failing, so nothing to do here beyond re-stamping with the lenient lookup.
func (s *Service) restampStored(attrs identity.AttributeSet) identity.AttributeSet {
	restamped := attrs.Clone()
	for key, a := range restamped {
		if a.Certification == nil {
			continue
		}
		a.Certification.Level = s.reference.ResolveLevel(a.Certification.Processus, key)
		restamped[key] = a
	}
	return restamped
}
