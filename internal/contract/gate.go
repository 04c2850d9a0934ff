// Package contract resolves service contracts and authorizes operations and
// per-attribute writes against them.
package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	change "civreg/internal/change/models"
	"civreg/internal/contract/models"
	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// ActiveResolver is the narrow store capability the gate needs: the contract
// covering the request time for a client, or sentinel.ErrNotFound when none
// is active. Implementations take "now" from the request context so window
// checks are testable.
type ActiveResolver interface {
	FindActive(ctx context.Context, clientCode id.ClientCode) (*models.ServiceContract, error)
}

// Gate is the service-contract authorization gate. Capability checks run
// before any attribute-level check; a capability denial fails the whole
// request.
type Gate struct {
	store  ActiveResolver
	logger *slog.Logger
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func NewGate(store ActiveResolver, opts ...Option) (*Gate, error) {
	if store == nil {
		return nil, fmt.Errorf("contract store is required")
	}
	g := &Gate{store: store}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// ResolveActive returns the active contract for a client at the request time.
// A missing contract is a business outcome (NO_ACTIVE_CONTRACT), not an
// error; store failures are defects.
func (g *Gate) ResolveActive(ctx context.Context, clientCode id.ClientCode) (*models.ServiceContract, change.StatusCode, error) {
	if clientCode.IsZero() {
		return nil, change.CodeNoActiveContract, nil
	}
	c, err := g.store.FindActive(ctx, clientCode)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			if g.logger != nil {
				g.logger.WarnContext(ctx, "no active contract",
					"client_code", clientCode,
					"at", requestcontext.Now(ctx),
				)
			}
			return nil, change.CodeNoActiveContract, nil
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve contract")
	}
	return c, change.CodeOK, nil
}

// AuthorizeOperation checks a contract-level capability. Denial
// short-circuits the request with OPERATION_NOT_AUTHORIZED.
func (g *Gate) AuthorizeOperation(ctx context.Context, c *models.ServiceContract, cap models.Capability) change.StatusCode {
	if c.Allows(cap) {
		return change.CodeOK
	}
	if g.logger != nil {
		g.logger.InfoContext(ctx, "operation denied by contract",
			"client_code", c.ClientCode,
			"capability", cap,
		)
	}
	return change.CodeOperationNotAuthorized
}

// CheckWrite validates one incoming attribute write against the contract:
// writable right, certifiable right, allowed processus, and the contract's
// minimum certification level. All checks must pass; the comparator's
// overwrite decision runs separately.
func (g *Gate) CheckWrite(c *models.ServiceContract, key id.AttrKey, incoming identity.Attribute) change.AttributeStatus {
	right, ok := c.Right(key)
	if !ok || !right.Writable {
		return change.AttributeStatus{Key: key, Code: change.CodeAttributeNotWritable,
			Reason: "contract does not grant write on this attribute"}
	}

	if incoming.Certification != nil {
		if !right.Certifiable {
			return change.AttributeStatus{Key: key, Code: change.CodeAttributeNotCertifiable,
				Reason: "contract does not grant certification on this attribute"}
		}
		if !c.ProcessusAllowed(key, incoming.Certification.Processus) {
			return change.AttributeStatus{Key: key, Code: change.CodeProcessusNotAllowed,
				Reason: fmt.Sprintf("processus %s not allowed by contract", incoming.Certification.Processus)}
		}
	}

	if required := c.RequiredLevel(key); required > 0 {
		if incoming.Certification == nil {
			return change.AttributeStatus{Key: key, Code: change.CodeNotCertified,
				Reason: fmt.Sprintf("contract requires certification level %d", required)}
		}
		if incoming.Level() < required {
			return change.AttributeStatus{Key: key, Code: change.CodeLowerCertificationLevel,
				Reason: fmt.Sprintf("level %d below contract minimum %d", incoming.Level(), required)}
		}
	}

	return change.AttributeStatus{Key: key, Code: change.CodeOK}
}

// CheckSearchable reports whether the contract may use a key as a search
// criterion.
func (g *Gate) CheckSearchable(c *models.ServiceContract, key id.AttrKey) bool {
	right, ok := c.Right(key)
	return ok && right.Searchable
}

// CheckReadable reports whether the contract may read a key. Projections of
// identity snapshots onto a contract's readable keys happen at the transport
// edge.
func (g *Gate) CheckReadable(c *models.ServiceContract, key id.AttrKey) bool {
	right, ok := c.Right(key)
	return ok && right.Readable
}
