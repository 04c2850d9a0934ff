package models

import (
	"time"

	"github.com/google/uuid"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// Capability gates a whole operation class before any attribute-level check.
type Capability string

const (
	CapCreation        Capability = "creation"
	CapUpdate          Capability = "update"
	CapMerge           Capability = "merge"
	CapSearch          Capability = "search"
	CapImport          Capability = "import"
	CapExport          Capability = "export"
	CapDeletion        Capability = "deletion"
	CapDecertification Capability = "decertification"
	CapAccountUpdate   Capability = "account_update"
)

// AttributeRight is one per-attribute authorization row of a contract.
type AttributeRight struct {
	Key         id.AttrKey
	Readable    bool
	Writable    bool
	Searchable  bool
	Certifiable bool
	// Mandatory is enforced only at identity creation.
	Mandatory bool
}

// ServiceContract is the time-bounded authorization profile of one client.
//
// Invariants:
//   - ClientCode is non-empty and immutable
//   - Active iff now ∈ [Start, End); a nil End is open-ended
//   - At most one contract is active per client at any instant; the closing
//     operation guarantees this by setting End before a successor starts
//   - Rights, Requirements, and AllowedProcessus are fixed at request time;
//     amending a contract produces a new value, never an in-place edit
type ServiceContract struct {
	ID         uuid.UUID
	ClientCode id.ClientCode
	Label      string
	Start      time.Time
	End        *time.Time
	// SecretHash is the bcrypt hash of the client credential used on the
	// transport edge. Never serialized.
	SecretHash []byte

	Capabilities []Capability
	Rights       map[id.AttrKey]AttributeRight
	// Requirements is the minimum certification level the contract demands
	// per attribute for a write to be accepted at all.
	Requirements map[id.AttrKey]int
	// AllowedProcessus restricts which processus codes the contract may
	// assert per attribute. A key absent from the map is unrestricted; an
	// explicit list rejects any processus not on it.
	AllowedProcessus map[id.AttrKey][]id.ProcessusCode

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewServiceContract constructs an open-ended contract starting at start.
func NewServiceContract(clientCode id.ClientCode, label string, start time.Time, now time.Time) (*ServiceContract, error) {
	if clientCode.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contract client code cannot be empty")
	}
	if label == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contract label cannot be empty")
	}
	return &ServiceContract{
		ID:               uuid.New(),
		ClientCode:       clientCode,
		Label:            label,
		Start:            start,
		Rights:           map[id.AttrKey]AttributeRight{},
		Requirements:     map[id.AttrKey]int{},
		AllowedProcessus: map[id.AttrKey][]id.ProcessusCode{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ActiveAt reports whether the contract covers the given instant.
func (c *ServiceContract) ActiveAt(now time.Time) bool {
	if now.Before(c.Start) {
		return false
	}
	return c.End == nil || now.Before(*c.End)
}

// CanClose checks the closing transition.
func (c *ServiceContract) CanClose(end time.Time) error {
	if c.End != nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "contract is already closed")
	}
	if end.Before(c.Start) {
		return dErrors.New(dErrors.CodeInvariantViolation, "contract end cannot precede its start")
	}
	return nil
}

// Closed returns a copy of the contract with the end date set. The receiver
// is left untouched.
func (c *ServiceContract) Closed(end time.Time, now time.Time) (*ServiceContract, error) {
	if err := c.CanClose(end); err != nil {
		return nil, err
	}
	out := *c
	out.End = &end
	out.UpdatedAt = now
	return &out, nil
}

// Allows reports whether the contract grants an operation-level capability.
func (c *ServiceContract) Allows(cap Capability) bool {
	for _, granted := range c.Capabilities {
		if granted == cap {
			return true
		}
	}
	return false
}

// Right returns the attribute right for one key. A key with no configured
// right grants nothing.
func (c *ServiceContract) Right(key id.AttrKey) (AttributeRight, bool) {
	r, ok := c.Rights[key]
	return r, ok
}

// RequiredLevel returns the minimum certification level the contract demands
// for writes on one key; 0 when no requirement is configured.
func (c *ServiceContract) RequiredLevel(key id.AttrKey) int {
	return c.Requirements[key]
}

// ProcessusAllowed reports whether the contract may assert a certification
// from the given processus on the given key.
func (c *ServiceContract) ProcessusAllowed(key id.AttrKey, processus id.ProcessusCode) bool {
	allowed, restricted := c.AllowedProcessus[key]
	if !restricted {
		return true
	}
	for _, p := range allowed {
		if p == processus {
			return true
		}
	}
	return false
}

// MandatoryKeys lists the keys the contract marks mandatory at creation.
func (c *ServiceContract) MandatoryKeys() []id.AttrKey {
	var keys []id.AttrKey
	for k, r := range c.Rights {
		if r.Mandatory {
			keys = append(keys, k)
		}
	}
	return keys
}
