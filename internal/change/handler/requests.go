package handler

import (
	"strings"
	"time"

	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

const maxAttributesPerRequest = 64

// CertificationWrite is the wire form of one attribute's certification.
type CertificationWrite struct {
	Processus   string     `json:"processus"`
	CertifiedAt time.Time  `json:"certified_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// AttributeWrite is the wire form of one requested attribute value.
type AttributeWrite struct {
	Value         string              `json:"value"`
	Certification *CertificationWrite `json:"certification,omitempty"`
}

func parseAttributes(raw map[string]AttributeWrite) (identity.AttributeSet, error) {
	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one attribute is required")
	}
	if len(raw) > maxAttributesPerRequest {
		return nil, dErrors.Newf(dErrors.CodeValidation, "at most %d attributes per request", maxAttributesPerRequest)
	}

	attrs := make(identity.AttributeSet, len(raw))
	for rawKey, w := range raw {
		key := id.AttrKey(strings.TrimSpace(rawKey))
		if key.IsZero() {
			return nil, dErrors.New(dErrors.CodeValidation, "attribute key cannot be empty")
		}
		a := identity.Attribute{Value: strings.TrimSpace(w.Value)}
		if w.Certification != nil {
			proc := id.ProcessusCode(strings.TrimSpace(w.Certification.Processus))
			if proc.IsZero() {
				return nil, dErrors.Newf(dErrors.CodeValidation, "certification of %s requires a processus", key)
			}
			if w.Certification.CertifiedAt.IsZero() {
				return nil, dErrors.Newf(dErrors.CodeValidation, "certification of %s requires certified_at", key)
			}
			a.Certification = &identity.Certification{
				Processus:   proc,
				CertifiedAt: w.Certification.CertifiedAt,
				ExpiresAt:   w.Certification.ExpiresAt,
			}
		}
		attrs[key] = a
	}
	return attrs, nil
}

// CreateIdentityRequest is the HTTP request body for POST /identities.
type CreateIdentityRequest struct {
	Attributes map[string]AttributeWrite `json:"attributes"`

	parsed identity.AttributeSet
}

func (r *CreateIdentityRequest) Validate() error {
	attrs, err := parseAttributes(r.Attributes)
	if err != nil {
		return err
	}
	r.parsed = attrs
	return nil
}

func (r *CreateIdentityRequest) ParsedAttributes() identity.AttributeSet { return r.parsed }

// UpdateIdentityRequest is the HTTP request body for
// POST /identities/{cuid}/attributes.
type UpdateIdentityRequest struct {
	Attributes map[string]AttributeWrite `json:"attributes"`

	parsed identity.AttributeSet
}

func (r *UpdateIdentityRequest) Validate() error {
	attrs, err := parseAttributes(r.Attributes)
	if err != nil {
		return err
	}
	r.parsed = attrs
	return nil
}

func (r *UpdateIdentityRequest) ParsedAttributes() identity.AttributeSet { return r.parsed }

// MergeRequest is the HTTP request body for POST /identities/{cuid}/merge.
// The path identifies the primary; the body names the secondary absorbed
// into it.
type MergeRequest struct {
	SecondaryCUID string `json:"secondary_cuid"`

	parsed id.CUID
}

func (r *MergeRequest) Validate() error {
	cuid, err := id.ParseCUID(r.SecondaryCUID)
	if err != nil {
		return err
	}
	r.parsed = cuid
	return nil
}

func (r *MergeRequest) ParsedSecondary() id.CUID { return r.parsed }

// DuplicateCheckRequest is the HTTP request body for POST /duplicates/check.
type DuplicateCheckRequest struct {
	Attributes  map[string]AttributeWrite `json:"attributes"`
	ExcludeCUID string                    `json:"exclude_cuid,omitempty"`

	parsed        identity.AttributeSet
	parsedExclude id.CUID
}

func (r *DuplicateCheckRequest) Validate() error {
	attrs, err := parseAttributes(r.Attributes)
	if err != nil {
		return err
	}
	r.parsed = attrs
	if r.ExcludeCUID != "" {
		exclude, err := id.ParseCUID(r.ExcludeCUID)
		if err != nil {
			return err
		}
		r.parsedExclude = exclude
	}
	return nil
}

func (r *DuplicateCheckRequest) ParsedAttributes() identity.AttributeSet { return r.parsed }
func (r *DuplicateCheckRequest) ParsedExclude() id.CUID                  { return r.parsedExclude }

// DecertifyRequest is the HTTP request body for
// POST /identities/{cuid}/decertify.
type DecertifyRequest struct {
	Key string `json:"key"`

	parsed id.AttrKey
}

func (r *DecertifyRequest) Validate() error {
	key := id.AttrKey(strings.TrimSpace(r.Key))
	if key.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "key is required")
	}
	r.parsed = key
	return nil
}

func (r *DecertifyRequest) ParsedKey() id.AttrKey { return r.parsed }
