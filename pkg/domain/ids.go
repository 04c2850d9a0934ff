// Package domain defines the typed identifiers shared across the registry.
//
// IDs are distinct types so the compiler rejects cross-type assignment
// (passing a ClientCode where a CUID is expected does not compile).
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "civreg/pkg/domain-errors"
)

// CUID is the stable public identifier of an identity. It survives merges:
// after a fusion the secondary's CUID remains resolvable as an alias of the
// primary's.
type CUID string

// NewCUID mints a fresh identity identifier.
func NewCUID() CUID {
	return CUID(uuid.NewString())
}

// ParseCUID validates an externally supplied CUID.
func ParseCUID(s string) (CUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "cuid cannot be empty")
	}
	if len(s) > 64 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "cuid must be 64 characters or less")
	}
	return CUID(s), nil
}

func (c CUID) String() string { return string(c) }
func (c CUID) IsZero() bool   { return c == "" }

// ClientCode identifies a calling client application. Contracts are resolved
// by client code.
type ClientCode string

// ParseClientCode validates an externally supplied client code.
func ParseClientCode(s string) (ClientCode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "client code cannot be empty")
	}
	return ClientCode(s), nil
}

func (c ClientCode) String() string { return string(c) }
func (c ClientCode) IsZero() bool   { return c == "" }

// AttrKey names one attribute of an identity (e.g. "family_name").
type AttrKey string

func (k AttrKey) String() string { return string(k) }
func (k AttrKey) IsZero() bool   { return k == "" }

// ProcessusCode names a certification processus, i.e. the verification method
// a trust provider used to certify an attribute value.
type ProcessusCode string

func (p ProcessusCode) String() string { return string(p) }
func (p ProcessusCode) IsZero() bool   { return p == "" }
