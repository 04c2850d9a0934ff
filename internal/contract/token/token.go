// Package token issues and validates the bearer tokens service clients use.
// Clients authenticate with their client code and contract secret; the token
// then carries only the client code, and every request re-resolves the active
// contract so a closed contract cuts access immediately.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"civreg/internal/contract/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// ContractSource is the store capability the issuer needs.
type ContractSource interface {
	FindActive(ctx context.Context, clientCode id.ClientCode) (*models.ServiceContract, error)
}

// Service signs and verifies client tokens.
type Service struct {
	contracts  ContractSource
	signingKey []byte
	ttl        time.Duration
}

func NewService(contracts ContractSource, signingKey []byte, ttl time.Duration) (*Service, error) {
	if contracts == nil {
		return nil, fmt.Errorf("contract source is required")
	}
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{contracts: contracts, signingKey: signingKey, ttl: ttl}, nil
}

type claims struct {
	jwt.RegisteredClaims
	ClientCode string `json:"client_code"`
}

// Issue authenticates the client against its active contract's secret and
// returns a signed token with its expiry.
func (s *Service) Issue(ctx context.Context, clientCode id.ClientCode, secret string) (string, time.Time, error) {
	c, err := s.contracts.FindActive(ctx, clientCode)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", time.Time{}, dErrors.New(dErrors.CodeUnauthorized, "unknown client or no active contract")
		}
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve contract")
	}
	if bcrypt.CompareHashAndPassword(c.SecretHash, []byte(secret)) != nil {
		return "", time.Time{}, dErrors.New(dErrors.CodeUnauthorized, "invalid client secret")
	}

	now := requestcontext.Now(ctx)
	expiresAt := now.Add(s.ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientCode.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		ClientCode: clientCode.String(),
	})
	signed, err := t.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, expiresAt, nil
}

// Validate verifies a token's signature and expiry and returns the client it
// was issued to.
func (s *Service) Validate(tokenString string) (id.ClientCode, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.ClientCode == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token carries no client code")
	}
	return id.ClientCode(c.ClientCode), nil
}
