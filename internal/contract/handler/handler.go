// Package handler exposes the token endpoint clients call before any
// registry operation.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/requestcontext"
)

// TokenIssuer authenticates a client and signs a bearer token.
type TokenIssuer interface {
	Issue(ctx context.Context, clientCode id.ClientCode, secret string) (string, time.Time, error)
}

// Handler wires the token endpoint to the issuer.
type Handler struct {
	issuer TokenIssuer
	logger *slog.Logger
}

func New(issuer TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{issuer: issuer, logger: logger}
}

// Register mounts the token endpoint. It sits outside the authenticated
// router group.
func (h *Handler) Register(r chi.Router) {
	r.Post("/token", h.HandleToken)
}

// TokenRequest is the HTTP request body for POST /token.
type TokenRequest struct {
	ClientCode   string `json:"client_code"`
	ClientSecret string `json:"client_secret"`

	parsed id.ClientCode
}

func (r *TokenRequest) Validate() error {
	code, err := id.ParseClientCode(r.ClientCode)
	if err != nil {
		return err
	}
	if r.ClientSecret == "" {
		return dErrors.New(dErrors.CodeValidation, "client_secret is required")
	}
	r.parsed = code
	return nil
}

// TokenResponse is the wire form of an issued token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// HandleToken handles POST /token.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	token, expiresAt, err := h.issuer.Issue(ctx, req.parsed, req.ClientSecret)
	if err != nil {
		h.logger.WarnContext(ctx, "token issuance refused",
			"request_id", requestID,
			"client_code", req.parsed,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "token issued",
		"request_id", requestID,
		"client_code", req.parsed,
	)
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	})
}
