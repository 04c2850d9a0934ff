// Package handler wires the change engine to its HTTP endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	change "civreg/internal/change/models"
	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/requestcontext"
)

// Service defines the engine operations the handler exposes.
type Service interface {
	ValidateCreate(ctx context.Context, clientCode id.ClientCode, attrs identity.AttributeSet) (*change.ChangeResult, error)
	ValidateUpdate(ctx context.Context, clientCode id.ClientCode, cuid id.CUID, attrs identity.AttributeSet) (*change.ChangeResult, error)
	ValidateMerge(ctx context.Context, clientCode id.ClientCode, primaryCUID, secondaryCUID id.CUID) (*change.MergeResult, error)
	CancelMerge(ctx context.Context, clientCode id.ClientCode, secondaryCUID id.CUID) error
	Delete(ctx context.Context, clientCode id.ClientCode, cuid id.CUID) error
	Decertify(ctx context.Context, clientCode id.ClientCode, cuid id.CUID, key id.AttrKey) error
	EvaluateDuplicates(ctx context.Context, clientCode id.ClientCode, candidate identity.AttributeSet, selfCUID id.CUID) ([]change.Suspect, error)
}

// Handler wires change endpoints to the engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a change handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts change endpoints on the router. The auth middleware has
// already put the client code on the context.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identities", h.HandleCreate)
	r.Post("/identities/{cuid}/attributes", h.HandleUpdate)
	r.Post("/identities/{cuid}/merge", h.HandleMerge)
	r.Post("/identities/{cuid}/cancel-merge", h.HandleCancelMerge)
	r.Delete("/identities/{cuid}", h.HandleDelete)
	r.Post("/identities/{cuid}/decertify", h.HandleDecertify)
	r.Post("/duplicates/check", h.HandleDuplicateCheck)
}

func (h *Handler) client(w http.ResponseWriter, r *http.Request) (id.ClientCode, bool) {
	clientCode := requestcontext.ClientCode(r.Context())
	if clientCode.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return clientCode, true
}

func pathCUID(w http.ResponseWriter, r *http.Request) (id.CUID, bool) {
	cuid, err := id.ParseCUID(chi.URLParam(r, "cuid"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return cuid, true
}

// HandleCreate handles POST /identities.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	clientCode, ok := h.client(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateIdentityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.ValidateCreate(ctx, clientCode, req.ParsedAttributes())
	if err != nil {
		h.logger.ErrorContext(ctx, "identity creation failed",
			"request_id", requestID,
			"client_code", clientCode,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "identity creation decided",
		"request_id", requestID,
		"client_code", clientCode,
		"status", result.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	status := http.StatusCreated
	if result.Status == change.StatusFailure {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, ChangeResponse{result})
}

// HandleUpdate handles POST /identities/{cuid}/attributes.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	clientCode, ok := h.client(w, r)
	if !ok {
		return
	}
	cuid, ok := pathCUID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateIdentityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.ValidateUpdate(ctx, clientCode, cuid, req.ParsedAttributes())
	if err != nil {
		h.logger.ErrorContext(ctx, "identity update failed",
			"request_id", requestID,
			"client_code", clientCode,
			"cuid", cuid,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "identity update decided",
		"request_id", requestID,
		"client_code", clientCode,
		"cuid", result.CUID,
		"status", result.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	status := http.StatusOK
	if result.Status == change.StatusFailure {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, ChangeResponse{result})
}

// HandleMerge handles POST /identities/{cuid}/merge.
func (h *Handler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	clientCode, ok := h.client(w, r)
	if !ok {
		return
	}
	primary, ok := pathCUID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[MergeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.ValidateMerge(ctx, clientCode, primary, req.ParsedSecondary())
	if err != nil {
		h.logger.ErrorContext(ctx, "identity merge failed",
			"request_id", requestID,
			"client_code", clientCode,
			"primary_cuid", primary,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "identity merge decided",
		"request_id", requestID,
		"client_code", clientCode,
		"primary_cuid", result.PrimaryCUID,
		"secondary_cuid", result.SecondaryCUID,
		"status", result.Status,
		"conflicts", len(result.Conflicts),
	)
	status := http.StatusOK
	if result.Status == change.StatusFailure {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, MergeResponse{result})
}

// HandleCancelMerge handles POST /identities/{cuid}/cancel-merge.
func (h *Handler) HandleCancelMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientCode, ok := h.client(w, r)
	if !ok {
		return
	}
	cuid, ok := pathCUID(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelMerge(ctx, clientCode, cuid); err != nil {
		h.logger.ErrorContext(ctx, "merge cancellation failed",
			"request_id", requestcontext.RequestID(ctx),
			"client_code", clientCode,
			"cuid", cuid,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete handles DELETE /identities/{cuid}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientCode, ok := h.client(w, r)
	if !ok {
		return
	}
	cuid, ok := pathCUID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, clientCode, cuid); err != nil {
		h.logger.ErrorContext(ctx, "identity deletion failed",
			"request_id", requestcontext.RequestID(ctx),
			"client_code", clientCode,
			"cuid", cuid,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDecertify handles POST /identities/{cuid}/decertify.
func (h *Handler) HandleDecertify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	clientCode, ok := h.client(w, r)
	if !ok {
		return
	}
	cuid, ok := pathCUID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecertifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.Decertify(ctx, clientCode, cuid, req.ParsedKey()); err != nil {
		h.logger.ErrorContext(ctx, "decertification failed",
			"request_id", requestID,
			"client_code", clientCode,
			"cuid", cuid,
			"key", req.ParsedKey(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDuplicateCheck handles POST /duplicates/check.
func (h *Handler) HandleDuplicateCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	clientCode, ok := h.client(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DuplicateCheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	suspects, err := h.service.EvaluateDuplicates(ctx, clientCode, req.ParsedAttributes(), req.ParsedExclude())
	if err != nil {
		h.logger.ErrorContext(ctx, "duplicate check failed",
			"request_id", requestID,
			"client_code", clientCode,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "duplicate check decided",
		"request_id", requestID,
		"client_code", clientCode,
		"suspects", len(suspects),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, DuplicatesResponse{Suspects: suspects})
}
