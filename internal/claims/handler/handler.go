package handler

import (
	"context"
	"net/http"
	"strings"

	"cashback_backend/internal/claims/domain"
	"cashback_backend/internal/claims/override"
	"cashback_backend/internal/claims/registry"
	"cashback_backend/internal/claims/transport"
	"cashback_backend/platform/apperr"
	"cashback_backend/platform/httpkit"
	"cashback_backend/platform/logger"
	"cashback_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid claim id"
)

// Claims is the registry surface the admin API reads and closes claims with.
type Claims interface {
	ListAll(ctx context.Context, identity string) ([]domain.Claim, error)
	ResolveResumeScreen(ctx context.Context, identity string) (registry.Resume, error)
	MarkPaid(ctx context.Context, id uuid.UUID, source registry.Source) (domain.Claim, error)
}

// Overrides applies seller commands.
type Overrides interface {
	Resolve(ctx context.Context, identity string, cmd override.Command) (override.Result, error)
}

// Handler handles HTTP requests for the claims admin API.
type Handler struct {
	claims    Claims
	overrides Overrides
	val       *validator.Validator
	log       *logger.Logger
}

func New(claims Claims, overrides Overrides, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{claims: claims, overrides: overrides, val: val, log: log}
}

// Override applies a seller confirm or cancel.
// POST /api/v1/admin/claims/override
func (h *Handler) Override(c *gin.Context) {
	var req transport.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	operator := httpkit.MustGetIdentity(c)
	if operator == nil {
		return
	}

	cmd := req.Command()
	result, err := h.overrides.Resolve(c.Request.Context(), req.Identity, cmd)
	if err != nil {
		h.log.WithIdentity(req.Identity).Info("admin override rejected", "operator", operator.Subject(), "command", cmd.String(), "error", err)
	}
	if httpkit.HandleError(c, err) {
		return
	}

	h.log.WithIdentity(req.Identity).Info("admin override applied", "operator", operator.Subject(), "command", cmd.String())
	httpkit.OK(c, transport.ToOverrideResponse(result))
}

// ListClaims returns every claim of an identity with the current resume screen.
// GET /api/v1/admin/claims/:identity
func (h *Handler) ListClaims(c *gin.Context) {
	identity := strings.TrimSpace(c.Param("identity"))
	if err := h.val.Var(identity, "required,identity"); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	ctx := c.Request.Context()
	claims, err := h.claims.ListAll(ctx, identity)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.ClaimListResponse{Identity: identity, Claims: make([]transport.ClaimResponse, 0, len(claims))}
	for _, claim := range claims {
		resp.Claims = append(resp.Claims, transport.ToClaimResponse(claim))
	}

	resume, err := h.claims.ResolveResumeScreen(ctx, identity)
	switch {
	case err == nil:
		resp.Resume = transport.ToResumeResponse(&resume)
	case apperr.Is(err, apperr.KindNotFound):
	default:
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, resp)
}

// MarkPaid closes a claim whose payout went out.
// POST /api/v1/admin/claims/:id/paid
func (h *Handler) MarkPaid(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	operator := httpkit.MustGetIdentity(c)
	if operator == nil {
		return
	}

	claim, err := h.claims.MarkPaid(c.Request.Context(), id, registry.SourceAdminAPI)
	if httpkit.HandleError(c, err) {
		return
	}
	h.log.WithIdentity(claim.Identity).Info("claim marked paid", "operator", operator.Subject(), "claimId", claim.ID)
	httpkit.OK(c, transport.ToClaimResponse(claim))
}
