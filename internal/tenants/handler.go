package tenants

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/phone"
	"leadrouter_backend/platform/sanitize"
	"leadrouter_backend/platform/validator"
)

// UpsertTenantRequest contains data for creating or updating a tenant.
type UpsertTenantRequest struct {
	ID              *uuid.UUID `json:"id,omitempty"`
	Name            string     `json:"name" validate:"required,min=1,max=200"`
	GatewayNumber   string     `json:"gatewayNumber" validate:"required"`
	Secret          string     `json:"secret" validate:"required,min=8"`
	DefaultVertical string     `json:"defaultVertical" validate:"required"`
	Active          *bool      `json:"active,omitempty"`
}

// TenantResponse represents a tenant in API responses.
// The access secret is never echoed back.
type TenantResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	GatewayNumber   string    `json:"gatewayNumber"`
	DefaultVertical string    `json:"defaultVertical"`
	Active          bool      `json:"active"`
}

// Handler handles HTTP requests for tenant administration.
type Handler struct {
	repo Repository
	val  *validator.Validator
}

// NewHandler creates a new tenants handler.
func NewHandler(repo Repository, val *validator.Validator) *Handler {
	return &Handler{repo: repo, val: val}
}

// Upsert creates or updates a tenant.
// POST /api/v1/admin/tenants
func (h *Handler) Upsert(c *gin.Context) {
	var req UpsertTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	vertical := Vertical(req.DefaultVertical)
	if !vertical.IsValid() {
		httpkit.Error(c, http.StatusBadRequest, "unknown vertical", req.DefaultVertical)
		return
	}
	if !phone.IsValid(req.GatewayNumber) {
		httpkit.Error(c, http.StatusBadRequest, "gateway number is not a valid phone number", nil)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	tenant, err := h.repo.Upsert(c.Request.Context(), UpsertParams{
		ID:              req.ID,
		Name:            sanitize.Text(req.Name),
		GatewayNumber:   phone.NormalizeE164(req.GatewayNumber),
		Secret:          req.Secret,
		DefaultVertical: vertical,
		Active:          active,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toResponse(tenant))
}

// Get retrieves a tenant by ID.
// GET /api/v1/admin/tenants/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid tenant ID", nil)
		return
	}

	tenant, err := h.repo.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toResponse(tenant))
}

func toResponse(t Tenant) TenantResponse {
	return TenantResponse{
		ID:              t.ID,
		Name:            t.Name,
		GatewayNumber:   t.GatewayNumber,
		DefaultVertical: string(t.DefaultVertical),
		Active:          t.Active,
	}
}
