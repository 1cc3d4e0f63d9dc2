package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/platform/httpkit"
)

// Handler serves the dashboard's read-only lead API.
type Handler struct {
	repo repository.Reader
}

// New creates a new leads handler.
func New(repo repository.Reader) *Handler {
	return &Handler{repo: repo}
}

// ListByTenant returns every lead for a tenant with temperature, score and stage.
// GET /api/v1/tenants/:id/leads
func (h *Handler) ListByTenant(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid tenant ID", nil)
		return
	}

	leads, err := h.repo.ListByTenant(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, transport.FromLead(lead))
	}

	httpkit.OK(c, transport.LeadListResponse{Leads: out, Total: len(out)})
}

// Get returns a single lead.
// GET /api/v1/leads/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
		return
	}

	lead, err := h.repo.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromLead(lead))
}
