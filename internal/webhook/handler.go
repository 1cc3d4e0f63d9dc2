package webhook

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/sanitize"
	"leadrouter_backend/platform/validator"
)

// InboundRequest is the gateway's delivery payload.
type InboundRequest struct {
	MessageID string `json:"message_id" validate:"required,max=128"`
	ContactID string `json:"contact_id" validate:"required,max=64"`
	Text      string `json:"text" validate:"max=4096"`
	Token     string `json:"token" validate:"omitempty,max=32"`
	Timestamp int64  `json:"timestamp" validate:"omitempty,gte=0"`
}

// InboundResponse acknowledges a delivery.
type InboundResponse struct {
	Status string `json:"status"`
}

// Handler handles inbound webhook deliveries.
type Handler struct {
	router *Router
	val    *validator.Validator
	log    *logger.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(router *Router, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{router: router, val: val, log: log}
}

// Inbound accepts one delivery from the transport gateway.
// POST /api/v1/webhook/whatsapp
//
// Processing failures are acknowledged with an "ignored" status instead of a
// 5xx: the gateway would otherwise redeliver forever, and the idempotency
// guard already absorbs genuine retries.
func (h *Handler) Inbound(c *gin.Context) {
	var req InboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	ts := time.Now()
	if req.Timestamp > 0 {
		ts = time.Unix(req.Timestamp, 0)
	}

	disposition, err := h.router.Route(c.Request.Context(), Delivery{
		MessageID: req.MessageID,
		ContactID: req.ContactID,
		Text:      sanitize.Text(req.Text),
		Token:     req.Token,
		Timestamp: ts,
	})
	if err != nil {
		h.log.Error("inbound delivery failed", "message_id", req.MessageID, "error", err)
		httpkit.OK(c, InboundResponse{Status: string(DispositionIgnored)})
		return
	}

	httpkit.OK(c, InboundResponse{Status: string(disposition)})
}
