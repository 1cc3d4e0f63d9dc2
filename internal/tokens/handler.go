package tokens

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"leadrouter_backend/internal/tenants"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/validator"
)

// GenerateLinkRequest is the body of POST /router/generate-link.
type GenerateLinkRequest struct {
	TenantID      uuid.UUID `json:"tenant_id" validate:"required"`
	Vertical      string    `json:"vertical" validate:"omitempty,oneof=realty expo support"`
	GatewayNumber string    `json:"gateway_number" validate:"required"`
	CustomMessage string    `json:"custom_message" validate:"omitempty,max=500"`
}

// GenerateLinkResponse mirrors the dashboard's link-generator contract.
type GenerateLinkResponse struct {
	Status      string `json:"status"`
	DeepLink    string `json:"deep_link"`
	QRCodeURL   string `json:"qr_code_url"`
	PreviewText string `json:"preview_text"`
}

// Handler handles HTTP requests for deep-link generation.
type Handler struct {
	svc *Service
	val *validator.Validator
}

// NewHandler creates a new tokens handler.
func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// GenerateLink mints a deep link for a tenant.
// POST /api/v1/router/generate-link
func (h *Handler) GenerateLink(c *gin.Context) {
	var req GenerateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	link, err := h.svc.GenerateLink(c.Request.Context(),
		req.TenantID, tenants.Vertical(req.Vertical), req.GatewayNumber, req.CustomMessage)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, GenerateLinkResponse{
		Status:      "ok",
		DeepLink:    link.DeepLink,
		QRCodeURL:   link.QRCodeURL,
		PreviewText: link.PreviewText,
	})
}

// QR renders the deep link behind a token as a PNG QR code.
// GET /api/v1/router/qr/:token
func (h *Handler) QR(c *gin.Context) {
	token := c.Param("token")

	deepLink, err := h.svc.DeepLinkFor(c.Request.Context(), token)
	if httpkit.HandleError(c, err) {
		return
	}

	png, err := qrcode.Encode(deepLink, qrcode.Medium, 256)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "qr encoding failed", nil)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
