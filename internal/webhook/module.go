package webhook

import (
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the webhook module.
func NewModule(router *Router, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(router, val, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the inbound delivery route. The gateway cannot carry
// an admin key, so the route is public; idempotency and routing rules are
// the actual defense.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.POST("/webhook/whatsapp", m.handler.Inbound)
}

var _ apphttp.Module = (*Module)(nil)
