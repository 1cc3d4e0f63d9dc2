// Package tokens implements the deep-link token store: short-lived opaque
// tokens that route a contact's first inbound message to a tenant and vertical.
package tokens

import (
	"github.com/redis/go-redis/v9"

	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"
)

// Module is the tokens bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the tokens module.
func NewModule(rdb *redis.Client, tenantReader TenantReader, cfg config.RouterConfig, val *validator.Validator, log *logger.Logger) *Module {
	store := NewStore(rdb, cfg.GetTokenTTL())
	svc := NewService(store, tenantReader, cfg, log)

	return &Module{
		handler: NewHandler(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tokens"
}

// Service exposes token resolution to the webhook module.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts the link-generator routes.
// QR rendering is public so chat clients can fetch the image; generation is
// reserved for the dashboard.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/router/generate-link", m.handler.GenerateLink)
	ctx.Public.GET("/router/qr/:token", m.handler.QR)
}

var _ apphttp.Module = (*Module)(nil)
