// Package tenants provides the tenant administration bounded context.
// Tenant records are the routing anchor for every deep link, session and lead.
package tenants

import (
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the tenants bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	repo    Repository
}

// NewModule creates and initializes the tenants module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := New(pool)
	return &Module{
		handler: NewHandler(repo, val),
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tenants"
}

// Repository exposes tenant reads to sibling modules.
func (m *Module) Repository() Repository {
	return m.repo
}

// RegisterRoutes mounts tenant admin routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	adminGroup := ctx.Admin.Group("/tenants")
	adminGroup.POST("", m.handler.Upsert)
	adminGroup.GET("/:id", m.handler.Get)
}

var _ apphttp.Module = (*Module)(nil)
