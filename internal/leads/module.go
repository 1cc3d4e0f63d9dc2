// Package leads provides the lead bounded context: tenant-scoped contact
// identities with score, temperature and conversation stage, exposed
// read-only to the dashboard.
package leads

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/internal/leads/handler"
	"leadrouter_backend/internal/leads/repository"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    repository.Repository
}

// NewModule creates and initializes the leads module.
func NewModule(pool *pgxpool.Pool) *Module {
	repo := repository.New(pool)
	return &Module{
		handler: handler.New(repo),
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Repository exposes lead persistence to the conversation engine and sweep.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts the dashboard read API.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/tenants/:id/leads", m.handler.ListByTenant)
	ctx.Protected.GET("/leads/:id", m.handler.Get)
}

var _ apphttp.Module = (*Module)(nil)
