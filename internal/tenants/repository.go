package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadrouter_backend/platform/apperr"
)

const tenantNotFoundMessage = "tenant not found"

// Repository provides tenant persistence. Other modules consume the reader
// side only; writes happen through the admin upsert.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Tenant, error)
	GetByGateway(ctx context.Context, gatewayNumber string) (Tenant, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Upsert(ctx context.Context, params UpsertParams) (Tenant, error)
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new tenant repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// GetByID retrieves a tenant by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Tenant, error) {
	query := `
		SELECT id, name, gateway_number, secret, default_vertical, active, created_at, updated_at
		FROM tenants
		WHERE id = $1`

	var t Tenant
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.GatewayNumber, &t.Secret, &t.DefaultVertical, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, apperr.NotFound(tenantNotFoundMessage)
		}
		return Tenant{}, fmt.Errorf("get tenant by id: %w", err)
	}

	return t, nil
}

// GetByGateway retrieves the tenant owning a gateway number.
func (r *Repo) GetByGateway(ctx context.Context, gatewayNumber string) (Tenant, error) {
	query := `
		SELECT id, name, gateway_number, secret, default_vertical, active, created_at, updated_at
		FROM tenants
		WHERE gateway_number = $1 AND active`

	var t Tenant
	err := r.pool.QueryRow(ctx, query, gatewayNumber).Scan(
		&t.ID, &t.Name, &t.GatewayNumber, &t.Secret, &t.DefaultVertical, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, apperr.NotFound(tenantNotFoundMessage)
		}
		return Tenant{}, fmt.Errorf("get tenant by gateway: %w", err)
	}

	return t, nil
}

// Exists reports whether an active tenant with the given ID exists.
func (r *Repo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM tenants WHERE id = $1 AND active)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("tenant exists: %w", err)
	}
	return exists, nil
}

// Upsert creates or updates a tenant.
func (r *Repo) Upsert(ctx context.Context, params UpsertParams) (Tenant, error) {
	id := uuid.New()
	if params.ID != nil {
		id = *params.ID
	}

	query := `
		INSERT INTO tenants (id, name, gateway_number, secret, default_vertical, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			gateway_number = EXCLUDED.gateway_number,
			secret = EXCLUDED.secret,
			default_vertical = EXCLUDED.default_vertical,
			active = EXCLUDED.active,
			updated_at = now()
		RETURNING id, name, gateway_number, secret, default_vertical, active, created_at, updated_at`

	var t Tenant
	err := r.pool.QueryRow(ctx, query,
		id, params.Name, params.GatewayNumber, params.Secret, params.DefaultVertical, params.Active,
	).Scan(
		&t.ID, &t.Name, &t.GatewayNumber, &t.Secret, &t.DefaultVertical, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return Tenant{}, fmt.Errorf("upsert tenant: %w", err)
	}

	return t, nil
}
