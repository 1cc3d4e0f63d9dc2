package tenants

import (
	"time"

	"github.com/google/uuid"
)

// Vertical identifies the business vertical a conversation is routed into.
type Vertical string

const (
	VerticalRealty  Vertical = "realty"
	VerticalExpo    Vertical = "expo"
	VerticalSupport Vertical = "support"
)

var knownVerticals = map[Vertical]struct{}{
	VerticalRealty:  {},
	VerticalExpo:    {},
	VerticalSupport: {},
}

// IsValid reports whether v is a known vertical.
func (v Vertical) IsValid() bool {
	_, ok := knownVerticals[v]
	return ok
}

// Tenant is a business account owning a WhatsApp gateway number.
// Tenants change only via the explicit admin upsert; active tenants are
// never deleted while sessions reference them.
type Tenant struct {
	ID              uuid.UUID `db:"id"`
	Name            string    `db:"name"`
	GatewayNumber   string    `db:"gateway_number"`
	Secret          string    `db:"secret"`
	DefaultVertical Vertical  `db:"default_vertical"`
	Active          bool      `db:"active"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// UpsertParams contains parameters for creating or updating a tenant.
type UpsertParams struct {
	ID              *uuid.UUID
	Name            string
	GatewayNumber   string
	Secret          string
	DefaultVertical Vertical
	Active          bool
}
