package tokens

import (
	"time"

	"github.com/google/uuid"

	"leadrouter_backend/internal/tenants"
)

// DeepLinkToken maps an opaque token to the routing tuple it was minted for.
// Tokens are read-only after creation; resolving one never mutates state.
type DeepLinkToken struct {
	Token         string           `json:"token"`
	TenantID      uuid.UUID        `json:"tenantId"`
	Vertical      tenants.Vertical `json:"vertical"`
	GatewayNumber string           `json:"gatewayNumber"`
	SeedMessage   string           `json:"seedMessage,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// RoutingTuple is the result of resolving a token.
type RoutingTuple struct {
	TenantID      uuid.UUID
	Vertical      tenants.Vertical
	GatewayNumber string
}
