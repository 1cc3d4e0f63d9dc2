package sessions

import (
	"time"

	"github.com/google/uuid"

	"leadrouter_backend/internal/tenants"
)

// Status is the lifecycle state of a routing session.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
	StatusClosed  Status = "CLOSED"
)

// Session binds a contact identity to one tenant's conversation context for
// a bounded window. The contact ID is the sole key: a contact can never hold
// two active sessions, across any tenants.
type Session struct {
	ContactID      string           `json:"contactId"`
	TenantID       uuid.UUID        `json:"tenantId"`
	Vertical       tenants.Vertical `json:"vertical"`
	Status         Status           `json:"status"`
	CreatedAt      time.Time        `json:"createdAt"`
	LastActivityAt time.Time        `json:"lastActivityAt"`
	ExpiresAt      time.Time        `json:"expiresAt"`
}
