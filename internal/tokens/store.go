package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"leadrouter_backend/platform/apperr"
)

const tokenKeyPrefix = "deeplink:"

// Store persists deep-link tokens in Redis. Expiry is delegated to the key
// TTL, so a resolved token is live by definition.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore creates a token store. A zero ttl means tokens never expire.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Save stores the token record if and only if the token is not already taken.
// Returns false when the token collided with an existing one.
func (s *Store) Save(ctx context.Context, record DeepLinkToken) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("marshal token record: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, tokenKeyPrefix+record.Token, data, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("save token: %w", err)
	}
	return ok, nil
}

// Get retrieves the full token record.
// A missing or expired token yields a not-found error.
func (s *Store) Get(ctx context.Context, token string) (DeepLinkToken, error) {
	data, err := s.rdb.Get(ctx, tokenKeyPrefix+token).Bytes()
	if err != nil {
		if err == redis.Nil {
			return DeepLinkToken{}, apperr.NotFound("token not found")
		}
		return DeepLinkToken{}, fmt.Errorf("resolve token: %w", err)
	}

	var record DeepLinkToken
	if err := json.Unmarshal(data, &record); err != nil {
		return DeepLinkToken{}, fmt.Errorf("unmarshal token record: %w", err)
	}
	return record, nil
}

// Resolve looks up the routing tuple for a token.
func (s *Store) Resolve(ctx context.Context, token string) (RoutingTuple, error) {
	record, err := s.Get(ctx, token)
	if err != nil {
		return RoutingTuple{}, err
	}

	return RoutingTuple{
		TenantID:      record.TenantID,
		Vertical:      record.Vertical,
		GatewayNumber: record.GatewayNumber,
	}, nil
}
