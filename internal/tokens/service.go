package tokens

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"

	"leadrouter_backend/internal/tenants"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/phone"
)

// maxGenerateAttempts bounds the uniqueness check-and-retry loop.
const maxGenerateAttempts = 5

var tokenPattern = regexp.MustCompile(`\(ref:\s*([A-Z2-7]{8,16})\)`)

// TenantReader is the slice of the tenants module the token service needs.
type TenantReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (tenants.Tenant, error)
}

// GeneratedLink is the wire-ready result of GenerateLink.
type GeneratedLink struct {
	Token       string
	DeepLink    string
	QRCodeURL   string
	PreviewText string
}

// Service generates and resolves deep-link tokens.
type Service struct {
	store   *Store
	tenantf TenantReader
	cfg     config.RouterConfig
	log     *logger.Logger
}

// NewService creates the token service.
func NewService(store *Store, tenantReader TenantReader, cfg config.RouterConfig, log *logger.Logger) *Service {
	return &Service{store: store, tenantf: tenantReader, cfg: cfg, log: log}
}

// GenerateLink validates the routing tuple and mints a unique token for it.
func (s *Service) GenerateLink(ctx context.Context, tenantID uuid.UUID, vertical tenants.Vertical, gatewayNumber, customMessage string) (GeneratedLink, error) {
	tenant, err := s.tenantf.GetByID(ctx, tenantID)
	if err != nil || !tenant.Active {
		return GeneratedLink{}, apperr.Validation("tenant does not exist or is inactive")
	}

	if !vertical.IsValid() {
		vertical = tenant.DefaultVertical
	}

	if !phone.IsValid(gatewayNumber) {
		return GeneratedLink{}, apperr.Validation("gateway number is not a valid phone number")
	}
	gateway := phone.Digits(gatewayNumber)

	var token string
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		candidate, err := newToken()
		if err != nil {
			return GeneratedLink{}, fmt.Errorf("generate token: %w", err)
		}

		saved, err := s.store.Save(ctx, DeepLinkToken{
			Token:         candidate,
			TenantID:      tenantID,
			Vertical:      vertical,
			GatewayNumber: gateway,
			SeedMessage:   customMessage,
			CreatedAt:     time.Now(),
		})
		if err != nil {
			return GeneratedLink{}, err
		}
		if saved {
			token = candidate
			break
		}
	}
	if token == "" {
		return GeneratedLink{}, apperr.Internal("token generation exhausted retries")
	}

	preview := SeedText(customMessage, token)
	deepLink := fmt.Sprintf("%s://send?phone=%s&text=%s",
		s.cfg.GetDeepLinkScheme(), gateway, url.QueryEscape(preview))
	qrURL := fmt.Sprintf("%s/api/v1/router/qr/%s", s.cfg.GetAppBaseURL(), token)

	s.log.Info("deep link generated", "tenant_id", tenantID, "vertical", vertical, "token", token)

	return GeneratedLink{
		Token:       token,
		DeepLink:    deepLink,
		QRCodeURL:   qrURL,
		PreviewText: preview,
	}, nil
}

// Resolve returns the routing tuple for a token. Pure lookup.
func (s *Service) Resolve(ctx context.Context, token string) (RoutingTuple, error) {
	return s.store.Resolve(ctx, token)
}

// DeepLinkFor rebuilds the exact deep link a token was minted with,
// used by the QR endpoint so the rendered code matches the generated link.
func (s *Service) DeepLinkFor(ctx context.Context, token string) (string, error) {
	record, err := s.store.Get(ctx, token)
	if err != nil {
		return "", err
	}

	preview := SeedText(record.SeedMessage, record.Token)
	return fmt.Sprintf("%s://send?phone=%s&text=%s",
		s.cfg.GetDeepLinkScheme(), record.GatewayNumber, url.QueryEscape(preview)), nil
}

// SeedText builds the prefilled message carrying the token reference.
func SeedText(customMessage, token string) string {
	if customMessage == "" {
		customMessage = "Hi! I'd like more information."
	}
	return fmt.Sprintf("%s (ref: %s)", customMessage, token)
}

// ExtractToken pulls a token reference out of an inbound message body.
// Returns the empty string when the message carries no reference.
func ExtractToken(text string) string {
	match := tokenPattern.FindStringSubmatch(text)
	if len(match) != 2 {
		return ""
	}
	return match[1]
}

func newToken() (string, error) {
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)[:12], nil
}
