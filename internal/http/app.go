// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"

	"leadrouter_backend/internal/events"
)

// AppConfig combines the config interfaces needed by the HTTP router.
type AppConfig interface {
	config.HTTPConfig
	config.AdminConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration (HTTP and admin-key settings only).
	Config AppConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (e.g., DB ping).
	Health HealthChecker
	// EventBus is the domain event bus for cross-module communication.
	EventBus events.Bus
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
