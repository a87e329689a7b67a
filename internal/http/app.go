package http

import (
	"context"

	"zapleads_backend/internal/config"
	"zapleads_backend/platform/logger"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies. It is populated
// by main.go (the composition root) and passed to the router.
type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Health  HealthChecker
	Modules []Module
}
