// Package webhook is the inbound edge of the engine: it binds gateway event
// payloads, normalizes them, and hands them to the reconciler.
package webhook

import (
	apphttp "zapleads_backend/internal/http"
	"zapleads_backend/platform/httpkit"
	"zapleads_backend/platform/logger"
	"zapleads_backend/platform/validator"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	limiter *httpkit.IPRateLimiter
}

func NewModule(processor Processor, token string, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(processor, val, token, log),
		limiter: httpkit.NewIPRateLimiter(10, 30, log),
	}
}

func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	group.Use(m.limiter.RateLimit())
	group.POST("/messages", m.handler.HandleEvent)
}
