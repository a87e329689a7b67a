package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zapleads_backend/internal/reconciler"
	"zapleads_backend/platform/apperr"
	"zapleads_backend/platform/httpkit"
	"zapleads_backend/platform/logger"
	"zapleads_backend/platform/phone"
	"zapleads_backend/platform/validator"
)

// Processor reconciles one normalized inbound event.
type Processor interface {
	Process(ctx context.Context, event reconciler.InboundEvent) (reconciler.Result, error)
}

type Handler struct {
	processor Processor
	val       *validator.Validator
	token     string
	log       *logger.Logger
}

func NewHandler(processor Processor, val *validator.Validator, token string, log *logger.Logger) *Handler {
	return &Handler{processor: processor, val: val, token: token, log: log}
}

// HandleEvent ingests one gateway webhook call.
// POST /api/v1/webhook/messages
//
// Malformed payloads and events without a sender address are rejected with
// 4xx before any side effect. Processing failures after persistence return
// 200 so the provider does not retry a half-applied event forever.
func (h *Handler) HandleEvent(c *gin.Context) {
	if h.token != "" && c.GetHeader("apikey") != h.token {
		httpkit.Error(c, http.StatusUnauthorized, "invalid webhook token", nil)
		return
	}

	var payload eventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid event payload", err.Error())
		return
	}
	if err := h.val.Struct(payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid event payload", err.Error())
		return
	}

	canonical := phone.Canonical(payload.Data.Key.RemoteJid)
	if canonical == "" {
		httpkit.Error(c, http.StatusBadRequest, "event has no sender address", nil)
		return
	}

	event := reconciler.InboundEvent{
		InstanceTag:       payload.Instance,
		Phone:             canonical,
		SenderName:        payload.Data.PushName,
		FromMe:            payload.Data.Key.FromMe,
		ProviderMessageID: payload.Data.Key.ID,
		Kind:              payload.Data.Message.kind(),
		Text:              payload.Data.Message.text(),
		Timestamp:         time.Unix(payload.Data.MessageTimestamp, 0),
	}

	result, err := h.processor.Process(c.Request.Context(), event)
	if err != nil {
		h.log.Error("event reconciliation failed", "phone", canonical, "error", err)
		var domainErr *apperr.Error
		if errors.As(err, &domainErr) {
			httpkit.HandleError(c, domainErr)
			return
		}
		httpkit.Error(c, http.StatusInternalServerError, "event processing failed", nil)
		return
	}

	c.JSON(http.StatusOK, result)
}
