package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-channel-sync/app/factory"
	"github.com/vibast-solutions/ms-go-channel-sync/app/service"
	"github.com/vibast-solutions/ms-go-channel-sync/app/types"
)

type WebhookController struct {
	gateway *service.Gateway
	logger  logrus.FieldLogger
}

func NewWebhookController(gateway *service.Gateway) *WebhookController {
	return &WebhookController{
		gateway: gateway,
		logger:  factory.NewModuleLogger("webhook-controller"),
	}
}

// HandlePaymentEvent ingests one processor webhook. Whatever the gateway
// decided about the event (processed, duplicate, ignored, filtered) is
// acknowledged with 200 so the processor stops redelivering it.
func (c *WebhookController) HandlePaymentEvent(ctx echo.Context) error {
	req, err := types.NewWebhookRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	ack, err := c.gateway.Ingest(ctx.Request().Context(), req.Payload, req.Signature, req.Endpoint)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownEndpoint):
			return c.writeError(ctx, http.StatusBadRequest, "unknown webhook endpoint")
		case errors.Is(err, service.ErrSignatureInvalid):
			return c.writeError(ctx, http.StatusBadRequest, "signature verification failed")
		default:
			c.logger.WithError(err).WithField("endpoint", req.Endpoint).Error("Webhook ingestion failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.AckResponse{EventId: ack.EventID, Outcome: ack.Outcome})
}

func (c *WebhookController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *WebhookController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
