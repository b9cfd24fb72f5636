package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-channel-sync/app/factory"
	"github.com/vibast-solutions/ms-go-channel-sync/app/mapper"
	"github.com/vibast-solutions/ms-go-channel-sync/app/service"
	"github.com/vibast-solutions/ms-go-channel-sync/app/types"
)

type SyncController struct {
	scheduler *service.Scheduler
	engine    *service.SyncEngine
	logger    logrus.FieldLogger
}

func NewSyncController(scheduler *service.Scheduler, engine *service.SyncEngine) *SyncController {
	return &SyncController{
		scheduler: scheduler,
		engine:    engine,
		logger:    factory.NewModuleLogger("sync-controller"),
	}
}

// Trigger runs one sync operation synchronously and returns its run summary.
// A run already in flight for the same channel and operation is rejected
// with 409, never queued.
func (c *SyncController) Trigger(ctx echo.Context) error {
	req, err := types.NewTriggerSyncRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	syncLog, err := c.scheduler.Trigger(ctx.Request().Context(), req.Channel, req.Operation)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownChannel), errors.Is(err, service.ErrUnknownOperation):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrRunInProgress):
			return c.writeError(ctx, http.StatusConflict, "a run for this channel and operation is already in progress")
		default:
			c.logger.WithError(err).WithFields(logrus.Fields{
				"channel":   req.Channel,
				"operation": req.Operation,
			}).Error("Manual sync trigger failed")
			if syncLog != nil {
				return ctx.JSON(http.StatusInternalServerError, &types.SyncLogEnvelopeResponse{Log: mapper.SyncLogToResponse(syncLog)})
			}
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.SyncLogEnvelopeResponse{Log: mapper.SyncLogToResponse(syncLog)})
}

func (c *SyncController) ListLogs(ctx echo.Context) error {
	req, err := types.NewListSyncLogsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	logs, err := c.engine.Logs(ctx.Request().Context(), req.Channel, req.Operation, req.Limit)
	if err != nil {
		c.logger.WithError(err).Error("List sync logs failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListSyncLogsResponse{Logs: mapper.SyncLogsToResponse(logs)})
}

func (c *SyncController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
