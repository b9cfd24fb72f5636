package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-channel-sync/app/channel"
	"github.com/vibast-solutions/ms-go-channel-sync/app/factory"
	"github.com/vibast-solutions/ms-go-channel-sync/app/mapper"
	"github.com/vibast-solutions/ms-go-channel-sync/app/service"
	"github.com/vibast-solutions/ms-go-channel-sync/app/types"
)

type OrderController struct {
	orders     *service.OrderService
	reconciler *service.Reconciler
	engine     *service.SyncEngine
	logger     logrus.FieldLogger
}

func NewOrderController(orders *service.OrderService, reconciler *service.Reconciler, engine *service.SyncEngine) *OrderController {
	return &OrderController{
		orders:     orders,
		reconciler: reconciler,
		engine:     engine,
		logger:     factory.NewModuleLogger("order-controller"),
	}
}

func (c *OrderController) GetOrder(ctx echo.Context) error {
	req, err := types.NewGetOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, payments, err := c.orders.GetOrder(ctx.Request().Context(), req.Id)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		}
		c.logger.WithError(err).Error("Get order failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	resp := &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(order)}
	for _, payment := range payments {
		resp.Payments = append(resp.Payments, mapper.PaymentToResponse(payment))
	}

	return ctx.JSON(http.StatusOK, resp)
}

// RefundPayment moves a succeeded payment to refunded and reverses its
// loyalty accrual.
func (c *OrderController) RefundPayment(ctx echo.Context) error {
	req, err := types.NewRefundPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	payment, err := c.reconciler.RefundPayment(ctx.Request().Context(), req.ProcessorRef, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		case errors.Is(err, service.ErrInvalidTransition):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			c.logger.WithError(err).WithField("processor_ref", req.ProcessorRef).Error("Refund payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(payment)})
}

// FulfillOrder forwards tracking to the channel the order came from and
// advances the canonical order to shipped.
func (c *OrderController) FulfillOrder(ctx echo.Context) error {
	req, err := types.NewFulfillOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	err = c.engine.FulfillOrder(ctx.Request().Context(), req.Channel, req.OrderId, channel.TrackingInfo{
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		return c.writeChannelOpError(ctx, err, "Fulfill order failed")
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Order fulfillment forwarded"})
}

func (c *OrderController) RefundOrderLine(ctx echo.Context) error {
	req, err := types.NewRefundOrderLineRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	err = c.engine.RefundOrderLine(ctx.Request().Context(), req.Channel, req.OrderId, req.LineRef, req.AmountCents, req.Reason)
	if err != nil {
		return c.writeChannelOpError(ctx, err, "Refund order line failed")
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Refund forwarded to channel"})
}

func (c *OrderController) GetLoyaltyBalance(ctx echo.Context) error {
	req, err := types.NewGetLoyaltyBalanceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	points, history, err := c.orders.LoyaltyBalance(ctx.Request().Context(), req.CustomerRef, 50)
	if err != nil {
		c.logger.WithError(err).Error("Get loyalty balance failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.LoyaltyBalanceResponse{
		CustomerRef: req.CustomerRef,
		Points:      points,
		History:     mapper.LoyaltyTransactionsToResponse(history),
	})
}

func (c *OrderController) writeChannelOpError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrUnknownChannel):
		return c.writeError(ctx, http.StatusBadRequest, "unknown channel")
	case errors.Is(err, service.ErrOrderNotFound):
		return c.writeError(ctx, http.StatusNotFound, "order not found")
	case errors.Is(err, service.ErrMappingNotFound):
		return c.writeError(ctx, http.StatusNotFound, "order is not mapped to this channel")
	case channel.IsPermanent(err):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	default:
		c.logger.WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusBadGateway, "channel request failed")
	}
}

func (c *OrderController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
