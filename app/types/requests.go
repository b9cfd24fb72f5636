package types

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type WebhookRequest struct {
	Endpoint  string
	Signature string
	Payload   []byte
}

func NewWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	return &WebhookRequest{
		Endpoint:  strings.TrimSpace(strings.ToLower(ctx.Param("endpoint"))),
		Signature: strings.TrimSpace(ctx.Request().Header.Get("Stripe-Signature")),
		Payload:   rawBody,
	}, nil
}

func (r *WebhookRequest) Validate() error {
	if r.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if r.Signature == "" {
		return errors.New("signature header is required")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

type TriggerSyncRequest struct {
	Channel   string `json:"channel"`
	Operation string `json:"operation"`
}

func NewTriggerSyncRequestFromContext(ctx echo.Context) (*TriggerSyncRequest, error) {
	var body TriggerSyncRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Channel = strings.TrimSpace(strings.ToLower(body.Channel))
	body.Operation = strings.TrimSpace(strings.ToLower(body.Operation))

	return &body, nil
}

func (r *TriggerSyncRequest) Validate() error {
	if r.Channel == "" {
		return errors.New("channel is required")
	}
	if r.Operation != "catalog_push" && r.Operation != "order_pull" {
		return errors.New("operation must be catalog_push or order_pull")
	}
	return nil
}

type RefundPaymentRequest struct {
	ProcessorRef string `json:"-"`
	Reason       string `json:"reason"`
}

func NewRefundPaymentRequestFromContext(ctx echo.Context) (*RefundPaymentRequest, error) {
	var body RefundPaymentRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	body.ProcessorRef = strings.TrimSpace(ctx.Param("processorRef"))
	body.Reason = strings.TrimSpace(body.Reason)

	return &body, nil
}

func (r *RefundPaymentRequest) Validate() error {
	if r.ProcessorRef == "" {
		return errors.New("processor payment reference is required")
	}
	return nil
}

type GetOrderRequest struct {
	Id uint64
}

func NewGetOrderRequestFromContext(ctx echo.Context) (*GetOrderRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetOrderRequest{Id: id}, nil
}

func (r *GetOrderRequest) Validate() error {
	if r.Id == 0 {
		return errors.New("invalid order id")
	}
	return nil
}

type GetLoyaltyBalanceRequest struct {
	CustomerRef string
}

func NewGetLoyaltyBalanceRequestFromContext(ctx echo.Context) (*GetLoyaltyBalanceRequest, error) {
	return &GetLoyaltyBalanceRequest{CustomerRef: strings.TrimSpace(ctx.Param("customerRef"))}, nil
}

func (r *GetLoyaltyBalanceRequest) Validate() error {
	if r.CustomerRef == "" {
		return errors.New("customer reference is required")
	}
	return nil
}

type ListSyncLogsRequest struct {
	Channel   string
	Operation string
	Limit     int32
}

func NewListSyncLogsRequestFromContext(ctx echo.Context) (*ListSyncLogsRequest, error) {
	req := &ListSyncLogsRequest{
		Channel:   strings.TrimSpace(strings.ToLower(ctx.QueryParam("channel"))),
		Operation: strings.TrimSpace(strings.ToLower(ctx.QueryParam("operation"))),
		Limit:     50,
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	return req, nil
}

func (r *ListSyncLogsRequest) Validate() error {
	if r.Limit <= 0 || r.Limit > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if r.Operation != "" && r.Operation != "catalog_push" && r.Operation != "order_pull" {
		return errors.New("operation must be catalog_push or order_pull")
	}
	return nil
}

type FulfillOrderRequest struct {
	OrderId        uint64 `json:"-"`
	Channel        string `json:"channel"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

func NewFulfillOrderRequestFromContext(ctx echo.Context) (*FulfillOrderRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body FulfillOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.OrderId = id
	body.Channel = strings.TrimSpace(strings.ToLower(body.Channel))
	body.Carrier = strings.TrimSpace(body.Carrier)
	body.TrackingNumber = strings.TrimSpace(body.TrackingNumber)

	return &body, nil
}

func (r *FulfillOrderRequest) Validate() error {
	if r.OrderId == 0 {
		return errors.New("invalid order id")
	}
	if r.Channel == "" {
		return errors.New("channel is required")
	}
	if r.TrackingNumber == "" {
		return errors.New("tracking_number is required")
	}
	return nil
}

type RefundOrderLineRequest struct {
	OrderId     uint64 `json:"-"`
	Channel     string `json:"channel"`
	LineRef     string `json:"line_ref"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

func NewRefundOrderLineRequestFromContext(ctx echo.Context) (*RefundOrderLineRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body RefundOrderLineRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.OrderId = id
	body.Channel = strings.TrimSpace(strings.ToLower(body.Channel))
	body.LineRef = strings.TrimSpace(body.LineRef)
	body.Reason = strings.TrimSpace(body.Reason)

	return &body, nil
}

func (r *RefundOrderLineRequest) Validate() error {
	if r.OrderId == 0 {
		return errors.New("invalid order id")
	}
	if r.Channel == "" {
		return errors.New("channel is required")
	}
	if r.AmountCents <= 0 {
		return errors.New("amount_cents must be > 0")
	}
	return nil
}
