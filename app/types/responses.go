package types

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type AckResponse struct {
	EventId string `json:"event_id,omitempty"`
	Outcome string `json:"outcome"`
}

type OrderItemResponse struct {
	Id             uint64 `json:"id"`
	ProductId      uint64 `json:"product_id"`
	Sku            string `json:"sku"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type OrderResponse struct {
	Id                  uint64               `json:"id"`
	Number              string               `json:"number"`
	CustomerRef         string               `json:"customer_ref"`
	Status              string               `json:"status"`
	TotalCents          int64                `json:"total_cents"`
	Currency            string               `json:"currency"`
	ProcessorPaymentRef string               `json:"processor_payment_ref,omitempty"`
	Items               []*OrderItemResponse `json:"items"`
	CreatedAt           string               `json:"created_at"`
	UpdatedAt           string               `json:"updated_at"`
}

type OrderEnvelopeResponse struct {
	Order    *OrderResponse     `json:"order"`
	Payments []*PaymentResponse `json:"payments,omitempty"`
}

type LoyaltyTransactionResponse struct {
	Id        uint64 `json:"id"`
	Points    int64  `json:"points"`
	Kind      string `json:"kind"`
	Reference string `json:"reference"`
	CreatedAt string `json:"created_at"`
}

type LoyaltyBalanceResponse struct {
	CustomerRef string                        `json:"customer_ref"`
	Points      int64                         `json:"points"`
	History     []*LoyaltyTransactionResponse `json:"history"`
}

type PaymentResponse struct {
	Id           uint64 `json:"id"`
	OrderId      uint64 `json:"order_id"`
	ProcessorRef string `json:"processor_ref"`
	Status       string `json:"status"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	Endpoint     string `json:"endpoint"`
}

type PaymentEnvelopeResponse struct {
	Payment *PaymentResponse `json:"payment"`
}

type SyncLogResponse struct {
	Id               uint64 `json:"id"`
	RunId            string `json:"run_id"`
	Channel          string `json:"channel"`
	Operation        string `json:"operation"`
	StartedAt        string `json:"started_at"`
	FinishedAt       string `json:"finished_at,omitempty"`
	RecordsProcessed int32  `json:"records_processed"`
	RecordsFailed    int32  `json:"records_failed"`
	Success          bool   `json:"success"`
	Error            string `json:"error,omitempty"`
}

type SyncLogEnvelopeResponse struct {
	Log *SyncLogResponse `json:"log"`
}

type ListSyncLogsResponse struct {
	Logs []*SyncLogResponse `json:"logs"`
}
