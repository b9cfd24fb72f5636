package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
	"github.com/vibast-solutions/ms-go-channel-sync/app/types"
)

func OrderStatusName(status int32) string {
	switch status {
	case entity.OrderStatusCreated:
		return "created"
	case entity.OrderStatusConfirmed:
		return "confirmed"
	case entity.OrderStatusProcessing:
		return "processing"
	case entity.OrderStatusShipped:
		return "shipped"
	case entity.OrderStatusDelivered:
		return "delivered"
	case entity.OrderStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func PaymentStatusName(status int32) string {
	switch status {
	case entity.PaymentStatusPending:
		return "pending"
	case entity.PaymentStatusSucceeded:
		return "succeeded"
	case entity.PaymentStatusFailed:
		return "failed"
	case entity.PaymentStatusRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

func OrderToResponse(order *entity.Order) *types.OrderResponse {
	resp := &types.OrderResponse{
		Id:          order.ID,
		Number:      order.Number,
		CustomerRef: order.CustomerRef,
		Status:      OrderStatusName(order.Status),
		TotalCents:  order.TotalCents,
		Currency:    order.Currency,
		Items:       make([]*types.OrderItemResponse, 0, len(order.Items)),
		CreatedAt:   order.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   order.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if order.ProcessorPaymentRef != nil {
		resp.ProcessorPaymentRef = *order.ProcessorPaymentRef
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, &types.OrderItemResponse{
			Id:             item.ID,
			ProductId:      item.ProductID,
			Sku:            item.SKU,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return resp
}

func PaymentToResponse(payment *entity.Payment) *types.PaymentResponse {
	return &types.PaymentResponse{
		Id:           payment.ID,
		OrderId:      payment.OrderID,
		ProcessorRef: payment.ProcessorRef,
		Status:       PaymentStatusName(payment.Status),
		AmountCents:  payment.AmountCents,
		Currency:     payment.Currency,
		Endpoint:     payment.Endpoint,
	}
}

func LoyaltyTransactionsToResponse(transactions []*entity.LoyaltyTransaction) []*types.LoyaltyTransactionResponse {
	items := make([]*types.LoyaltyTransactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		items = append(items, &types.LoyaltyTransactionResponse{
			Id:        tx.ID,
			Points:    tx.Points,
			Kind:      tx.Kind,
			Reference: tx.Reference,
			CreatedAt: tx.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return items
}

func SyncLogToResponse(log *entity.SyncLog) *types.SyncLogResponse {
	resp := &types.SyncLogResponse{
		Id:               log.ID,
		RunId:            log.RunID,
		Channel:          log.ChannelID,
		Operation:        log.Operation,
		StartedAt:        log.StartedAt.UTC().Format(time.RFC3339),
		RecordsProcessed: log.RecordsProcessed,
		RecordsFailed:    log.RecordsFailed,
		Success:          log.Success,
	}
	if log.FinishedAt != nil {
		resp.FinishedAt = log.FinishedAt.UTC().Format(time.RFC3339)
	}
	if log.Error != nil {
		resp.Error = *log.Error
	}
	return resp
}

func SyncLogsToResponse(logs []*entity.SyncLog) []*types.SyncLogResponse {
	items := make([]*types.SyncLogResponse, 0, len(logs))
	for _, log := range logs {
		items = append(items, SyncLogToResponse(log))
	}
	return items
}
