package service

import (
	"context"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
	"github.com/vibast-solutions/ms-go-channel-sync/app/repository"
)

// OrderService is the read side for canonical orders and loyalty balances.
type OrderService struct {
	store repository.Datastore
}

func NewOrderService(store repository.Datastore) *OrderService {
	return &OrderService{store: store}
}

func (s *OrderService) GetOrder(ctx context.Context, id uint64) (*entity.Order, []*entity.Payment, error) {
	order, err := s.store.FindOrderByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, ErrOrderNotFound
	}

	payments, err := s.store.ListPaymentsByOrder(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}

	return order, payments, nil
}

// LoyaltyBalance returns the current point balance with the most recent
// ledger entries behind it.
func (s *OrderService) LoyaltyBalance(ctx context.Context, customerRef string, historyLimit int32) (int64, []*entity.LoyaltyTransaction, error) {
	points, err := s.store.LoyaltyBalance(ctx, customerRef)
	if err != nil {
		return 0, nil, err
	}

	history, err := s.store.ListLoyaltyTransactions(ctx, customerRef, historyLimit)
	if err != nil {
		return 0, nil, err
	}

	return points, history, nil
}
