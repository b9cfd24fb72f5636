package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
	"github.com/vibast-solutions/ms-go-channel-sync/app/repository"
)

// memStore is an in-memory Datastore with the same uniqueness and guarded
// update semantics as the MySQL-backed Store.
type memStore struct {
	mu sync.Mutex

	orders          map[uint64]*entity.Order
	payments        map[uint64]*entity.Payment
	disputes        map[string]*entity.Dispute
	loyalty         []*entity.LoyaltyTransaction
	products        map[uint64]*entity.Product
	productMappings map[string]*entity.ProductMapping
	orderMappings   map[string]*entity.OrderMapping
	syncLogs        map[uint64]*entity.SyncLog
	webhookEvents   map[string]*entity.WebhookEventRecord

	nextID uint64
}

func newMemStore() *memStore {
	return &memStore{
		orders:          map[uint64]*entity.Order{},
		payments:        map[uint64]*entity.Payment{},
		disputes:        map[string]*entity.Dispute{},
		products:        map[uint64]*entity.Product{},
		productMappings: map[string]*entity.ProductMapping{},
		orderMappings:   map[string]*entity.OrderMapping{},
		syncLogs:        map[uint64]*entity.SyncLog{},
		webhookEvents:   map[string]*entity.WebhookEventRecord{},
		nextID:          1,
	}
}

func (s *memStore) allocID() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *memStore) WithinTx(_ context.Context, fn func(repository.Datastore) error) error {
	return fn(s)
}

func (s *memStore) CreateOrder(_ context.Context, order *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.orders {
		if existing.Number == order.Number {
			return repository.ErrOrderAlreadyExists
		}
	}
	order.ID = s.allocID()
	for _, item := range order.Items {
		item.ID = s.allocID()
		item.OrderID = order.ID
	}
	copied := *order
	s.orders[order.ID] = &copied
	return nil
}

func (s *memStore) FindOrderByID(_ context.Context, id uint64) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (s *memStore) FindOrderByNumber(_ context.Context, number string) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.orders {
		if order.Number == number {
			copied := *order
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) UpdateOrderStatus(_ context.Context, id uint64, fromStatus, toStatus int32, processorRef *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok || order.Status != fromStatus {
		return repository.ErrOrderNotFound
	}
	order.Status = toStatus
	if processorRef != nil {
		ref := *processorRef
		order.ProcessorPaymentRef = &ref
	}
	order.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) CreatePayment(_ context.Context, payment *entity.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.payments {
		if existing.ProcessorRef == payment.ProcessorRef {
			return repository.ErrPaymentAlreadyExists
		}
	}
	payment.ID = s.allocID()
	copied := *payment
	s.payments[payment.ID] = &copied
	return nil
}

func (s *memStore) UpdatePayment(_ context.Context, payment *entity.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[payment.ID]; !ok {
		return repository.ErrPaymentNotFound
	}
	copied := *payment
	s.payments[payment.ID] = &copied
	return nil
}

func (s *memStore) FindPaymentByProcessorRef(_ context.Context, processorRef string) (*entity.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, payment := range s.payments {
		if payment.ProcessorRef == processorRef {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListPaymentsByOrder(_ context.Context, orderID uint64) ([]*entity.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*entity.Payment, 0)
	for _, payment := range s.payments {
		if payment.OrderID == orderID {
			copied := *payment
			items = append(items, &copied)
		}
	}
	return items, nil
}

func (s *memStore) CreateDispute(_ context.Context, dispute *entity.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.disputes[dispute.ProcessorDisputeRef]; ok {
		return repository.ErrDisputeAlreadyExists
	}
	dispute.ID = s.allocID()
	copied := *dispute
	s.disputes[dispute.ProcessorDisputeRef] = &copied
	return nil
}

func (s *memStore) AppendLoyaltyTransaction(_ context.Context, tx *entity.LoyaltyTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.ID = s.allocID()
	copied := *tx
	s.loyalty = append(s.loyalty, &copied)
	return nil
}

func (s *memStore) LoyaltyBalance(_ context.Context, customerRef string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, tx := range s.loyalty {
		if tx.CustomerRef == customerRef {
			total += tx.Points
		}
	}
	return total, nil
}

func (s *memStore) ListLoyaltyTransactions(_ context.Context, customerRef string, limit int32) ([]*entity.LoyaltyTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*entity.LoyaltyTransaction, 0)
	for i := len(s.loyalty) - 1; i >= 0; i-- {
		tx := s.loyalty[i]
		if tx.CustomerRef != customerRef {
			continue
		}
		copied := *tx
		items = append(items, &copied)
		if limit > 0 && int32(len(items)) >= limit {
			break
		}
	}
	return items, nil
}

func (s *memStore) ListProductsNeedingSync(_ context.Context, channelID string, limit int32) ([]*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*entity.Product, 0)
	for _, product := range s.products {
		if !product.Active {
			continue
		}
		mapping := s.productMappings[mappingKey(product.ID, channelID)]
		hasActive := mapping != nil && mapping.Status == entity.MappingStatusActive
		if !product.Dirty && hasActive {
			continue
		}
		copied := *product
		items = append(items, &copied)
		if limit > 0 && int32(len(items)) >= limit {
			break
		}
	}
	return items, nil
}

func (s *memStore) FindProductByID(_ context.Context, id uint64) (*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	copied := *product
	return &copied, nil
}

func (s *memStore) FindProductBySKU(_ context.Context, sku string) (*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, product := range s.products {
		if product.SKU == sku {
			copied := *product
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) MarkProductClean(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	product.Dirty = false
	return nil
}

func mappingKey(productID uint64, channelID string) string {
	return fmt.Sprintf("%s/%d", channelID, productID)
}

func (s *memStore) UpsertProductMapping(_ context.Context, mapping *entity.ProductMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mapping.ExternalID != "" {
		for _, existing := range s.productMappings {
			if existing.ChannelID == mapping.ChannelID && existing.ExternalID == mapping.ExternalID && existing.ProductID != mapping.ProductID {
				return repository.ErrMappingAlreadyExists
			}
		}
	}

	key := mappingKey(mapping.ProductID, mapping.ChannelID)
	if existing, ok := s.productMappings[key]; ok {
		mapping.ID = existing.ID
	} else {
		mapping.ID = s.allocID()
	}
	copied := *mapping
	s.productMappings[key] = &copied
	return nil
}

func (s *memStore) FindProductMappingByProduct(_ context.Context, productID uint64, channelID string) (*entity.ProductMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping, ok := s.productMappings[mappingKey(productID, channelID)]
	if !ok {
		return nil, nil
	}
	copied := *mapping
	return &copied, nil
}

func (s *memStore) FindProductMappingByExternalID(_ context.Context, channelID, externalID string) (*entity.ProductMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mapping := range s.productMappings {
		if mapping.ChannelID == channelID && mapping.ExternalID == externalID {
			copied := *mapping
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListRetiredProductMappings(_ context.Context, channelID string, limit int32) ([]*entity.ProductMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*entity.ProductMapping, 0)
	for _, mapping := range s.productMappings {
		if mapping.ChannelID != channelID || mapping.Status != entity.MappingStatusActive {
			continue
		}
		product, ok := s.products[mapping.ProductID]
		if !ok || product.Active {
			continue
		}
		copied := *mapping
		items = append(items, &copied)
		if limit > 0 && int32(len(items)) >= limit {
			break
		}
	}
	return items, nil
}

func (s *memStore) SetProductMappingStatus(_ context.Context, productID uint64, channelID string, status int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping, ok := s.productMappings[mappingKey(productID, channelID)]
	if !ok {
		return repository.ErrMappingNotFound
	}
	mapping.Status = status
	return nil
}

func (s *memStore) CreateOrderMapping(_ context.Context, mapping *entity.OrderMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := mapping.ChannelID + "/" + mapping.ExternalID
	if _, ok := s.orderMappings[key]; ok {
		return repository.ErrMappingAlreadyExists
	}
	mapping.ID = s.allocID()
	copied := *mapping
	s.orderMappings[key] = &copied
	return nil
}

func (s *memStore) FindOrderMappingByExternalID(_ context.Context, channelID, externalID string) (*entity.OrderMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping, ok := s.orderMappings[channelID+"/"+externalID]
	if !ok {
		return nil, nil
	}
	copied := *mapping
	return &copied, nil
}

func (s *memStore) FindOrderMappingByOrder(_ context.Context, orderID uint64, channelID string) (*entity.OrderMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mapping := range s.orderMappings {
		if mapping.OrderID == orderID && mapping.ChannelID == channelID {
			copied := *mapping
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateSyncLog(_ context.Context, log *entity.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.ID = s.allocID()
	copied := *log
	s.syncLogs[log.ID] = &copied
	return nil
}

func (s *memStore) FinishSyncLog(_ context.Context, log *entity.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.syncLogs[log.ID]; !ok {
		return repository.ErrSyncLogNotFound
	}
	copied := *log
	s.syncLogs[log.ID] = &copied
	return nil
}

func (s *memStore) LastSuccessfulSyncLog(_ context.Context, channelID, operation string) (*entity.SyncLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *entity.SyncLog
	for _, log := range s.syncLogs {
		if log.ChannelID != channelID || log.Operation != operation || !log.Success || log.FinishedAt == nil {
			continue
		}
		if latest == nil || log.FinishedAt.After(*latest.FinishedAt) {
			latest = log
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *memStore) ListSyncLogs(_ context.Context, channelID, operation string, limit int32) ([]*entity.SyncLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*entity.SyncLog, 0)
	for _, log := range s.syncLogs {
		if channelID != "" && log.ChannelID != channelID {
			continue
		}
		if operation != "" && log.Operation != operation {
			continue
		}
		copied := *log
		items = append(items, &copied)
		if limit > 0 && int32(len(items)) >= limit {
			break
		}
	}
	return items, nil
}

func (s *memStore) InsertWebhookEvent(_ context.Context, record *entity.WebhookEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := record.Endpoint + "/" + record.EventID
	if _, ok := s.webhookEvents[key]; ok {
		return repository.ErrEventAlreadyProcessed
	}
	record.ID = s.allocID()
	copied := *record
	s.webhookEvents[key] = &copied
	return nil
}

func (s *memStore) WebhookEventExists(_ context.Context, endpoint, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.webhookEvents[endpoint+"/"+eventID]
	return ok, nil
}
