package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
)

// Datastore is the persistence surface the services program against. It is
// implemented by Store over *sql.DB and, inside WithinTx, over *sql.Tx, so
// callers never hold a transaction open themselves.
type Datastore interface {
	WithinTx(ctx context.Context, fn func(Datastore) error) error

	CreateOrder(ctx context.Context, order *entity.Order) error
	FindOrderByID(ctx context.Context, id uint64) (*entity.Order, error)
	FindOrderByNumber(ctx context.Context, number string) (*entity.Order, error)
	UpdateOrderStatus(ctx context.Context, id uint64, fromStatus, toStatus int32, processorRef *string) error

	CreatePayment(ctx context.Context, payment *entity.Payment) error
	UpdatePayment(ctx context.Context, payment *entity.Payment) error
	FindPaymentByProcessorRef(ctx context.Context, processorRef string) (*entity.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uint64) ([]*entity.Payment, error)
	CreateDispute(ctx context.Context, dispute *entity.Dispute) error

	AppendLoyaltyTransaction(ctx context.Context, tx *entity.LoyaltyTransaction) error
	LoyaltyBalance(ctx context.Context, customerRef string) (int64, error)
	ListLoyaltyTransactions(ctx context.Context, customerRef string, limit int32) ([]*entity.LoyaltyTransaction, error)

	ListProductsNeedingSync(ctx context.Context, channelID string, limit int32) ([]*entity.Product, error)
	FindProductByID(ctx context.Context, id uint64) (*entity.Product, error)
	FindProductBySKU(ctx context.Context, sku string) (*entity.Product, error)
	MarkProductClean(ctx context.Context, id uint64) error

	UpsertProductMapping(ctx context.Context, mapping *entity.ProductMapping) error
	FindProductMappingByProduct(ctx context.Context, productID uint64, channelID string) (*entity.ProductMapping, error)
	FindProductMappingByExternalID(ctx context.Context, channelID, externalID string) (*entity.ProductMapping, error)
	ListRetiredProductMappings(ctx context.Context, channelID string, limit int32) ([]*entity.ProductMapping, error)
	SetProductMappingStatus(ctx context.Context, productID uint64, channelID string, status int32) error
	CreateOrderMapping(ctx context.Context, mapping *entity.OrderMapping) error
	FindOrderMappingByExternalID(ctx context.Context, channelID, externalID string) (*entity.OrderMapping, error)
	FindOrderMappingByOrder(ctx context.Context, orderID uint64, channelID string) (*entity.OrderMapping, error)

	CreateSyncLog(ctx context.Context, log *entity.SyncLog) error
	FinishSyncLog(ctx context.Context, log *entity.SyncLog) error
	LastSuccessfulSyncLog(ctx context.Context, channelID, operation string) (*entity.SyncLog, error)
	ListSyncLogs(ctx context.Context, channelID, operation string, limit int32) ([]*entity.SyncLog, error)

	InsertWebhookEvent(ctx context.Context, record *entity.WebhookEventRecord) error
	WebhookEventExists(ctx context.Context, endpoint, eventID string) (bool, error)
}

type Store struct {
	// sqlDB is nil when the store is already scoped to a transaction.
	sqlDB *sql.DB

	orders   *OrderRepository
	payments *PaymentRepository
	loyalty  *LoyaltyRepository
	products *ProductRepository
	mappings *MappingRepository
	syncLogs *SyncLogRepository
	events   *WebhookEventRepository
}

func NewStore(db *sql.DB) *Store {
	s := storeOver(db)
	s.sqlDB = db
	return s
}

func storeOver(db DBTX) *Store {
	return &Store{
		orders:   NewOrderRepository(db),
		payments: NewPaymentRepository(db),
		loyalty:  NewLoyaltyRepository(db),
		products: NewProductRepository(db),
		mappings: NewMappingRepository(db),
		syncLogs: NewSyncLogRepository(db),
		events:   NewWebhookEventRepository(db),
	}
}

// WithinTx runs fn against a transaction-scoped Datastore and commits when fn
// returns nil. Inside an existing transaction it reuses that transaction;
// savepoints are not supported.
func (s *Store) WithinTx(ctx context.Context, fn func(Datastore) error) error {
	if s.sqlDB == nil {
		return fn(s)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(storeOver(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

func (s *Store) CreateOrder(ctx context.Context, order *entity.Order) error {
	return s.orders.Create(ctx, order)
}

func (s *Store) FindOrderByID(ctx context.Context, id uint64) (*entity.Order, error) {
	return s.orders.FindByID(ctx, id)
}

func (s *Store) FindOrderByNumber(ctx context.Context, number string) (*entity.Order, error) {
	return s.orders.FindByNumber(ctx, number)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id uint64, fromStatus, toStatus int32, processorRef *string) error {
	return s.orders.UpdateStatus(ctx, id, fromStatus, toStatus, processorRef)
}

func (s *Store) CreatePayment(ctx context.Context, payment *entity.Payment) error {
	return s.payments.Create(ctx, payment)
}

func (s *Store) UpdatePayment(ctx context.Context, payment *entity.Payment) error {
	return s.payments.Update(ctx, payment)
}

func (s *Store) FindPaymentByProcessorRef(ctx context.Context, processorRef string) (*entity.Payment, error) {
	return s.payments.FindByProcessorRef(ctx, processorRef)
}

func (s *Store) ListPaymentsByOrder(ctx context.Context, orderID uint64) ([]*entity.Payment, error) {
	return s.payments.ListByOrder(ctx, orderID)
}

func (s *Store) CreateDispute(ctx context.Context, dispute *entity.Dispute) error {
	return s.payments.CreateDispute(ctx, dispute)
}

func (s *Store) AppendLoyaltyTransaction(ctx context.Context, tx *entity.LoyaltyTransaction) error {
	return s.loyalty.Append(ctx, tx)
}

func (s *Store) LoyaltyBalance(ctx context.Context, customerRef string) (int64, error) {
	return s.loyalty.BalanceForCustomer(ctx, customerRef)
}

func (s *Store) ListLoyaltyTransactions(ctx context.Context, customerRef string, limit int32) ([]*entity.LoyaltyTransaction, error) {
	return s.loyalty.ListByCustomer(ctx, customerRef, limit)
}

func (s *Store) ListProductsNeedingSync(ctx context.Context, channelID string, limit int32) ([]*entity.Product, error) {
	return s.products.ListNeedingSync(ctx, channelID, limit)
}

func (s *Store) FindProductByID(ctx context.Context, id uint64) (*entity.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *Store) FindProductBySKU(ctx context.Context, sku string) (*entity.Product, error) {
	return s.products.FindBySKU(ctx, sku)
}

func (s *Store) MarkProductClean(ctx context.Context, id uint64) error {
	return s.products.MarkClean(ctx, id)
}

func (s *Store) UpsertProductMapping(ctx context.Context, mapping *entity.ProductMapping) error {
	return s.mappings.UpsertProductMapping(ctx, mapping)
}

func (s *Store) FindProductMappingByProduct(ctx context.Context, productID uint64, channelID string) (*entity.ProductMapping, error) {
	return s.mappings.FindProductMappingByProduct(ctx, productID, channelID)
}

func (s *Store) FindProductMappingByExternalID(ctx context.Context, channelID, externalID string) (*entity.ProductMapping, error) {
	return s.mappings.FindProductMappingByExternalID(ctx, channelID, externalID)
}

func (s *Store) ListRetiredProductMappings(ctx context.Context, channelID string, limit int32) ([]*entity.ProductMapping, error) {
	return s.mappings.ListRetiredProductMappings(ctx, channelID, limit)
}

func (s *Store) SetProductMappingStatus(ctx context.Context, productID uint64, channelID string, status int32) error {
	return s.mappings.SetProductMappingStatus(ctx, productID, channelID, status)
}

func (s *Store) CreateOrderMapping(ctx context.Context, mapping *entity.OrderMapping) error {
	return s.mappings.CreateOrderMapping(ctx, mapping)
}

func (s *Store) FindOrderMappingByExternalID(ctx context.Context, channelID, externalID string) (*entity.OrderMapping, error) {
	return s.mappings.FindOrderMappingByExternalID(ctx, channelID, externalID)
}

func (s *Store) FindOrderMappingByOrder(ctx context.Context, orderID uint64, channelID string) (*entity.OrderMapping, error) {
	return s.mappings.FindOrderMappingByOrder(ctx, orderID, channelID)
}

func (s *Store) CreateSyncLog(ctx context.Context, log *entity.SyncLog) error {
	return s.syncLogs.Create(ctx, log)
}

func (s *Store) FinishSyncLog(ctx context.Context, log *entity.SyncLog) error {
	return s.syncLogs.Finish(ctx, log)
}

func (s *Store) LastSuccessfulSyncLog(ctx context.Context, channelID, operation string) (*entity.SyncLog, error) {
	return s.syncLogs.LastSuccessful(ctx, channelID, operation)
}

func (s *Store) ListSyncLogs(ctx context.Context, channelID, operation string, limit int32) ([]*entity.SyncLog, error) {
	return s.syncLogs.List(ctx, channelID, operation, limit)
}

func (s *Store) InsertWebhookEvent(ctx context.Context, record *entity.WebhookEventRecord) error {
	return s.events.Insert(ctx, record)
}

func (s *Store) WebhookEventExists(ctx context.Context, endpoint, eventID string) (bool, error) {
	return s.events.Exists(ctx, endpoint, eventID)
}
