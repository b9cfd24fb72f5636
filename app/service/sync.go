package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-channel-sync/app/channel"
	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
	"github.com/vibast-solutions/ms-go-channel-sync/app/factory"
	"github.com/vibast-solutions/ms-go-channel-sync/app/mapper"
	"github.com/vibast-solutions/ms-go-channel-sync/app/metrics"
	"github.com/vibast-solutions/ms-go-channel-sync/app/repository"
	"github.com/vibast-solutions/ms-go-channel-sync/config"
)

// SyncEngine pushes the canonical catalog out to marketplace channels and
// pulls external orders back in. Every run is recorded as a SyncLog; a single
// failing record never aborts the run it belongs to.
type SyncEngine struct {
	store    repository.Datastore
	registry *channel.Registry
	notifier Notifier
	channels map[string]config.ChannelConfig
	cfg      config.SyncConfig
	logger   logrus.FieldLogger
}

func NewSyncEngine(
	store repository.Datastore,
	registry *channel.Registry,
	notifier Notifier,
	channels []config.ChannelConfig,
	cfg config.SyncConfig,
) *SyncEngine {
	byID := make(map[string]config.ChannelConfig, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
	}

	return &SyncEngine{
		store:    store,
		registry: registry,
		notifier: notifier,
		channels: byID,
		cfg:      cfg,
		logger:   factory.NewModuleLogger("sync"),
	}
}

type runCounts struct {
	mu        sync.Mutex
	processed int32
	failed    int32
}

func (c *runCounts) ok() {
	c.mu.Lock()
	c.processed++
	c.mu.Unlock()
}

func (c *runCounts) fail() {
	c.mu.Lock()
	c.failed++
	c.mu.Unlock()
}

func (c *runCounts) snapshot() (int32, int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed, c.failed
}

// PushCatalog publishes every product needing sync on the given channel. New
// products get a listing created, already-mapped ones get stock and price
// refreshed. Record failures are counted in the SyncLog and the run carries
// on; only failing to list the work at all fails the run.
func (e *SyncEngine) PushCatalog(ctx context.Context, channelID string) (*entity.SyncLog, error) {
	adapter, err := e.registry.Get(channelID)
	if err != nil {
		return nil, ErrUnknownChannel
	}

	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	syncLog := &entity.SyncLog{
		RunID:     uuid.NewString(),
		ChannelID: channelID,
		Operation: entity.SyncOperationCatalogPush,
		StartedAt: time.Now(),
	}
	if err := e.store.CreateSyncLog(ctx, syncLog); err != nil {
		return nil, err
	}

	products, err := e.store.ListProductsNeedingSync(ctx, channelID, e.cfg.BatchSize)
	if err != nil {
		e.finishRun(syncLog, &runCounts{}, err)
		return syncLog, err
	}

	counts := &runCounts{}
	e.runWorkers(ctx, channelID, len(products), func(jobs chan<- int) {
		for i := range products {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}, func(i int) {
		product := products[i]
		if err := e.pushProduct(ctx, adapter, product); err != nil {
			counts.fail()
			e.logger.WithError(err).WithFields(logrus.Fields{
				"channel": channelID,
				"sku":     product.SKU,
			}).Error("catalog push failed for product")
			return
		}
		counts.ok()
	})

	e.endRetiredListings(ctx, adapter, counts)

	e.finishRun(syncLog, counts, nil)
	return syncLog, nil
}

// PullOrders imports external orders created or modified since the watermark.
// The watermark is the finish time of the last successful pull, clamped to
// the channel's lookback window. Orders already imported are skipped, so
// replaying an overlap window is harmless.
func (e *SyncEngine) PullOrders(ctx context.Context, channelID string) (*entity.SyncLog, error) {
	adapter, err := e.registry.Get(channelID)
	if err != nil {
		return nil, ErrUnknownChannel
	}

	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	syncLog := &entity.SyncLog{
		RunID:     uuid.NewString(),
		ChannelID: channelID,
		Operation: entity.SyncOperationOrderPull,
		StartedAt: time.Now(),
	}
	if err := e.store.CreateSyncLog(ctx, syncLog); err != nil {
		return nil, err
	}

	since := e.watermark(ctx, channelID)

	var orders []*channel.ExternalOrder
	err = e.withRetry(ctx, func(ctx context.Context) error {
		fetched, fetchErr := adapter.FetchOrdersSince(ctx, since)
		if fetchErr != nil {
			return fetchErr
		}
		orders = fetched
		return nil
	})
	if err != nil {
		e.finishRun(syncLog, &runCounts{}, err)
		return syncLog, err
	}

	counts := &runCounts{}
	e.runWorkers(ctx, channelID, len(orders), func(jobs chan<- int) {
		for i := range orders {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}, func(i int) {
		ext := orders[i]
		if err := e.importOrder(ctx, channelID, ext); err != nil {
			counts.fail()
			e.logger.WithError(err).WithFields(logrus.Fields{
				"channel":     channelID,
				"external_id": ext.ExternalID,
			}).Error("order import failed")
			return
		}
		counts.ok()
	})

	e.finishRun(syncLog, counts, nil)
	return syncLog, nil
}

// FulfillOrder forwards shipment tracking for a canonical order to the
// channel it was imported from, then advances the order to shipped.
func (e *SyncEngine) FulfillOrder(ctx context.Context, channelID string, orderID uint64, tracking channel.TrackingInfo) error {
	adapter, err := e.registry.Get(channelID)
	if err != nil {
		return ErrUnknownChannel
	}

	order, err := e.store.FindOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}

	mapping, err := e.store.FindOrderMappingByOrder(ctx, orderID, channelID)
	if err != nil {
		return err
	}
	if mapping == nil {
		return ErrMappingNotFound
	}

	if err := e.withRetry(ctx, func(ctx context.Context) error {
		return adapter.FulfillOrder(ctx, mapping.ExternalID, tracking)
	}); err != nil {
		return err
	}

	if !entity.OrderCanTransition(order.Status, entity.OrderStatusShipped) {
		return nil
	}
	if err := e.store.UpdateOrderStatus(ctx, order.ID, order.Status, entity.OrderStatusShipped, nil); err != nil {
		// Guarded update missing its row means another writer moved the
		// order first; the channel already has the tracking either way.
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// RefundOrderLine issues a refund on the channel for one line of an imported
// order. lineRef may be empty when the channel refunds whole orders.
func (e *SyncEngine) RefundOrderLine(ctx context.Context, channelID string, orderID uint64, lineRef string, amountCents int64, reason string) error {
	adapter, err := e.registry.Get(channelID)
	if err != nil {
		return ErrUnknownChannel
	}

	mapping, err := e.store.FindOrderMappingByOrder(ctx, orderID, channelID)
	if err != nil {
		return err
	}
	if mapping == nil {
		return ErrMappingNotFound
	}

	return e.withRetry(ctx, func(ctx context.Context) error {
		return adapter.IssueRefund(ctx, mapping.ExternalID, lineRef, amountCents, reason)
	})
}

// ChannelIDs lists the channels the engine can run against.
func (e *SyncEngine) ChannelIDs() []string {
	return e.registry.ChannelIDs()
}

// Logs returns recent sync runs, newest first, optionally filtered by
// channel and operation.
func (e *SyncEngine) Logs(ctx context.Context, channelID, operation string, limit int32) ([]*entity.SyncLog, error) {
	if limit <= 0 {
		limit = e.cfg.LogListLimit
	}
	return e.store.ListSyncLogs(ctx, channelID, operation, limit)
}

func (e *SyncEngine) pushProduct(ctx context.Context, adapter channel.Adapter, product *entity.Product) error {
	channelID := adapter.ChannelID()

	mapping, err := e.store.FindProductMappingByProduct(ctx, product.ID, channelID)
	if err != nil {
		return err
	}

	externalRef := ""
	if mapping != nil && mapping.Status == entity.MappingStatusActive && mapping.ExternalID != "" {
		externalRef = mapping.ExternalID
		err = e.withRetry(ctx, func(ctx context.Context) error {
			return adapter.UpdateStock(ctx, externalRef, product.Stock)
		})
		if err == nil {
			err = e.withRetry(ctx, func(ctx context.Context) error {
				return adapter.UpdatePrice(ctx, externalRef, product.PriceCents)
			})
		}
	} else {
		err = e.withRetry(ctx, func(ctx context.Context) error {
			ref, pubErr := adapter.PublishCatalogEntry(ctx, &channel.Product{
				SKU:        product.SKU,
				Name:       product.Name,
				PriceCents: product.PriceCents,
				Currency:   product.Currency,
				Stock:      product.Stock,
			})
			if pubErr != nil {
				return pubErr
			}
			externalRef = ref
			return nil
		})
	}
	if err != nil {
		e.parkMapping(ctx, product.ID, channelID, mapping, err)
		return err
	}

	now := time.Now()
	if err := e.store.UpsertProductMapping(ctx, &entity.ProductMapping{
		ProductID:  product.ID,
		ChannelID:  channelID,
		ExternalID: externalRef,
		Status:     entity.MappingStatusActive,
		LastSyncAt: &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return err
	}

	return e.store.MarkProductClean(ctx, product.ID)
}

// endRetiredListings closes channel listings whose canonical product has been
// deactivated since its last push. The listing is ended on the channel and
// the mapping moves to ended; mappings are never hard-deleted.
func (e *SyncEngine) endRetiredListings(ctx context.Context, adapter channel.Adapter, counts *runCounts) {
	channelID := adapter.ChannelID()

	mappings, err := e.store.ListRetiredProductMappings(ctx, channelID, e.cfg.BatchSize)
	if err != nil {
		e.logger.WithError(err).WithField("channel", channelID).Error("failed to list retired product mappings")
		return
	}

	for _, mapping := range mappings {
		if mapping.ExternalID != "" {
			err := e.withRetry(ctx, func(ctx context.Context) error {
				return adapter.EndListing(ctx, mapping.ExternalID, "product retired")
			})
			if err != nil {
				counts.fail()
				e.logger.WithError(err).WithFields(logrus.Fields{
					"channel":     channelID,
					"external_id": mapping.ExternalID,
				}).Error("failed to end retired listing")
				continue
			}
		}

		if err := e.store.SetProductMappingStatus(ctx, mapping.ProductID, channelID, entity.MappingStatusEnded); err != nil {
			counts.fail()
			e.logger.WithError(err).WithField("product_id", mapping.ProductID).Error("failed to mark mapping ended")
			continue
		}
		counts.ok()
	}
}

// parkMapping flags the mapping in error state after a permanent channel
// failure so operators can see it; transient failures leave the mapping
// alone for the next run to retry.
func (e *SyncEngine) parkMapping(ctx context.Context, productID uint64, channelID string, mapping *entity.ProductMapping, cause error) {
	if !channel.IsPermanent(cause) {
		return
	}

	if mapping == nil {
		now := time.Now()
		mapping = &entity.ProductMapping{
			ProductID: productID,
			ChannelID: channelID,
			Status:    entity.MappingStatusError,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.store.UpsertProductMapping(ctx, mapping); err != nil {
			e.logger.WithError(err).WithField("product_id", productID).Error("failed to record mapping error state")
		}
		return
	}

	if err := e.store.SetProductMappingStatus(ctx, productID, channelID, entity.MappingStatusError); err != nil {
		e.logger.WithError(err).WithField("product_id", productID).Error("failed to record mapping error state")
	}
}

func (e *SyncEngine) importOrder(ctx context.Context, channelID string, ext *channel.ExternalOrder) error {
	existing, err := e.store.FindOrderMappingByExternalID(ctx, channelID, ext.ExternalID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	status, known := mapper.OrderStatusFromExternal(ext.Status)
	if !known {
		e.logger.WithFields(logrus.Fields{
			"channel":     channelID,
			"external_id": ext.ExternalID,
			"status":      ext.Status,
		}).Info("unrecognized external order status, importing as created")
	}

	err = e.store.WithinTx(ctx, func(tx repository.Datastore) error {
		now := time.Now()
		order := &entity.Order{
			Number:      externalOrderNumber(channelID, ext.ExternalID),
			CustomerRef: ext.CustomerRef,
			Status:      status,
			TotalCents:  ext.TotalCents,
			Currency:    ext.Currency,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		for _, line := range ext.Lines {
			item, lineErr := e.resolveOrderLine(ctx, tx, channelID, ext.ExternalID, line)
			if lineErr != nil {
				return lineErr
			}
			if item == nil {
				continue
			}
			order.Items = append(order.Items, item)
		}

		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		return tx.CreateOrderMapping(ctx, &entity.OrderMapping{
			OrderID:    order.ID,
			ChannelID:  channelID,
			ExternalID: ext.ExternalID,
			Status:     entity.MappingStatusActive,
			LastSyncAt: &now,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
	// A concurrent run winning the race on either unique index counts as
	// already imported; the transaction rolled our copy back.
	if errors.Is(err, repository.ErrMappingAlreadyExists) || errors.Is(err, repository.ErrOrderAlreadyExists) {
		return nil
	}
	return err
}

// resolveOrderLine maps an external line onto a canonical product. Lines for
// SKUs with no mapping are logged and dropped rather than blocking the whole
// order.
func (e *SyncEngine) resolveOrderLine(ctx context.Context, tx repository.Datastore, channelID, externalID string, line channel.ExternalOrderLine) (*entity.OrderItem, error) {
	mapping, err := tx.FindProductMappingByExternalID(ctx, channelID, line.ExternalSKU)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		// Some channels echo the canonical SKU back verbatim instead of
		// their own listing reference; accept that before dropping.
		product, err := tx.FindProductBySKU(ctx, line.ExternalSKU)
		if err != nil {
			return nil, err
		}
		if product != nil {
			return &entity.OrderItem{
				ProductID:      product.ID,
				SKU:            product.SKU,
				Quantity:       line.Quantity,
				UnitPriceCents: line.UnitPriceCents,
			}, nil
		}

		e.logger.WithFields(logrus.Fields{
			"channel":     channelID,
			"external_id": externalID,
			"sku":         line.ExternalSKU,
		}).Warn("order line references unmapped sku, dropping line")
		return nil, nil
	}

	sku := line.ExternalSKU
	product, err := tx.FindProductByID(ctx, mapping.ProductID)
	if err != nil {
		return nil, err
	}
	if product != nil {
		sku = product.SKU
	}

	return &entity.OrderItem{
		ProductID:      mapping.ProductID,
		SKU:            sku,
		Quantity:       line.Quantity,
		UnitPriceCents: line.UnitPriceCents,
	}, nil
}

func (e *SyncEngine) watermark(ctx context.Context, channelID string) time.Time {
	lookback := e.channels[channelID].DefaultLookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	since := time.Now().Add(-lookback)

	last, err := e.store.LastSuccessfulSyncLog(ctx, channelID, entity.SyncOperationOrderPull)
	if err != nil {
		e.logger.WithError(err).WithField("channel", channelID).Warn("failed to load last sync log, falling back to lookback window")
		return since
	}
	if last != nil && last.FinishedAt != nil && last.FinishedAt.After(since) {
		return *last.FinishedAt
	}
	return since
}

// runWorkers fans jobs out to the channel's configured worker count and
// blocks until the dispatcher stops and every in-flight job finished.
func (e *SyncEngine) runWorkers(ctx context.Context, channelID string, total int, dispatch func(chan<- int), handle func(int)) {
	if total == 0 {
		return
	}

	workers := e.channels[channelID].Workers
	if workers < 1 {
		workers = 1
	}
	if workers > total {
		workers = total
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				handle(job)
			}
		}()
	}

	dispatch(jobs)
	close(jobs)
	wg.Wait()
}

// finishRun finalizes the SyncLog, even when the run context already
// expired, so partial counts are never lost. runErr is only set for
// run-level failures; per-record failures land in RecordsFailed.
func (e *SyncEngine) finishRun(syncLog *entity.SyncLog, counts *runCounts, runErr error) {
	processed, failed := counts.snapshot()
	now := time.Now()

	syncLog.FinishedAt = &now
	syncLog.RecordsProcessed = processed
	syncLog.RecordsFailed = failed
	syncLog.Success = runErr == nil
	if runErr != nil {
		msg := runErr.Error()
		syncLog.Error = &msg
	}

	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.store.FinishSyncLog(finishCtx, syncLog); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"channel":   syncLog.ChannelID,
			"operation": syncLog.Operation,
		}).Error("failed to finalize sync log")
	}

	result := "success"
	if runErr != nil {
		result = "failure"
	}
	metrics.RecordSyncRun(syncLog.ChannelID, syncLog.Operation, result, now.Sub(syncLog.StartedAt))
	metrics.AddSyncRecords(syncLog.ChannelID, syncLog.Operation, processed, failed)

	e.notifier.SyncRunFinished(finishCtx, syncLog)

	e.logger.WithFields(logrus.Fields{
		"channel":   syncLog.ChannelID,
		"operation": syncLog.Operation,
		"processed": processed,
		"failed":    failed,
		"success":   syncLog.Success,
	}).Info("sync run finished")
}

// withRetry runs fn, retrying transient channel failures with exponential
// backoff up to the configured attempt limit. Permanent failures and context
// cancellation return immediately.
func (e *SyncEngine) withRetry(ctx context.Context, fn func(context.Context) error) error {
	attempts := e.cfg.RetryMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !channel.IsTransient(err) || attempt == attempts {
			return err
		}

		delay := e.cfg.RetryBaseDelay << (attempt - 1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func externalOrderNumber(channelID, externalID string) string {
	return strings.ToUpper(channelID) + "-" + externalID
}
