package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// FakeAdapter is a deterministic in-memory Adapter used by tests and by
// local development. Listings are keyed by SKU with external refs of the form
// "ext-<sku>", and per-SKU failures can be injected to exercise the engine's
// failure handling.
type FakeAdapter struct {
	mu sync.Mutex

	channelID string

	listings map[string]*Product // external ref -> listing
	refBySKU map[string]string
	orders   []*ExternalOrder

	// FailSKU maps a SKU to the error its publish/update calls return.
	FailSKU map[string]error
	// FailFetch, when set, is returned by FetchOrdersSince.
	FailFetch error
	// FetchDelay is applied per FetchOrdersSince call, letting tests drive
	// deadline behavior deterministically.
	FetchDelay time.Duration

	PublishCalls int
	FetchCalls   int
	Fulfilled    map[string]TrackingInfo
	Refunded     map[string]int64
	Ended        map[string]string
}

func NewFakeAdapter(channelID string) *FakeAdapter {
	return &FakeAdapter{
		channelID: channelID,
		listings:  map[string]*Product{},
		refBySKU:  map[string]string{},
		FailSKU:   map[string]error{},
		Fulfilled: map[string]TrackingInfo{},
		Refunded:  map[string]int64{},
		Ended:     map[string]string{},
	}
}

func (f *FakeAdapter) ChannelID() string {
	return f.channelID
}

func (f *FakeAdapter) AddOrder(order *ExternalOrder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
}

func (f *FakeAdapter) Listing(externalRef string) *Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listings[externalRef]
}

func (f *FakeAdapter) PublishCatalogEntry(_ context.Context, product *Product) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.PublishCalls++
	if err := f.FailSKU[product.SKU]; err != nil {
		return "", err
	}

	ref, ok := f.refBySKU[product.SKU]
	if !ok {
		ref = "ext-" + product.SKU
		f.refBySKU[product.SKU] = ref
	}

	copied := *product
	f.listings[ref] = &copied
	return ref, nil
}

func (f *FakeAdapter) UpdateStock(_ context.Context, externalRef string, quantity int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	listing, ok := f.listings[externalRef]
	if !ok {
		return Permanent("update_stock", fmt.Errorf("listing %s not found", externalRef))
	}
	if err := f.FailSKU[listing.SKU]; err != nil {
		return err
	}
	listing.Stock = quantity
	return nil
}

func (f *FakeAdapter) UpdatePrice(_ context.Context, externalRef string, amountCents int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	listing, ok := f.listings[externalRef]
	if !ok {
		return Permanent("update_price", fmt.Errorf("listing %s not found", externalRef))
	}
	if err := f.FailSKU[listing.SKU]; err != nil {
		return err
	}
	listing.PriceCents = amountCents
	return nil
}

func (f *FakeAdapter) EndListing(_ context.Context, externalRef, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.listings[externalRef]; !ok {
		return Permanent("end_listing", fmt.Errorf("listing %s not found", externalRef))
	}
	delete(f.listings, externalRef)
	f.Ended[externalRef] = reason
	return nil
}

func (f *FakeAdapter) FetchOrdersSince(ctx context.Context, since time.Time) ([]*ExternalOrder, error) {
	f.mu.Lock()
	delay := f.FetchDelay
	f.FetchCalls++
	failErr := f.FailFetch
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, Transient("fetch_orders", ctx.Err())
		case <-time.After(delay):
		}
	}
	if failErr != nil {
		return nil, failErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	matched := make([]*ExternalOrder, 0)
	for _, order := range f.orders {
		if !order.CreatedAt.Before(since) {
			matched = append(matched, order)
		}
	}
	return matched, nil
}

func (f *FakeAdapter) FulfillOrder(_ context.Context, externalRef string, tracking TrackingInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, order := range f.orders {
		if order.ExternalID == externalRef {
			f.Fulfilled[externalRef] = tracking
			return nil
		}
	}
	return Permanent("fulfill_order", errors.New("order not found"))
}

func (f *FakeAdapter) IssueRefund(_ context.Context, externalRef, lineRef string, amountCents int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, order := range f.orders {
		if order.ExternalID != externalRef {
			continue
		}
		for _, line := range order.Lines {
			if line.LineRef == lineRef {
				f.Refunded[externalRef+"/"+lineRef] += amountCents
				return nil
			}
		}
		return Permanent("issue_refund", errors.New("order line not found"))
	}
	return Permanent("issue_refund", errors.New("order not found"))
}
