package channel

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

func TestRegistryGet(t *testing.T) {
	registry := NewRegistry(NewFakeAdapter("mira"), NewFakeAdapter("zando"))

	adapter, err := registry.Get("mira")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if adapter.ChannelID() != "mira" {
		t.Fatalf("wrong adapter: %s", adapter.ChannelID())
	}

	if _, err := registry.Get("nope"); !errors.Is(err, ErrChannelNotSupported) {
		t.Fatalf("expected ErrChannelNotSupported, got %v", err)
	}

	ids := registry.ChannelIDs()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "mira" || ids[1] != "zando" {
		t.Fatalf("unexpected channel ids: %v", ids)
	}
}

func TestFakeAdapterPublishIsIdempotent(t *testing.T) {
	fake := NewFakeAdapter("mira")

	ref1, err := fake.PublishCatalogEntry(context.Background(), &Product{SKU: "SKU-1", PriceCents: 100})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	ref2, err := fake.PublishCatalogEntry(context.Background(), &Product{SKU: "SKU-1", PriceCents: 200})
	if err != nil {
		t.Fatalf("republish failed: %v", err)
	}
	if ref1 != ref2 {
		t.Fatalf("expected stable external ref, got %q then %q", ref1, ref2)
	}
	if listing := fake.Listing(ref1); listing.PriceCents != 200 {
		t.Fatalf("republish must update the listing: %+v", listing)
	}
}

func TestFakeAdapterFetchHonorsContextDuringDelay(t *testing.T) {
	fake := NewFakeAdapter("mira")
	fake.FetchDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := fake.FetchOrdersSince(ctx, time.Now())
	if err == nil {
		t.Fatal("expected error from cancelled fetch")
	}
	if !IsTransient(err) {
		t.Fatalf("cancelled fetch must classify as transient: %v", err)
	}
}
