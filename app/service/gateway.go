package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
	"github.com/vibast-solutions/ms-go-channel-sync/app/factory"
	"github.com/vibast-solutions/ms-go-channel-sync/app/metrics"
	"github.com/vibast-solutions/ms-go-channel-sync/app/repository"
	"github.com/vibast-solutions/ms-go-channel-sync/config"
)

const (
	AckProcessed = "processed"
	AckDuplicate = "duplicate"
	AckIgnored   = "ignored"
	AckFiltered  = "filtered"
)

type Ack struct {
	EventID string
	Outcome string
}

type eventCache interface {
	Seen(ctx context.Context, endpoint, eventID string) (bool, error)
	MarkSeen(ctx context.Context, endpoint, eventID string) error
}

// Gateway verifies, routes, and deduplicates inbound processor events before
// handing them to the reconciler. The dedup record and every transition the
// event causes share one transaction, so a failure rolls everything back and
// the processor's redelivery can safely retry.
type Gateway struct {
	store      repository.Datastore
	cache      eventCache
	reconciler *Reconciler
	notifier   Notifier
	endpoints  map[string]config.WebhookEndpointConfig
	logger     logrus.FieldLogger
}

func NewGateway(
	store repository.Datastore,
	cache eventCache,
	reconciler *Reconciler,
	notifier Notifier,
	endpoints []config.WebhookEndpointConfig,
) *Gateway {
	byKey := make(map[string]config.WebhookEndpointConfig, len(endpoints))
	for _, endpoint := range endpoints {
		byKey[endpoint.Key] = endpoint
	}

	return &Gateway{
		store:      store,
		cache:      cache,
		reconciler: reconciler,
		notifier:   notifier,
		endpoints:  byKey,
		logger:     factory.NewModuleLogger("gateway"),
	}
}

func (g *Gateway) Ingest(ctx context.Context, rawBody []byte, signatureHeader, endpointKey string) (*Ack, error) {
	endpoint, ok := g.endpoints[endpointKey]
	if !ok {
		return nil, ErrUnknownEndpoint
	}

	if !verifyEventSignature(rawBody, signatureHeader, endpoint.Secret, endpoint.SignatureToleranceSeconds) {
		metrics.RecordWebhookEvent(endpointKey, "rejected")
		return nil, ErrSignatureInvalid
	}

	event, err := parsePaymentEvent(rawBody)
	if err != nil || event.ID == "" {
		// Authentic but unparseable; redelivery cannot fix it, so it is
		// acknowledged without a dedup record.
		g.logger.WithError(err).WithField("endpoint", endpointKey).Warn("Malformed event payload acknowledged")
		metrics.RecordWebhookEvent(endpointKey, "malformed")
		return &Ack{Outcome: AckIgnored}, nil
	}
	event.Endpoint = endpointKey

	if !routeAllows(endpoint, event.PayerIdentity) {
		metrics.RecordWebhookEvent(endpointKey, "filtered")
		return &Ack{EventID: event.ID, Outcome: AckFiltered}, nil
	}

	if g.cache != nil {
		seen, err := g.cache.Seen(ctx, endpointKey, event.ID)
		if err != nil {
			// Cache trouble degrades to the DB ledger.
			g.logger.WithError(err).Warn("Dedup cache unavailable")
		} else if seen {
			metrics.RecordWebhookEvent(endpointKey, "duplicate")
			return &Ack{EventID: event.ID, Outcome: AckDuplicate}, nil
		}
	}

	var outcome *ApplyOutcome
	txErr := g.store.WithinTx(ctx, func(ds repository.Datastore) error {
		if err := ds.InsertWebhookEvent(ctx, &entity.WebhookEventRecord{
			Endpoint:   endpointKey,
			EventID:    event.ID,
			EventKind:  event.Kind,
			ReceivedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}

		applied, applyErr := g.reconciler.Apply(ctx, ds, event)
		if applyErr != nil {
			return applyErr
		}
		outcome = applied
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, repository.ErrEventAlreadyProcessed) {
			g.markSeen(ctx, endpointKey, event.ID)
			metrics.RecordWebhookEvent(endpointKey, "duplicate")
			return &Ack{EventID: event.ID, Outcome: AckDuplicate}, nil
		}
		metrics.RecordWebhookEvent(endpointKey, "error")
		return nil, fmt.Errorf("process event %s: %w", event.ID, txErr)
	}

	g.markSeen(ctx, endpointKey, event.ID)
	metrics.RecordWebhookEvent(endpointKey, "processed")

	if outcome != nil && outcome.PaymentTransitioned {
		g.notifier.PaymentTransition(ctx, outcome.Payment, outcome.OrderNumber, outcome.PaymentOldStatus)
	}

	return &Ack{EventID: event.ID, Outcome: AckProcessed}, nil
}

func (g *Gateway) markSeen(ctx context.Context, endpointKey, eventID string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.MarkSeen(ctx, endpointKey, eventID); err != nil {
		g.logger.WithError(err).Warn("Failed to mark event in dedup cache")
	}
}
