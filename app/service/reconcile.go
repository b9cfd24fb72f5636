package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
	"github.com/vibast-solutions/ms-go-channel-sync/app/factory"
	"github.com/vibast-solutions/ms-go-channel-sync/app/repository"
)

// ApplyOutcome reports what one event actually changed, so the gateway can
// publish notifications after the transaction commits.
type ApplyOutcome struct {
	PaymentTransitioned bool
	PaymentOldStatus    int32
	Payment             *entity.Payment
	OrderNumber         string
	LoyaltyPoints       int64
	DisputeCreated      bool
}

// Reconciler drives payment and order state from verified processor events.
// Every write is keyed on the processor payment reference and only ever
// moves state forward, so replayed and out-of-order deliveries degrade to
// no-ops.
type Reconciler struct {
	store      repository.Datastore
	pointsRate float64
	logger     logrus.FieldLogger
}

func NewReconciler(store repository.Datastore, pointsRate float64) *Reconciler {
	return &Reconciler{
		store:      store,
		pointsRate: pointsRate,
		logger:     factory.NewModuleLogger("reconciler"),
	}
}

// Apply runs one event against the given datastore. The gateway passes a
// transaction-scoped store so the dedup record and every transition commit
// or roll back together.
func (r *Reconciler) Apply(ctx context.Context, ds repository.Datastore, event *PaymentEvent) (*ApplyOutcome, error) {
	switch event.Kind {
	case EventKindCheckoutCompleted:
		return r.applyCheckoutCompleted(ctx, ds, event)
	case EventKindPaymentSucceeded:
		return r.applyPaymentSucceeded(ctx, ds, event)
	case EventKindPaymentFailed:
		return r.applyPaymentFailed(ctx, ds, event)
	case EventKindDisputeCreated:
		return r.applyDisputeCreated(ctx, ds, event)
	default:
		r.logger.WithField("event_kind", event.Kind).WithField("event_id", event.ID).
			Info("Unknown event kind acknowledged")
		return &ApplyOutcome{}, nil
	}
}

func (r *Reconciler) applyCheckoutCompleted(ctx context.Context, ds repository.Datastore, event *PaymentEvent) (*ApplyOutcome, error) {
	if strings.TrimSpace(event.ProcessorRef) == "" {
		return &ApplyOutcome{}, nil
	}

	order, err := r.resolveOrder(ctx, ds, event)
	if err != nil {
		return nil, err
	}
	if order == nil {
		r.logger.WithField("event_id", event.ID).WithField("order_number", event.OrderNumber).
			Warn("Checkout completed for unknown order, acknowledged")
		return &ApplyOutcome{}, nil
	}

	amountMatches := event.AmountCents == order.TotalCents
	targetStatus := entity.PaymentStatusSucceeded
	if !amountMatches {
		// Conflict: processor-reported amount disagrees with the
		// canonical total. The payment row records the processor amount
		// but the succeeded transition and order confirmation are
		// withheld.
		targetStatus = entity.PaymentStatusPending
		r.logger.WithField("event_id", event.ID).
			WithField("order_number", order.Number).
			WithField("order_total_cents", order.TotalCents).
			WithField("event_amount_cents", event.AmountCents).
			Warn("Checkout amount mismatch, payment left pending")
	}

	outcome, err := r.upsertPayment(ctx, ds, event, order, targetStatus)
	if err != nil {
		return nil, err
	}

	if outcome.PaymentTransitioned && outcome.Payment.Status == entity.PaymentStatusSucceeded {
		if err := r.confirmOrder(ctx, ds, order, event.ProcessorRef); err != nil {
			return nil, err
		}
		if err := r.accrueLoyalty(ctx, ds, order, event.ProcessorRef, outcome); err != nil {
			return nil, err
		}
	}

	return outcome, nil
}

func (r *Reconciler) applyPaymentSucceeded(ctx context.Context, ds repository.Datastore, event *PaymentEvent) (*ApplyOutcome, error) {
	if strings.TrimSpace(event.ProcessorRef) == "" {
		return &ApplyOutcome{}, nil
	}

	order, err := r.resolveOrder(ctx, ds, event)
	if err != nil {
		return nil, err
	}
	if order == nil {
		r.logger.WithField("event_id", event.ID).WithField("processor_ref", event.ProcessorRef).
			Warn("Payment succeeded for unknown order, acknowledged")
		return &ApplyOutcome{}, nil
	}

	outcome, err := r.upsertPayment(ctx, ds, event, order, entity.PaymentStatusSucceeded)
	if err != nil {
		return nil, err
	}

	if outcome.PaymentTransitioned {
		if err := r.confirmOrder(ctx, ds, order, event.ProcessorRef); err != nil {
			return nil, err
		}
		if err := r.accrueLoyalty(ctx, ds, order, event.ProcessorRef, outcome); err != nil {
			return nil, err
		}
	}

	return outcome, nil
}

func (r *Reconciler) applyPaymentFailed(ctx context.Context, ds repository.Datastore, event *PaymentEvent) (*ApplyOutcome, error) {
	if strings.TrimSpace(event.ProcessorRef) == "" {
		return &ApplyOutcome{}, nil
	}

	order, err := r.resolveOrder(ctx, ds, event)
	if err != nil {
		return nil, err
	}
	if order == nil {
		r.logger.WithField("event_id", event.ID).WithField("processor_ref", event.ProcessorRef).
			Warn("Payment failed for unknown order, acknowledged")
		return &ApplyOutcome{}, nil
	}

	outcome, err := r.upsertPayment(ctx, ds, event, order, entity.PaymentStatusFailed)
	if err != nil {
		return nil, err
	}

	if outcome.PaymentTransitioned && entity.OrderCanTransition(order.Status, entity.OrderStatusCancelled) {
		if err := ds.UpdateOrderStatus(ctx, order.ID, order.Status, entity.OrderStatusCancelled, nil); err != nil && err != repository.ErrOrderNotFound {
			return nil, err
		}
	}

	return outcome, nil
}

func (r *Reconciler) applyDisputeCreated(ctx context.Context, ds repository.Datastore, event *PaymentEvent) (*ApplyOutcome, error) {
	payment, err := ds.FindPaymentByProcessorRef(ctx, event.ProcessorRef)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		r.logger.WithField("event_id", event.ID).WithField("processor_ref", event.ProcessorRef).
			Warn("Dispute for unknown payment, acknowledged")
		return &ApplyOutcome{}, nil
	}

	dispute := &entity.Dispute{
		PaymentID:           payment.ID,
		ProcessorDisputeRef: event.DisputeRef,
		AmountCents:         event.AmountCents,
		Reason:              event.Reason,
		Status:              entity.DisputeStatusOpen,
		CreatedAt:           time.Now().UTC(),
	}
	if err := ds.CreateDispute(ctx, dispute); err != nil {
		if err == repository.ErrDisputeAlreadyExists {
			return &ApplyOutcome{Payment: payment}, nil
		}
		return nil, err
	}

	return &ApplyOutcome{Payment: payment, DisputeCreated: true}, nil
}

// RefundPayment is the explicit refund operation: succeeded payments move to
// refunded and the loyalty accrual is reversed in the same transaction.
func (r *Reconciler) RefundPayment(ctx context.Context, processorRef string, reason string) (*entity.Payment, error) {
	var refunded *entity.Payment

	err := r.store.WithinTx(ctx, func(ds repository.Datastore) error {
		payment, err := ds.FindPaymentByProcessorRef(ctx, processorRef)
		if err != nil {
			return err
		}
		if payment == nil {
			return ErrPaymentNotFound
		}
		if !entity.PaymentCanTransition(payment.Status, entity.PaymentStatusRefunded) {
			return fmt.Errorf("%w: payment %s cannot be refunded from status %d", ErrInvalidTransition, processorRef, payment.Status)
		}

		now := time.Now().UTC()
		payment.Status = entity.PaymentStatusRefunded
		if reason != "" {
			payment.Metadata["refund_reason"] = reason
		}
		payment.UpdatedAt = now
		if err := ds.UpdatePayment(ctx, payment); err != nil {
			return err
		}

		order, err := ds.FindOrderByID(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if order != nil {
			points := r.pointsFor(order.TotalCents)
			if points > 0 {
				if err := ds.AppendLoyaltyTransaction(ctx, &entity.LoyaltyTransaction{
					CustomerRef: order.CustomerRef,
					Points:      -points,
					Kind:        entity.LoyaltyKindReversal,
					Reference:   processorRef,
					CreatedAt:   now,
				}); err != nil {
					return err
				}
			}
		}

		refunded = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	return refunded, nil
}

func (r *Reconciler) resolveOrder(ctx context.Context, ds repository.Datastore, event *PaymentEvent) (*entity.Order, error) {
	payment, err := ds.FindPaymentByProcessorRef(ctx, event.ProcessorRef)
	if err != nil {
		return nil, err
	}
	if payment != nil {
		return ds.FindOrderByID(ctx, payment.OrderID)
	}
	if event.OrderNumber == "" {
		return nil, nil
	}
	return ds.FindOrderByNumber(ctx, event.OrderNumber)
}

// upsertPayment creates or advances the payment row keyed on the processor
// reference. PaymentTransitioned is set only when the status actually moved,
// which is what gates every downstream side effect.
func (r *Reconciler) upsertPayment(ctx context.Context, ds repository.Datastore, event *PaymentEvent, order *entity.Order, targetStatus int32) (*ApplyOutcome, error) {
	now := time.Now().UTC()

	payment, err := ds.FindPaymentByProcessorRef(ctx, event.ProcessorRef)
	if err != nil {
		return nil, err
	}

	if payment == nil {
		payment = &entity.Payment{
			OrderID:      order.ID,
			ProcessorRef: event.ProcessorRef,
			Status:       targetStatus,
			AmountCents:  event.AmountCents,
			Currency:     event.Currency,
			Endpoint:     event.Endpoint,
			Metadata:     map[string]string{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := ds.CreatePayment(ctx, payment); err != nil {
			if err == repository.ErrPaymentAlreadyExists {
				// Concurrent insert for the same ref lost the race;
				// re-read and fall through to the update path.
				payment, err = ds.FindPaymentByProcessorRef(ctx, event.ProcessorRef)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		} else {
			return &ApplyOutcome{
				PaymentTransitioned: targetStatus != entity.PaymentStatusPending,
				PaymentOldStatus:    entity.PaymentStatusPending,
				Payment:             payment,
				OrderNumber:         order.Number,
			}, nil
		}
	}

	oldStatus := payment.Status
	if payment.Status == targetStatus || !entity.PaymentCanTransition(payment.Status, targetStatus) {
		return &ApplyOutcome{Payment: payment, OrderNumber: order.Number, PaymentOldStatus: oldStatus}, nil
	}

	payment.Status = targetStatus
	payment.UpdatedAt = now
	if err := ds.UpdatePayment(ctx, payment); err != nil {
		return nil, err
	}

	return &ApplyOutcome{
		PaymentTransitioned: true,
		PaymentOldStatus:    oldStatus,
		Payment:             payment,
		OrderNumber:         order.Number,
	}, nil
}

func (r *Reconciler) confirmOrder(ctx context.Context, ds repository.Datastore, order *entity.Order, processorRef string) error {
	if !entity.OrderCanTransition(order.Status, entity.OrderStatusConfirmed) {
		return nil
	}
	ref := processorRef
	err := ds.UpdateOrderStatus(ctx, order.ID, order.Status, entity.OrderStatusConfirmed, &ref)
	if err == repository.ErrOrderNotFound {
		// Lost a concurrent transition race; the other writer already
		// moved the order forward.
		return nil
	}
	return err
}

func (r *Reconciler) accrueLoyalty(ctx context.Context, ds repository.Datastore, order *entity.Order, processorRef string, outcome *ApplyOutcome) error {
	points := r.pointsFor(order.TotalCents)
	if points <= 0 {
		return nil
	}

	if err := ds.AppendLoyaltyTransaction(ctx, &entity.LoyaltyTransaction{
		CustomerRef: order.CustomerRef,
		Points:      points,
		Kind:        entity.LoyaltyKindAccrual,
		Reference:   processorRef,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		return err
	}

	outcome.LoyaltyPoints = points
	return nil
}

func (r *Reconciler) pointsFor(totalCents int64) int64 {
	return int64(math.Floor(float64(totalCents) * r.pointsRate / 100))
}
