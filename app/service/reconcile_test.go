package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
)

func seedOrder(t *testing.T, store *memStore, number string, totalCents int64) *entity.Order {
	t.Helper()
	order := &entity.Order{
		Number:      number,
		CustomerRef: "cust-1",
		Status:      entity.OrderStatusCreated,
		TotalCents:  totalCents,
		Currency:    "USD",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := store.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("seed order failed: %v", err)
	}
	return order
}

func TestApplyCheckoutCompletedConfirmsOrderAndAccruesLoyalty(t *testing.T) {
	store := newMemStore()
	order := seedOrder(t, store, "ORD-1", 2500)
	reconciler := NewReconciler(store, 1.0)

	outcome, err := reconciler.Apply(context.Background(), store, &PaymentEvent{
		ID:           "evt_1",
		Kind:         EventKindCheckoutCompleted,
		ProcessorRef: "pi_1",
		OrderNumber:  "ORD-1",
		AmountCents:  2500,
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !outcome.PaymentTransitioned {
		t.Fatal("expected payment transition")
	}
	if outcome.Payment.Status != entity.PaymentStatusSucceeded {
		t.Fatalf("expected succeeded payment, got %d", outcome.Payment.Status)
	}

	updated, _ := store.FindOrderByID(context.Background(), order.ID)
	if updated.Status != entity.OrderStatusConfirmed {
		t.Fatalf("expected confirmed order, got %d", updated.Status)
	}
	if updated.ProcessorPaymentRef == nil || *updated.ProcessorPaymentRef != "pi_1" {
		t.Fatal("expected processor ref recorded on order")
	}

	balance, _ := store.LoyaltyBalance(context.Background(), "cust-1")
	if balance != 25 {
		t.Fatalf("expected 25 loyalty points, got %d", balance)
	}
	if outcome.LoyaltyPoints != 25 {
		t.Fatalf("expected outcome to carry loyalty points, got %d", outcome.LoyaltyPoints)
	}
}

func TestApplyDuplicateSuccessEventsAccrueLoyaltyOnce(t *testing.T) {
	store := newMemStore()
	seedOrder(t, store, "ORD-1", 2500)
	reconciler := NewReconciler(store, 1.0)

	checkout := &PaymentEvent{
		ID:           "evt_1",
		Kind:         EventKindCheckoutCompleted,
		ProcessorRef: "pi_1",
		OrderNumber:  "ORD-1",
		AmountCents:  2500,
		Currency:     "USD",
	}
	if _, err := reconciler.Apply(context.Background(), store, checkout); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}

	// The processor also delivers payment_intent.succeeded for the same
	// payment; it must not accrue again.
	second, err := reconciler.Apply(context.Background(), store, &PaymentEvent{
		ID:           "evt_2",
		Kind:         EventKindPaymentSucceeded,
		ProcessorRef: "pi_1",
		OrderNumber:  "ORD-1",
		AmountCents:  2500,
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
	if second.PaymentTransitioned {
		t.Fatal("expected no transition on duplicate success")
	}

	balance, _ := store.LoyaltyBalance(context.Background(), "cust-1")
	if balance != 25 {
		t.Fatalf("expected loyalty accrued exactly once, got %d", balance)
	}
}

func TestApplyCheckoutAmountMismatchLeavesPaymentPending(t *testing.T) {
	store := newMemStore()
	order := seedOrder(t, store, "ORD-1", 2500)
	reconciler := NewReconciler(store, 1.0)

	outcome, err := reconciler.Apply(context.Background(), store, &PaymentEvent{
		ID:           "evt_1",
		Kind:         EventKindCheckoutCompleted,
		ProcessorRef: "pi_1",
		OrderNumber:  "ORD-1",
		AmountCents:  9999,
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if outcome.Payment.Status != entity.PaymentStatusPending {
		t.Fatalf("expected pending payment on amount mismatch, got %d", outcome.Payment.Status)
	}

	updated, _ := store.FindOrderByID(context.Background(), order.ID)
	if updated.Status != entity.OrderStatusCreated {
		t.Fatalf("expected order left in created, got %d", updated.Status)
	}
	balance, _ := store.LoyaltyBalance(context.Background(), "cust-1")
	if balance != 0 {
		t.Fatalf("expected no loyalty on mismatch, got %d", balance)
	}
}

func TestApplyPaymentFailedCancelsOrder(t *testing.T) {
	store := newMemStore()
	order := seedOrder(t, store, "ORD-1", 2500)
	reconciler := NewReconciler(store, 1.0)

	outcome, err := reconciler.Apply(context.Background(), store, &PaymentEvent{
		ID:           "evt_1",
		Kind:         EventKindPaymentFailed,
		ProcessorRef: "pi_1",
		OrderNumber:  "ORD-1",
		AmountCents:  2500,
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if outcome.Payment.Status != entity.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %d", outcome.Payment.Status)
	}

	updated, _ := store.FindOrderByID(context.Background(), order.ID)
	if updated.Status != entity.OrderStatusCancelled {
		t.Fatalf("expected cancelled order, got %d", updated.Status)
	}
}

func TestApplyFailedAfterSucceededDoesNotRegress(t *testing.T) {
	store := newMemStore()
	order := seedOrder(t, store, "ORD-1", 2500)
	reconciler := NewReconciler(store, 1.0)

	success := &PaymentEvent{
		ID:           "evt_1",
		Kind:         EventKindPaymentSucceeded,
		ProcessorRef: "pi_1",
		OrderNumber:  "ORD-1",
		AmountCents:  2500,
		Currency:     "USD",
	}
	if _, err := reconciler.Apply(context.Background(), store, success); err != nil {
		t.Fatalf("success apply failed: %v", err)
	}

	// Out-of-order failure delivery arrives after success.
	outcome, err := reconciler.Apply(context.Background(), store, &PaymentEvent{
		ID:           "evt_2",
		Kind:         EventKindPaymentFailed,
		ProcessorRef: "pi_1",
		OrderNumber:  "ORD-1",
		AmountCents:  2500,
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("failed apply errored: %v", err)
	}
	if outcome.PaymentTransitioned {
		t.Fatal("expected no transition backwards")
	}
	if outcome.Payment.Status != entity.PaymentStatusSucceeded {
		t.Fatalf("expected payment to remain succeeded, got %d", outcome.Payment.Status)
	}

	updated, _ := store.FindOrderByID(context.Background(), order.ID)
	if updated.Status != entity.OrderStatusConfirmed {
		t.Fatalf("expected order to remain confirmed, got %d", updated.Status)
	}
}

func TestApplyUnknownOrderIsAcknowledged(t *testing.T) {
	store := newMemStore()
	reconciler := NewReconciler(store, 1.0)

	outcome, err := reconciler.Apply(context.Background(), store, &PaymentEvent{
		ID:           "evt_1",
		Kind:         EventKindPaymentSucceeded,
		ProcessorRef: "pi_1",
		OrderNumber:  "ORD-MISSING",
		AmountCents:  2500,
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if outcome.Payment != nil || outcome.PaymentTransitioned {
		t.Fatalf("expected empty outcome, got %+v", outcome)
	}
}

func TestApplyUnknownEventKindIsAcknowledged(t *testing.T) {
	store := newMemStore()
	reconciler := NewReconciler(store, 1.0)

	outcome, err := reconciler.Apply(context.Background(), store, &PaymentEvent{
		ID:   "evt_1",
		Kind: "customer.subscription.updated",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if outcome.PaymentTransitioned {
		t.Fatal("expected no transition for unknown kind")
	}
}

func TestApplyDisputeCreatedIsIdempotent(t *testing.T) {
	store := newMemStore()
	seedOrder(t, store, "ORD-1", 2500)
	reconciler := NewReconciler(store, 1.0)

	if _, err := reconciler.Apply(context.Background(), store, &PaymentEvent{
		ID:           "evt_1",
		Kind:         EventKindPaymentSucceeded,
		ProcessorRef: "pi_1",
		OrderNumber:  "ORD-1",
		AmountCents:  2500,
		Currency:     "USD",
	}); err != nil {
		t.Fatalf("success apply failed: %v", err)
	}

	dispute := &PaymentEvent{
		ID:           "evt_2",
		Kind:         EventKindDisputeCreated,
		ProcessorRef: "pi_1",
		DisputeRef:   "dp_1",
		AmountCents:  2500,
		Reason:       "fraudulent",
	}
	first, err := reconciler.Apply(context.Background(), store, dispute)
	if err != nil {
		t.Fatalf("dispute apply failed: %v", err)
	}
	if !first.DisputeCreated {
		t.Fatal("expected dispute created")
	}

	redelivered := *dispute
	redelivered.ID = "evt_3"
	second, err := reconciler.Apply(context.Background(), store, &redelivered)
	if err != nil {
		t.Fatalf("redelivered dispute apply failed: %v", err)
	}
	if second.DisputeCreated {
		t.Fatal("expected no second dispute")
	}
	if len(store.disputes) != 1 {
		t.Fatalf("expected exactly one dispute row, got %d", len(store.disputes))
	}
}

func TestRefundPaymentReversesLoyalty(t *testing.T) {
	store := newMemStore()
	seedOrder(t, store, "ORD-1", 2500)
	reconciler := NewReconciler(store, 1.0)

	if _, err := reconciler.Apply(context.Background(), store, &PaymentEvent{
		ID:           "evt_1",
		Kind:         EventKindPaymentSucceeded,
		ProcessorRef: "pi_1",
		OrderNumber:  "ORD-1",
		AmountCents:  2500,
		Currency:     "USD",
	}); err != nil {
		t.Fatalf("success apply failed: %v", err)
	}

	refunded, err := reconciler.RefundPayment(context.Background(), "pi_1", "customer request")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.Status != entity.PaymentStatusRefunded {
		t.Fatalf("expected refunded status, got %d", refunded.Status)
	}
	if refunded.Metadata["refund_reason"] != "customer request" {
		t.Fatalf("expected refund reason recorded, got %q", refunded.Metadata["refund_reason"])
	}

	balance, _ := store.LoyaltyBalance(context.Background(), "cust-1")
	if balance != 0 {
		t.Fatalf("expected loyalty reversed to zero, got %d", balance)
	}
	if len(store.loyalty) != 2 {
		t.Fatalf("expected accrual plus reversal entries, got %d", len(store.loyalty))
	}
}

func TestRefundPaymentRejectsPending(t *testing.T) {
	store := newMemStore()
	seedOrder(t, store, "ORD-1", 2500)
	reconciler := NewReconciler(store, 1.0)

	if _, err := reconciler.Apply(context.Background(), store, &PaymentEvent{
		ID:           "evt_1",
		Kind:         EventKindCheckoutCompleted,
		ProcessorRef: "pi_1",
		OrderNumber:  "ORD-1",
		AmountCents:  9999,
		Currency:     "USD",
	}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if _, err := reconciler.RefundPayment(context.Background(), "pi_1", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRefundPaymentUnknownRef(t *testing.T) {
	reconciler := NewReconciler(newMemStore(), 1.0)

	if _, err := reconciler.RefundPayment(context.Background(), "pi_missing", ""); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestPointsForFloorsFractions(t *testing.T) {
	reconciler := NewReconciler(newMemStore(), 0.5)

	if got := reconciler.pointsFor(999); got != 4 {
		t.Fatalf("expected 4 points for 999 cents at 0.5 rate, got %d", got)
	}
	if got := reconciler.pointsFor(0); got != 0 {
		t.Fatalf("expected 0 points, got %d", got)
	}
}
