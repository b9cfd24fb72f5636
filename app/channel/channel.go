package channel

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Product is the channel-facing view of a canonical catalog entry.
type Product struct {
	SKU        string
	Name       string
	PriceCents int64
	Currency   string
	Stock      int32
}

type TrackingInfo struct {
	Carrier        string
	TrackingNumber string
}

type ExternalOrderLine struct {
	LineRef        string
	ExternalSKU    string
	Quantity       int32
	UnitPriceCents int64
}

type ExternalOrder struct {
	ExternalID  string
	Status      string
	CustomerRef string
	TotalCents  int64
	Currency    string
	CreatedAt   time.Time
	Lines       []ExternalOrderLine
}

// Adapter hides the transport details of one external marketplace. Methods
// fail with a *Error so callers can tell transient failures (retry) from
// permanent ones (mark the mapping and move on).
//
// PublishCatalogEntry is idempotent: publishing a product that already has an
// active listing updates it in place and returns the existing external ref.
// FetchOrdersSince handles pagination internally and returns the complete set
// of orders created or modified at or after the watermark.
type Adapter interface {
	ChannelID() string

	PublishCatalogEntry(ctx context.Context, product *Product) (string, error)
	UpdateStock(ctx context.Context, externalRef string, quantity int32) error
	UpdatePrice(ctx context.Context, externalRef string, amountCents int64) error
	EndListing(ctx context.Context, externalRef, reason string) error

	FetchOrdersSince(ctx context.Context, since time.Time) ([]*ExternalOrder, error)
	FulfillOrder(ctx context.Context, externalRef string, tracking TrackingInfo) error
	IssueRefund(ctx context.Context, externalRef, lineRef string, amountCents int64, reason string) error
}

type ErrorKind int

const (
	// ErrorTransient covers rate limits, timeouts, and network failures;
	// the caller may retry.
	ErrorTransient ErrorKind = 1
	// ErrorPermanent covers validation and not-found failures; retrying
	// cannot help.
	ErrorPermanent ErrorKind = 2
)

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Transient(op string, err error) *Error {
	return &Error{Kind: ErrorTransient, Op: op, Err: err}
}

func Permanent(op string, err error) *Error {
	return &Error{Kind: ErrorPermanent, Op: op, Err: err}
}

// IsTransient reports whether err should be retried. Context deadline
// expiry on an adapter call counts as transient.
func IsTransient(err error) bool {
	var chErr *Error
	if errors.As(err, &chErr) {
		return chErr.Kind == ErrorTransient
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func IsPermanent(err error) bool {
	var chErr *Error
	return errors.As(err, &chErr) && chErr.Kind == ErrorPermanent
}
