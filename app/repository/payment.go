package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
	ErrDisputeAlreadyExists = errors.New("dispute already exists")
)

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	metadataJSON, err := serializeMetadata(payment.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			order_id, processor_ref, status, amount_cents, currency,
			endpoint, metadata_json, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.OrderID,
		payment.ProcessorRef,
		payment.Status,
		payment.AmountCents,
		payment.Currency,
		payment.Endpoint,
		metadataJSON,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

func (r *PaymentRepository) Update(ctx context.Context, payment *entity.Payment) error {
	metadataJSON, err := serializeMetadata(payment.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE payments SET
			order_id = ?,
			status = ?,
			amount_cents = ?,
			currency = ?,
			endpoint = ?,
			metadata_json = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.OrderID,
		payment.Status,
		payment.AmountCents,
		payment.Currency,
		payment.Endpoint,
		metadataJSON,
		payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}

	return nil
}

func (r *PaymentRepository) FindByProcessorRef(ctx context.Context, processorRef string) (*entity.Payment, error) {
	query := `
		SELECT id, order_id, processor_ref, status, amount_cents, currency,
			endpoint, metadata_json, created_at, updated_at
		FROM payments
		WHERE processor_ref = ?
		LIMIT 1
	`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, processorRef), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID uint64) ([]*entity.Payment, error) {
	query := `
		SELECT id, order_id, processor_ref, status, amount_cents, currency,
			endpoint, metadata_json, created_at, updated_at
		FROM payments
		WHERE order_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

// CreateDispute attaches a dispute to a payment. The processor dispute ref is
// unique so a replayed dispute webhook cannot insert twice.
func (r *PaymentRepository) CreateDispute(ctx context.Context, dispute *entity.Dispute) error {
	query := `
		INSERT INTO disputes (payment_id, processor_dispute_ref, amount_cents, reason, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		dispute.PaymentID,
		dispute.ProcessorDisputeRef,
		dispute.AmountCents,
		dispute.Reason,
		dispute.Status,
		dispute.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDisputeAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	dispute.ID = uint64(id)
	return nil
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var metadataJSON string

	err := scan.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.ProcessorRef,
		&payment.Status,
		&payment.AmountCents,
		&payment.Currency,
		&payment.Endpoint,
		&metadataJSON,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	metadata, err := parseMetadata(metadataJSON)
	if err != nil {
		return err
	}
	payment.Metadata = metadata

	return nil
}
