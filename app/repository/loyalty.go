package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
)

type LoyaltyRepository struct {
	db DBTX
}

func NewLoyaltyRepository(db DBTX) *LoyaltyRepository {
	return &LoyaltyRepository{db: db}
}

// Append inserts a ledger entry. There is no update path: the table is
// append-only and balances are derived by summing.
func (r *LoyaltyRepository) Append(ctx context.Context, tx *entity.LoyaltyTransaction) error {
	query := `
		INSERT INTO loyalty_transactions (customer_ref, points, kind, reference, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		tx.CustomerRef,
		tx.Points,
		tx.Kind,
		tx.Reference,
		tx.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	tx.ID = uint64(id)
	return nil
}

func (r *LoyaltyRepository) BalanceForCustomer(ctx context.Context, customerRef string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(points), 0)
		FROM loyalty_transactions
		WHERE customer_ref = ?
	`

	var balance int64
	if err := r.db.QueryRowContext(ctx, query, customerRef).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *LoyaltyRepository) ListByCustomer(ctx context.Context, customerRef string, limit int32) ([]*entity.LoyaltyTransaction, error) {
	query := `
		SELECT id, customer_ref, points, kind, reference, created_at
		FROM loyalty_transactions
		WHERE customer_ref = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, customerRef, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.LoyaltyTransaction, 0)
	for rows.Next() {
		item := &entity.LoyaltyTransaction{}
		if err := rows.Scan(&item.ID, &item.CustomerRef, &item.Points, &item.Kind, &item.Reference, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
