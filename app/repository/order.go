package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
)

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and its items. Order numbers carry a unique index,
// so a replayed create surfaces as ErrOrderAlreadyExists.
func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	query := `
		INSERT INTO orders (
			number, customer_ref, status, total_cents, currency,
			processor_payment_ref, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.Number,
		order.CustomerRef,
		order.Status,
		order.TotalCents,
		order.Currency,
		nullableStringValue(order.ProcessorPaymentRef),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)

	for _, item := range order.Items {
		item.OrderID = order.ID
		if err := r.createItem(ctx, item); err != nil {
			return err
		}
	}

	return nil
}

func (r *OrderRepository) createItem(ctx context.Context, item *entity.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, sku, quantity, unit_price_cents)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		item.OrderID,
		item.ProductID,
		item.SKU,
		item.Quantity,
		item.UnitPriceCents,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = uint64(id)
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint64) (*entity.Order, error) {
	query := `
		SELECT id, number, customer_ref, status, total_cents, currency,
			processor_payment_ref, created_at, updated_at
		FROM orders
		WHERE id = ?
	`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, id), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *OrderRepository) FindByNumber(ctx context.Context, number string) (*entity.Order, error) {
	query := `
		SELECT id, number, customer_ref, status, total_cents, currency,
			processor_payment_ref, created_at, updated_at
		FROM orders
		WHERE number = ?
		LIMIT 1
	`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, number), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// UpdateStatus moves an order to a new status. The WHERE clause repeats the
// expected current status so concurrent writers cannot race a transition.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uint64, fromStatus, toStatus int32, processorRef *string) error {
	query := `
		UPDATE orders SET
			status = ?,
			processor_payment_ref = COALESCE(?, processor_payment_ref),
			updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, toStatus, nullableStringValue(processorRef), id, fromStatus)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *OrderRepository) listItems(ctx context.Context, orderID uint64) ([]*entity.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, sku, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.OrderItem, 0)
	for rows.Next() {
		item := &entity.OrderItem{}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.SKU, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func scanOrder(scan rowScanner, order *entity.Order) error {
	var processorRef sql.NullString

	err := scan.Scan(
		&order.ID,
		&order.Number,
		&order.CustomerRef,
		&order.Status,
		&order.TotalCents,
		&order.Currency,
		&processorRef,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	order.ProcessorPaymentRef = stringPtrFromNull(processorRef)
	return nil
}
