package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
)

var ErrProductNotFound = errors.New("product not found")

type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// ListNeedingSync returns active products that either changed since their
// last push or have no active mapping for the channel yet.
func (r *ProductRepository) ListNeedingSync(ctx context.Context, channelID string, limit int32) ([]*entity.Product, error) {
	query := `
		SELECT p.id, p.sku, p.name, p.price_cents, p.currency, p.stock, p.active, p.dirty,
			p.created_at, p.updated_at
		FROM products p
		LEFT JOIN product_mappings pm
			ON pm.product_id = p.id AND pm.channel_id = ? AND pm.status = ?
		WHERE p.active = 1
		  AND (p.dirty = 1 OR pm.id IS NULL)
		ORDER BY p.id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, channelID, entity.MappingStatusActive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]*entity.Product, 0)
	for rows.Next() {
		item := &entity.Product{}
		if err := scanProduct(rows, item); err != nil {
			return nil, err
		}
		products = append(products, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id uint64) (*entity.Product, error) {
	query := `
		SELECT id, sku, name, price_cents, currency, stock, active, dirty, created_at, updated_at
		FROM products
		WHERE id = ?
	`

	product := &entity.Product{}
	if err := scanProduct(r.db.QueryRowContext(ctx, query, id), product); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return product, nil
}

func (r *ProductRepository) FindBySKU(ctx context.Context, sku string) (*entity.Product, error) {
	query := `
		SELECT id, sku, name, price_cents, currency, stock, active, dirty, created_at, updated_at
		FROM products
		WHERE sku = ?
		LIMIT 1
	`

	product := &entity.Product{}
	if err := scanProduct(r.db.QueryRowContext(ctx, query, sku), product); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return product, nil
}

func (r *ProductRepository) MarkClean(ctx context.Context, id uint64) error {
	query := `
		UPDATE products SET dirty = 0, updated_at = UTC_TIMESTAMP()
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}

	return nil
}

func scanProduct(scan rowScanner, product *entity.Product) error {
	return scan.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.PriceCents,
		&product.Currency,
		&product.Stock,
		&product.Active,
		&product.Dirty,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
}
