package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
)

var (
	ErrMappingNotFound      = errors.New("mapping not found")
	ErrMappingAlreadyExists = errors.New("mapping already exists")
)

type MappingRepository struct {
	db DBTX
}

func NewMappingRepository(db DBTX) *MappingRepository {
	return &MappingRepository{db: db}
}

// UpsertProductMapping inserts or refreshes the mapping for
// (product_id, channel_id). A second canonical product claiming the same
// external id trips the (external_id, channel_id) unique index and surfaces
// as ErrMappingAlreadyExists.
func (r *MappingRepository) UpsertProductMapping(ctx context.Context, mapping *entity.ProductMapping) error {
	query := `
		INSERT INTO product_mappings (
			product_id, channel_id, external_id, status, last_sync_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			external_id = VALUES(external_id),
			status = VALUES(status),
			last_sync_at = VALUES(last_sync_at),
			updated_at = VALUES(updated_at)
	`

	// An empty external id is stored as NULL so mappings parked in error
	// state before the listing ever existed do not collide on the
	// (channel_id, external_id) unique index.
	_, err := r.db.ExecContext(ctx, query,
		mapping.ProductID,
		mapping.ChannelID,
		nullableEmptyString(mapping.ExternalID),
		mapping.Status,
		nullableTimeValue(mapping.LastSyncAt),
		mapping.CreatedAt,
		mapping.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrMappingAlreadyExists
		}
		return err
	}

	return nil
}

func (r *MappingRepository) FindProductMappingByProduct(ctx context.Context, productID uint64, channelID string) (*entity.ProductMapping, error) {
	query := `
		SELECT id, product_id, channel_id, external_id, status, last_sync_at, created_at, updated_at
		FROM product_mappings
		WHERE product_id = ? AND channel_id = ?
		LIMIT 1
	`

	mapping := &entity.ProductMapping{}
	if err := scanProductMapping(r.db.QueryRowContext(ctx, query, productID, channelID), mapping); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return mapping, nil
}

func (r *MappingRepository) FindProductMappingByExternalID(ctx context.Context, channelID, externalID string) (*entity.ProductMapping, error) {
	query := `
		SELECT id, product_id, channel_id, external_id, status, last_sync_at, created_at, updated_at
		FROM product_mappings
		WHERE channel_id = ? AND external_id = ?
		LIMIT 1
	`

	mapping := &entity.ProductMapping{}
	if err := scanProductMapping(r.db.QueryRowContext(ctx, query, channelID, externalID), mapping); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return mapping, nil
}

// ListRetiredProductMappings returns active mappings whose canonical product
// has since been deactivated; their channel listings still need ending.
func (r *MappingRepository) ListRetiredProductMappings(ctx context.Context, channelID string, limit int32) ([]*entity.ProductMapping, error) {
	query := `
		SELECT pm.id, pm.product_id, pm.channel_id, pm.external_id, pm.status,
			pm.last_sync_at, pm.created_at, pm.updated_at
		FROM product_mappings pm
		JOIN products p ON p.id = pm.product_id
		WHERE pm.channel_id = ? AND pm.status = ? AND p.active = 0
		ORDER BY pm.id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, channelID, entity.MappingStatusActive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mappings := make([]*entity.ProductMapping, 0)
	for rows.Next() {
		item := &entity.ProductMapping{}
		if err := scanProductMapping(rows, item); err != nil {
			return nil, err
		}
		mappings = append(mappings, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return mappings, nil
}

func (r *MappingRepository) SetProductMappingStatus(ctx context.Context, productID uint64, channelID string, status int32) error {
	query := `
		UPDATE product_mappings SET status = ?, updated_at = UTC_TIMESTAMP()
		WHERE product_id = ? AND channel_id = ?
	`

	result, err := r.db.ExecContext(ctx, query, status, productID, channelID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrMappingNotFound
	}

	return nil
}

// CreateOrderMapping is a plain insert: order mappings are written exactly
// once, when an external order is first imported.
func (r *MappingRepository) CreateOrderMapping(ctx context.Context, mapping *entity.OrderMapping) error {
	query := `
		INSERT INTO order_mappings (
			order_id, channel_id, external_id, status, last_sync_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		mapping.OrderID,
		mapping.ChannelID,
		mapping.ExternalID,
		mapping.Status,
		nullableTimeValue(mapping.LastSyncAt),
		mapping.CreatedAt,
		mapping.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrMappingAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	mapping.ID = uint64(id)
	return nil
}

func (r *MappingRepository) FindOrderMappingByExternalID(ctx context.Context, channelID, externalID string) (*entity.OrderMapping, error) {
	query := `
		SELECT id, order_id, channel_id, external_id, status, last_sync_at, created_at, updated_at
		FROM order_mappings
		WHERE channel_id = ? AND external_id = ?
		LIMIT 1
	`

	mapping := &entity.OrderMapping{}
	if err := scanOrderMapping(r.db.QueryRowContext(ctx, query, channelID, externalID), mapping); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return mapping, nil
}

func (r *MappingRepository) FindOrderMappingByOrder(ctx context.Context, orderID uint64, channelID string) (*entity.OrderMapping, error) {
	query := `
		SELECT id, order_id, channel_id, external_id, status, last_sync_at, created_at, updated_at
		FROM order_mappings
		WHERE order_id = ? AND channel_id = ?
		LIMIT 1
	`

	mapping := &entity.OrderMapping{}
	if err := scanOrderMapping(r.db.QueryRowContext(ctx, query, orderID, channelID), mapping); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return mapping, nil
}

func scanOrderMapping(scan rowScanner, mapping *entity.OrderMapping) error {
	var lastSyncAt sql.NullTime

	err := scan.Scan(
		&mapping.ID,
		&mapping.OrderID,
		&mapping.ChannelID,
		&mapping.ExternalID,
		&mapping.Status,
		&lastSyncAt,
		&mapping.CreatedAt,
		&mapping.UpdatedAt,
	)
	if err != nil {
		return err
	}

	mapping.LastSyncAt = timePtrFromNull(lastSyncAt)
	return nil
}

func scanProductMapping(scan rowScanner, mapping *entity.ProductMapping) error {
	var (
		externalID sql.NullString
		lastSyncAt sql.NullTime
	)

	err := scan.Scan(
		&mapping.ID,
		&mapping.ProductID,
		&mapping.ChannelID,
		&externalID,
		&mapping.Status,
		&lastSyncAt,
		&mapping.CreatedAt,
		&mapping.UpdatedAt,
	)
	if err != nil {
		return err
	}

	mapping.ExternalID = externalID.String
	mapping.LastSyncAt = timePtrFromNull(lastSyncAt)
	return nil
}
