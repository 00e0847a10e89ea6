package repository

import (
	"context"
	"database/sql"
	"fmt"

	"memberhub-api/internal/model"
)

// MySQLOrderRepository implements OrderRepository using MySQL.
type MySQLOrderRepository struct {
	db *sql.DB
}

// NewMySQLOrderRepository creates a new MySQL order repository.
// The caller owns the *sql.DB lifecycle except for Close.
func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

// Count returns the number of orders, filtered by status when non-empty.
func (r *MySQLOrderRepository) Count(ctx context.Context, status string) (int, error) {
	var (
		count int
		err   error
	)
	if status == "" {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE status = ?`, status).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// Page returns one 1-indexed page of orders ordered by creation time.
func (r *MySQLOrderRepository) Page(ctx context.Context, page, pageSize int, status string) ([]model.Order, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := `SELECT id, status, metadata, line_items, billing, created_at FROM orders`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at, id LIMIT ? OFFSET ?`
	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to page orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var (
			o                    model.Order
			meta, items, billing string
		)
		if err := rows.Scan(&o.ID, &o.Status, &meta, &items, &billing, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if err := decodeOrderColumns(&o, meta, items, billing); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateMetadata applies a metadata patch to an order.
func (r *MySQLOrderRepository) UpdateMetadata(ctx context.Context, id string, patch []model.MetaEntry) (model.Order, error) {
	return r.mutate(ctx, id, "", patch)
}

// SetStatus transitions an order's status and applies a metadata patch.
func (r *MySQLOrderRepository) SetStatus(ctx context.Context, id, status string, patch []model.MetaEntry) (model.Order, error) {
	return r.mutate(ctx, id, status, patch)
}

// mutate performs a read-modify-write of one order row inside a transaction
// with a row lock, so concurrent patches serialize per order.
func (r *MySQLOrderRepository) mutate(ctx context.Context, id, status string, patch []model.MetaEntry) (model.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Order{}, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		o                    model.Order
		meta, items, billing string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, status, metadata, line_items, billing, created_at FROM orders WHERE id = ? FOR UPDATE`, id).
		Scan(&o.ID, &o.Status, &meta, &items, &billing, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("failed to load order %s: %w", id, err)
	}
	if err := decodeOrderColumns(&o, meta, items, billing); err != nil {
		return model.Order{}, err
	}

	o.Metadata = applyPatch(o.Metadata, patch)
	if status != "" {
		o.Status = status
	}

	newMeta, _, _, err := encodeOrderColumns(o)
	if err != nil {
		return model.Order{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, metadata = ? WHERE id = ?`,
		o.Status, newMeta, id); err != nil {
		return model.Order{}, fmt.Errorf("failed to update order %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Order{}, fmt.Errorf("failed to commit order update: %w", err)
	}
	return o, nil
}

// InsertOrder creates a new order record.
func (r *MySQLOrderRepository) InsertOrder(ctx context.Context, o model.Order) error {
	meta, items, billing, err := encodeOrderColumns(o)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO orders (id, status, metadata, line_items, billing, created_at) VALUES (?, ?, ?, ?, ?, NOW())`,
		o.ID, o.Status, meta, items, billing)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
	}
	return nil
}

// Close closes the database connection.
func (r *MySQLOrderRepository) Close() error {
	return r.db.Close()
}

// Ensure MySQLOrderRepository implements OrderRepository
var _ OrderRepository = (*MySQLOrderRepository)(nil)
