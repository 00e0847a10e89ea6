package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"

	"memberhub-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteOrderRepository implements OrderRepository using SQLite.
// Default backend for development and single-node deployments.
type SQLiteOrderRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteOrderRepository creates a new SQLite order repository.
// dbPath is the path to the SQLite database file (e.g., "./data/orders.db")
func NewSQLiteOrderRepository(dbPath string) (*SQLiteOrderRepository, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createOrdersTable(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteOrderRepository] Initialized with database: %s", dbPath)
	return &SQLiteOrderRepository{db: db}, nil
}

func createOrdersTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '[]',
		line_items TEXT NOT NULL DEFAULT '[]',
		billing TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	`
	_, err := db.Exec(query)
	return err
}

// Count returns the number of orders, filtered by status when non-empty.
func (r *SQLiteOrderRepository) Count(ctx context.Context, status string) (int, error) {
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
func (r *SQLiteOrderRepository) Page(ctx context.Context, page, pageSize int, status string) ([]model.Order, error) {
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
func (r *SQLiteOrderRepository) UpdateMetadata(ctx context.Context, id string, patch []model.MetaEntry) (model.Order, error) {
	return r.mutate(ctx, id, "", patch)
}

// SetStatus transitions an order's status and applies a metadata patch.
func (r *SQLiteOrderRepository) SetStatus(ctx context.Context, id, status string, patch []model.MetaEntry) (model.Order, error) {
	return r.mutate(ctx, id, status, patch)
}

// mutate performs a read-modify-write of one order row. The single-writer
// connection plus r.mu makes the sequence atomic within this process.
func (r *SQLiteOrderRepository) mutate(ctx context.Context, id, status string, patch []model.MetaEntry) (model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		o                    model.Order
		meta, items, billing string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, metadata, line_items, billing, created_at FROM orders WHERE id = ?`, id).
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

	_, err = r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, metadata = ? WHERE id = ?`,
		o.Status, newMeta, id)
	if err != nil {
		return model.Order{}, fmt.Errorf("failed to update order %s: %w", id, err)
	}
	return o, nil
}

// InsertOrder creates a new order record.
func (r *SQLiteOrderRepository) InsertOrder(ctx context.Context, o model.Order) error {
	meta, items, billing, err := encodeOrderColumns(o)
	if err != nil {
		return err
	}
	if o.CreatedAt.IsZero() {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO orders (id, status, metadata, line_items, billing) VALUES (?, ?, ?, ?, ?)`,
			o.ID, o.Status, meta, items, billing)
	} else {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO orders (id, status, metadata, line_items, billing, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, o.Status, meta, items, billing, o.CreatedAt)
	}
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
	}
	return nil
}

// Close closes the database connection.
func (r *SQLiteOrderRepository) Close() error {
	return r.db.Close()
}

// Ensure SQLiteOrderRepository implements OrderRepository
var _ OrderRepository = (*SQLiteOrderRepository)(nil)
