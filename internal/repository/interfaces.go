package repository

import (
	"context"
	"errors"

	"memberhub-api/internal/model"
)

// ErrOrderNotFound is returned when an order id does not exist in the store.
var ErrOrderNotFound = errors.New("order not found")

// ErrRowNotFound is returned when no webinar row matches a code.
var ErrRowNotFound = errors.New("webinar row not found")

// OrderRepository defines paged read/update access to purchase records.
// No retries are built in at this layer; callers decide.
type OrderRepository interface {
	// Count returns the number of orders, filtered by status when non-empty.
	Count(ctx context.Context, status string) (int, error)

	// Page returns one 1-indexed page of orders ordered by creation time,
	// filtered by status when non-empty.
	Page(ctx context.Context, page, pageSize int, status string) ([]model.Order, error)

	// UpdateMetadata applies a metadata patch to an order: patch keys
	// overwrite the existing entry for the same key, new keys append.
	UpdateMetadata(ctx context.Context, id string, patch []model.MetaEntry) (model.Order, error)

	// SetStatus transitions an order's status and applies a metadata patch
	// in the same write.
	SetStatus(ctx context.Context, id, status string, patch []model.MetaEntry) (model.Order, error)

	// InsertOrder creates a new order record.
	InsertOrder(ctx context.Context, o model.Order) error

	// Close closes the repository connection.
	Close() error
}

// WebinarLedger defines find/mark access to the file-backed webinar table.
// Callers must hold the ledger's advisory lock across a Find/MarkUsed pair;
// the ledger itself does no locking.
type WebinarLedger interface {
	// Find returns the row matching the activation code, or ErrRowNotFound.
	Find(ctx context.Context, code string) (*model.WebinarRow, error)

	// MarkUsed flips the row's used flag and binds the identity, persisting
	// the whole ledger. Rows are never deleted.
	MarkUsed(ctx context.Context, code, discordID, username string) error
}
