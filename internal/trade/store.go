package trade

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/swapdeck/swapdeck-api/internal/models"
)

// Store is the persistence boundary of the lifecycle manager. ExecTx runs fn
// inside a single transaction: either every write in fn commits or none do.
type Store interface {
	ExecTx(ctx context.Context, fn func(tx TxStore) error) error

	// GetTrade reads a trade outside any transaction (API reads).
	GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error)

	// ListPendingBefore returns IDs of pending trades created at or before
	// cutoff, oldest first.
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// TxStore is the transactional view handed to ExecTx closures. ForUpdate reads
// take row locks so availability checks and the subsequent writes are atomic.
type TxStore interface {
	GetListingForUpdate(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	SetListingStatus(ctx context.Context, id uuid.UUID, status models.ListingStatus) error

	InsertTrade(ctx context.Context, t *models.Trade) error
	GetTradeForUpdate(ctx context.Context, id uuid.UUID) (*models.Trade, error)
	UpdateTrade(ctx context.Context, t *models.Trade) error
}
