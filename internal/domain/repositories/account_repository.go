package repositories

import (
	"context"
	"time"

	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
)

// SyncResult carries the balances and position payload persisted after a
// successful enrichment run
type SyncResult struct {
	Chain              string
	BalanceUSD         float64
	WalletBalanceUSD   float64
	ProtocolBalanceUSD float64
	PositionsPayload   string
	SyncedAt           time.Time
}

// AccountRepository defines interface for account data operations.
// Status fields update independently of balance fields so failure paths
// never clobber previously synced balances.
type AccountRepository interface {
	// GetByID retrieves an account by id, nil when not found
	GetByID(ctx context.Context, id int64) (*entities.Account, error)

	// GetByUserAndAddress retrieves an account by owner and address, nil when not found
	GetByUserAndAddress(ctx context.Context, userID int64, address string) (*entities.Account, error)

	// ListByUser retrieves all accounts for a user
	ListByUser(ctx context.Context, userID int64) ([]entities.Account, error)

	// ListActiveByUser retrieves active accounts for a user
	ListActiveByUser(ctx context.Context, userID int64) ([]entities.Account, error)

	// Create inserts a new account and populates its id
	Create(ctx context.Context, account *entities.Account) error

	// TrySetSyncing atomically claims the account for an enrichment run.
	// Returns false when another run already holds the syncing state.
	TrySetSyncing(ctx context.Context, id int64) (bool, error)

	// SetSyncStatus updates only the sync status field
	SetSyncStatus(ctx context.Context, id int64, status string) error

	// UpdateChain persists the classified chain and account type
	UpdateChain(ctx context.Context, id int64, chain, accountType string) error

	// UpdateSyncSuccess persists balances, the position payload, and marks
	// the account synced, clearing any previous sync error
	UpdateSyncSuccess(ctx context.Context, id int64, result SyncResult) error

	// UpdateSyncFailure marks the account errored with a message, leaving
	// balance fields untouched
	UpdateSyncFailure(ctx context.Context, id int64, message string) error
}
