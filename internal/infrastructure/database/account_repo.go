package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
	"github.com/bimakw/portfolio-enricher/internal/domain/repositories"
)

// Ensure AccountRepo implements AccountRepository
var _ repositories.AccountRepository = (*AccountRepo)(nil)

// AccountRepo implements AccountRepository using PostgreSQL
type AccountRepo struct {
	db *sqlx.DB
}

// NewAccountRepo creates a new account repository
func NewAccountRepo(db *sqlx.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

const accountColumns = `
	id, user_id, address, name, chain, account_type, status,
	sync_status, sync_error, last_synced_at,
	balance_usd, wallet_balance_usd, protocol_balance_usd,
	defi_positions, created_at, updated_at
`

// GetByID retrieves an account by id, nil when not found
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	var account entities.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// GetByUserAndAddress retrieves an account by owner and address, nil when not found
func (r *AccountRepo) GetByUserAndAddress(ctx context.Context, userID int64, address string) (*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND address = $2`

	var account entities.Account
	if err := r.db.GetContext(ctx, &account, query, userID, address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account by address: %w", err)
	}

	return &account, nil
}

// ListByUser retrieves all accounts for a user
func (r *AccountRepo) ListByUser(ctx context.Context, userID int64) ([]entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at`

	var accounts []entities.Account
	if err := r.db.SelectContext(ctx, &accounts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	return accounts, nil
}

// ListActiveByUser retrieves active accounts for a user
func (r *AccountRepo) ListActiveByUser(ctx context.Context, userID int64) ([]entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND status = $2 ORDER BY created_at`

	var accounts []entities.Account
	if err := r.db.SelectContext(ctx, &accounts, query, userID, entities.StatusActive); err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}

	return accounts, nil
}

// Create inserts a new account and populates its id
func (r *AccountRepo) Create(ctx context.Context, account *entities.Account) error {
	query := `
		INSERT INTO accounts (
			user_id, address, name, chain, account_type, status, sync_status,
			balance_usd, wallet_balance_usd, protocol_balance_usd,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		account.UserID,
		account.Address,
		account.Name,
		account.Chain,
		account.AccountType,
		account.Status,
		account.SyncStatus,
		account.BalanceUSD,
		account.WalletBalanceUSD,
		account.ProtocolBalanceUSD,
	)
	if err := row.Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// TrySetSyncing atomically claims the account for an enrichment run.
// The conditional UPDATE is the compare-and-swap that makes the idempotency
// guard safe under concurrent triggers.
func (r *AccountRepo) TrySetSyncing(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE accounts
		SET sync_status = $2, updated_at = NOW()
		WHERE id = $1 AND sync_status IS DISTINCT FROM $2
	`

	res, err := r.db.ExecContext(ctx, query, id, entities.SyncSyncing)
	if err != nil {
		return false, fmt.Errorf("failed to claim account for sync: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}

	return affected == 1, nil
}

// SetSyncStatus updates only the sync status field
func (r *AccountRepo) SetSyncStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE accounts SET sync_status = $2, updated_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}

	return nil
}

// UpdateChain persists the classified chain and account type
func (r *AccountRepo) UpdateChain(ctx context.Context, id int64, chain, accountType string) error {
	query := `UPDATE accounts SET chain = $2, account_type = $3, updated_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, chain, accountType); err != nil {
		return fmt.Errorf("failed to update chain: %w", err)
	}

	return nil
}

// UpdateSyncSuccess persists balances, the position payload, and marks the
// account synced, clearing any previous sync error
func (r *AccountRepo) UpdateSyncSuccess(ctx context.Context, id int64, result repositories.SyncResult) error {
	query := `
		UPDATE accounts
		SET balance_usd = $2,
			wallet_balance_usd = $3,
			protocol_balance_usd = $4,
			defi_positions = $5,
			sync_status = $6,
			sync_error = NULL,
			last_synced_at = $7,
			updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		id,
		result.BalanceUSD,
		result.WalletBalanceUSD,
		result.ProtocolBalanceUSD,
		result.PositionsPayload,
		entities.SyncSynced,
		result.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to persist sync result: %w", err)
	}

	return nil
}

// UpdateSyncFailure marks the account errored with a message, leaving
// balance fields untouched
func (r *AccountRepo) UpdateSyncFailure(ctx context.Context, id int64, message string) error {
	query := `
		UPDATE accounts
		SET sync_status = $2, sync_error = $3, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, entities.SyncError, message); err != nil {
		return fmt.Errorf("failed to persist sync failure: %w", err)
	}

	return nil
}
