package entities

import (
	"time"
)

// Chain identifiers assigned by address classification
const (
	ChainEthereum = "ethereum"
	ChainSolana   = "solana"
	ChainBinance  = "binance"
	ChainCosmos   = "cosmos"
	ChainUnknown  = "unknown"
)

// Account status values
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Sync status lifecycle values
const (
	SyncPending = "pending"
	SyncSyncing = "syncing"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// Account represents a user-supplied blockchain address being enriched
type Account struct {
	ID          int64  `db:"id"`
	UserID      int64  `db:"user_id"`
	Address     string `db:"address"`
	Name        string `db:"name"`
	Chain       string `db:"chain"`
	AccountType string `db:"account_type"`
	Status      string `db:"status"`

	SyncStatus   *string    `db:"sync_status"`
	SyncError    *string    `db:"sync_error"`
	LastSyncedAt *time.Time `db:"last_synced_at"`

	BalanceUSD         float64 `db:"balance_usd"`
	WalletBalanceUSD   float64 `db:"wallet_balance_usd"`
	ProtocolBalanceUSD float64 `db:"protocol_balance_usd"`

	// DeFi position payload, persisted as JSON text; see DecodePositionsPayload
	DeFiPositions *string `db:"defi_positions"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SyncStatusValue returns the sync status, empty before first enrichment
func (a *Account) SyncStatusValue() string {
	if a.SyncStatus == nil {
		return ""
	}
	return *a.SyncStatus
}

// IsSyncing reports whether an enrichment run currently owns this account
func (a *Account) IsSyncing() bool {
	return a.SyncStatusValue() == SyncSyncing
}

// NeedsSync reports whether the account should be re-enriched. True for
// pending/error status, never-synced accounts, and accounts whose last sync
// is older than staleAfter.
func (a *Account) NeedsSync(now time.Time, staleAfter time.Duration) bool {
	switch a.SyncStatusValue() {
	case SyncPending, SyncError:
		return true
	}
	if a.LastSyncedAt == nil {
		return true
	}
	return a.LastSyncedAt.Before(now.Add(-staleAfter))
}

// ShortenedAddress returns a display form like 0x1234...abcd
func (a *Account) ShortenedAddress() string {
	if len(a.Address) <= 10 {
		return a.Address
	}
	return a.Address[:6] + "..." + a.Address[len(a.Address)-4:]
}

// DisplayName returns the user-assigned name or the shortened address
func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ShortenedAddress()
}
