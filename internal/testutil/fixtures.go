package testutil

import (
	"time"

	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
)

// Common test addresses
const (
	EVMAddress    = "0x1111111111111111111111111111111111111111"
	EVMAddress2   = "0x2222222222222222222222222222222222222222"
	SolanaAddress = "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK"
	CosmosAddress = "cosmos1x5wgh6vwye60wv3dtshs9dmqggwfx2ldnqvev0"
	USDCContract  = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	DAIContract   = "0x6b175474e89094c44da98b954eedeac495271d0f"
)

// CreateTestAccount creates a test account with default values
func CreateTestAccount(opts ...AccountOption) *entities.Account {
	synced := entities.SyncSynced
	lastSynced := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := &entities.Account{
		ID:          1,
		UserID:      1,
		Address:     EVMAddress,
		Name:        "Main Wallet",
		Chain:       entities.ChainEthereum,
		AccountType: "Ethereum & EVM EOA",
		Status:      entities.StatusActive,
		SyncStatus:  &synced,
		LastSyncedAt: &lastSynced,
		CreatedAt:   time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

type AccountOption func(*entities.Account)

func WithID(id int64) AccountOption {
	return func(a *entities.Account) {
		a.ID = id
	}
}

func WithUserID(userID int64) AccountOption {
	return func(a *entities.Account) {
		a.UserID = userID
	}
}

func WithAddress(address string) AccountOption {
	return func(a *entities.Account) {
		a.Address = address
	}
}

func WithChain(chain string) AccountOption {
	return func(a *entities.Account) {
		a.Chain = chain
	}
}

func WithStatus(status string) AccountOption {
	return func(a *entities.Account) {
		a.Status = status
	}
}

func WithSyncStatus(status string) AccountOption {
	return func(a *entities.Account) {
		s := status
		a.SyncStatus = &s
	}
}

func WithNoSyncStatus() AccountOption {
	return func(a *entities.Account) {
		a.SyncStatus = nil
	}
}

func WithBalances(total, wallet, protocol float64) AccountOption {
	return func(a *entities.Account) {
		a.BalanceUSD = total
		a.WalletBalanceUSD = wallet
		a.ProtocolBalanceUSD = protocol
	}
}

func WithPositions(payload string) AccountOption {
	return func(a *entities.Account) {
		p := payload
		a.DeFiPositions = &p
	}
}

func WithLastSyncedAt(t time.Time) AccountOption {
	return func(a *entities.Account) {
		ts := t
		a.LastSyncedAt = &ts
	}
}
