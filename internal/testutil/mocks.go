package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
	"github.com/bimakw/portfolio-enricher/internal/domain/repositories"
	"github.com/bimakw/portfolio-enricher/internal/infrastructure/providers"
)

// MockCall records one invocation on a mock
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockAccountRepository is a mock implementation of AccountRepository
// backed by an in-memory account map
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[int64]*entities.Account
	nextID   int64

	// Function hooks for custom behavior
	GetByIDFunc           func(ctx context.Context, id int64) (*entities.Account, error)
	GetByUserAndAddrFunc  func(ctx context.Context, userID int64, address string) (*entities.Account, error)
	ListByUserFunc        func(ctx context.Context, userID int64) ([]entities.Account, error)
	ListActiveByUserFunc  func(ctx context.Context, userID int64) ([]entities.Account, error)
	CreateFunc            func(ctx context.Context, account *entities.Account) error
	TrySetSyncingFunc     func(ctx context.Context, id int64) (bool, error)
	SetSyncStatusFunc     func(ctx context.Context, id int64, status string) error
	UpdateChainFunc       func(ctx context.Context, id int64, chain, accountType string) error
	UpdateSyncSuccessFunc func(ctx context.Context, id int64, result repositories.SyncResult) error
	UpdateSyncFailureFunc func(ctx context.Context, id int64, message string) error

	// Call tracking
	Calls []MockCall
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[int64]*entities.Account),
		nextID:   1,
		Calls:    make([]MockCall, 0),
	}
}

// AddAccount seeds the in-memory store
func (m *MockAccountRepository) AddAccount(account *entities.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account.ID == 0 {
		account.ID = m.nextID
	}
	if account.ID >= m.nextID {
		m.nextID = account.ID + 1
	}
	m.accounts[account.ID] = account
}

// Account returns the stored account by id, nil when absent
func (m *MockAccountRepository) Account(id int64) *entities.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[id]
}

// CallCount returns how many times the named method was invoked
func (m *MockAccountRepository) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, c := range m.Calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

func (m *MockAccountRepository) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id int64) (*entities.Account, error) {
	m.record("GetByID", id)

	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func (m *MockAccountRepository) GetByUserAndAddress(ctx context.Context, userID int64, address string) (*entities.Account, error) {
	m.record("GetByUserAndAddress", userID, address)

	if m.GetByUserAndAddrFunc != nil {
		return m.GetByUserAndAddrFunc(ctx, userID, address)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, account := range m.accounts {
		if account.UserID == userID && account.Address == address {
			copied := *account
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MockAccountRepository) ListByUser(ctx context.Context, userID int64) ([]entities.Account, error) {
	m.record("ListByUser", userID)

	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]entities.Account, 0)
	for _, account := range m.accounts {
		if account.UserID == userID {
			result = append(result, *account)
		}
	}
	return result, nil
}

func (m *MockAccountRepository) ListActiveByUser(ctx context.Context, userID int64) ([]entities.Account, error) {
	m.record("ListActiveByUser", userID)

	if m.ListActiveByUserFunc != nil {
		return m.ListActiveByUserFunc(ctx, userID)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]entities.Account, 0)
	for _, account := range m.accounts {
		if account.UserID == userID && account.Status == entities.StatusActive {
			result = append(result, *account)
		}
	}
	return result, nil
}

func (m *MockAccountRepository) Create(ctx context.Context, account *entities.Account) error {
	m.record("Create", account.UserID, account.Address)

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	account.ID = m.nextID
	m.nextID++
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *MockAccountRepository) TrySetSyncing(ctx context.Context, id int64) (bool, error) {
	m.record("TrySetSyncing", id)

	if m.TrySetSyncingFunc != nil {
		return m.TrySetSyncingFunc(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return false, nil
	}
	if account.SyncStatusValue() == entities.SyncSyncing {
		return false, nil
	}
	syncing := entities.SyncSyncing
	account.SyncStatus = &syncing
	return true, nil
}

func (m *MockAccountRepository) SetSyncStatus(ctx context.Context, id int64, status string) error {
	m.record("SetSyncStatus", id, status)

	if m.SetSyncStatusFunc != nil {
		return m.SetSyncStatusFunc(ctx, id, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id]; ok {
		s := status
		account.SyncStatus = &s
	}
	return nil
}

func (m *MockAccountRepository) UpdateChain(ctx context.Context, id int64, chain, accountType string) error {
	m.record("UpdateChain", id, chain, accountType)

	if m.UpdateChainFunc != nil {
		return m.UpdateChainFunc(ctx, id, chain, accountType)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id]; ok {
		account.Chain = chain
		account.AccountType = accountType
	}
	return nil
}

func (m *MockAccountRepository) UpdateSyncSuccess(ctx context.Context, id int64, result repositories.SyncResult) error {
	m.record("UpdateSyncSuccess", id, result)

	if m.UpdateSyncSuccessFunc != nil {
		return m.UpdateSyncSuccessFunc(ctx, id, result)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id]; ok {
		synced := entities.SyncSynced
		account.SyncStatus = &synced
		account.SyncError = nil
		account.Chain = result.Chain
		account.BalanceUSD = result.BalanceUSD
		account.WalletBalanceUSD = result.WalletBalanceUSD
		account.ProtocolBalanceUSD = result.ProtocolBalanceUSD
		payload := result.PositionsPayload
		account.DeFiPositions = &payload
		syncedAt := result.SyncedAt
		account.LastSyncedAt = &syncedAt
	}
	return nil
}

func (m *MockAccountRepository) UpdateSyncFailure(ctx context.Context, id int64, message string) error {
	m.record("UpdateSyncFailure", id, message)

	if m.UpdateSyncFailureFunc != nil {
		return m.UpdateSyncFailureFunc(ctx, id, message)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id]; ok {
		errStatus := entities.SyncError
		account.SyncStatus = &errStatus
		msg := message
		account.SyncError = &msg
	}
	return nil
}

// MockChainProvider is a mock implementation of the per-chain RPC provider
type MockChainProvider struct {
	ChainName string

	GetBalanceFunc       func(ctx context.Context, address string) (float64, error)
	GetTokenBalancesFunc func(ctx context.Context, address string) ([]providers.TokenBalance, error)
	GetTokenMetadataFunc func(ctx context.Context, contractAddress string) (*providers.TokenMetadata, error)
}

func (m *MockChainProvider) Chain() string {
	return m.ChainName
}

func (m *MockChainProvider) GetBalance(ctx context.Context, address string) (float64, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc(ctx, address)
	}
	return 0, nil
}

func (m *MockChainProvider) GetTokenBalances(ctx context.Context, address string) ([]providers.TokenBalance, error) {
	if m.GetTokenBalancesFunc != nil {
		return m.GetTokenBalancesFunc(ctx, address)
	}
	return nil, nil
}

func (m *MockChainProvider) GetTokenMetadata(ctx context.Context, contractAddress string) (*providers.TokenMetadata, error) {
	if m.GetTokenMetadataFunc != nil {
		return m.GetTokenMetadataFunc(ctx, contractAddress)
	}
	return &providers.TokenMetadata{Decimals: 18}, nil
}

// MockPriceProvider is a mock implementation of the price source
type MockPriceProvider struct {
	mu sync.Mutex

	GetTokenPriceFunc  func(ctx context.Context, platform, contractAddress string) (float64, error)
	GetNativePriceFunc func(ctx context.Context, coinID string) (float64, error)

	// Call tracking
	TokenPriceCalls  []string
	NativePriceCalls []string
}

func (m *MockPriceProvider) GetTokenPrice(ctx context.Context, platform, contractAddress string) (float64, error) {
	m.mu.Lock()
	m.TokenPriceCalls = append(m.TokenPriceCalls, contractAddress)
	m.mu.Unlock()

	if m.GetTokenPriceFunc != nil {
		return m.GetTokenPriceFunc(ctx, platform, contractAddress)
	}
	return 0, nil
}

func (m *MockPriceProvider) GetNativePrice(ctx context.Context, coinID string) (float64, error) {
	m.mu.Lock()
	m.NativePriceCalls = append(m.NativePriceCalls, coinID)
	m.mu.Unlock()

	if m.GetNativePriceFunc != nil {
		return m.GetNativePriceFunc(ctx, coinID)
	}
	return 0, nil
}

// MockPortfolioProvider is a mock implementation of the primary portfolio
// source
type MockPortfolioProvider struct {
	GetPortfolioBreakdownFunc func(ctx context.Context, address string) (*providers.PortfolioBreakdown, error)

	// Call tracking
	mu    sync.Mutex
	Calls []string
}

func (m *MockPortfolioProvider) GetPortfolioBreakdown(ctx context.Context, address string) (*providers.PortfolioBreakdown, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, address)
	m.mu.Unlock()

	if m.GetPortfolioBreakdownFunc != nil {
		return m.GetPortfolioBreakdownFunc(ctx, address)
	}
	return &providers.PortfolioBreakdown{}, nil
}

// MockScheduler is a mock implementation of the enrichment scheduler
type MockScheduler struct {
	ScheduleFunc func(ctx context.Context, accountID int64) error

	mu        sync.Mutex
	Scheduled []int64
}

func (m *MockScheduler) Schedule(ctx context.Context, accountID int64) error {
	m.mu.Lock()
	m.Scheduled = append(m.Scheduled, accountID)
	m.mu.Unlock()

	if m.ScheduleFunc != nil {
		return m.ScheduleFunc(ctx, accountID)
	}
	return nil
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mu sync.RWMutex

	Healthy bool
	Error   error
	Calls   []MockCall
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	var err error
	if !healthy {
		err = errors.New("health check failed")
	}
	return &MockHealthChecker{
		Healthy: healthy,
		Error:   err,
		Calls:   make([]MockCall, 0),
	}
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "HealthCheck", Args: nil})
	m.mu.Unlock()

	return m.Error
}
