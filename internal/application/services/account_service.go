package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
	"github.com/bimakw/portfolio-enricher/internal/domain/repositories"
)

var (
	// ErrAccountNotFound indicates the requested account does not exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists indicates the user already tracks this address
	ErrAccountExists = errors.New("account already exists")
)

// AccountService provides the account lifecycle surface: create, list, and
// sync triggering
type AccountService struct {
	accountRepo repositories.AccountRepository
	enrichment  *EnrichmentService
	logger      *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(
	accountRepo repositories.AccountRepository,
	enrichment *EnrichmentService,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		enrichment:  enrichment,
		logger:      logger,
	}
}

// CreateAccount registers an address for a user and enqueues its first
// enrichment run
func (s *AccountService) CreateAccount(ctx context.Context, userID int64, address, name string) (*entities.Account, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}

	existing, err := s.accountRepo.GetByUserAndAddress(ctx, userID, address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAccountExists
	}

	chain, accountType := ClassifyAddress(address)

	pending := entities.SyncPending
	account := &entities.Account{
		UserID:      userID,
		Address:     address,
		Name:        name,
		Chain:       chain,
		AccountType: accountType,
		Status:      entities.StatusActive,
		SyncStatus:  &pending,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	if err := s.enrichment.RequestSync(ctx, account); err != nil {
		// The account exists either way; the next sync trigger retries
		s.logger.Warn("Failed to enqueue initial enrichment",
			zap.Int64("account_id", account.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("Account created",
		zap.Int64("account_id", account.ID),
		zap.Int64("user_id", userID),
		zap.String("chain", chain),
	)

	return account, nil
}

// ListAccounts returns all accounts for a user
func (s *AccountService) ListAccounts(ctx context.Context, userID int64) ([]entities.Account, error) {
	return s.accountRepo.ListByUser(ctx, userID)
}

// TriggerSync enqueues an enrichment run for one account. Returns
// ErrAlreadySyncing while a run is in flight.
func (s *AccountService) TriggerSync(ctx context.Context, accountID int64) error {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	return s.enrichment.RequestSync(ctx, account)
}
