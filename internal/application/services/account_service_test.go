package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
	"github.com/bimakw/portfolio-enricher/internal/testutil"
)

func setupAccountServiceTest() (*AccountService, *testutil.MockAccountRepository, *testutil.MockScheduler) {
	repo := testutil.NewMockAccountRepository()
	scheduler := &testutil.MockScheduler{}

	enrichment := NewEnrichmentService(repo, nil, nil, scheduler, enricherTestConfig(), zap.NewNop())
	service := NewAccountService(repo, enrichment, zap.NewNop())

	return service, repo, scheduler
}

func TestAccountService_CreateAccount(t *testing.T) {
	service, repo, scheduler := setupAccountServiceTest()

	account, err := service.CreateAccount(context.Background(), 1, testutil.EVMAddress, "Main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if account.ID == 0 {
		t.Error("expected id assigned")
	}
	if account.Chain != entities.ChainEthereum {
		t.Errorf("expected classified as ethereum, got %s", account.Chain)
	}
	if account.Status != entities.StatusActive {
		t.Errorf("expected active status, got %s", account.Status)
	}
	if account.SyncStatusValue() != entities.SyncPending {
		t.Errorf("expected pending sync status, got %s", account.SyncStatusValue())
	}
	if len(scheduler.Scheduled) != 1 {
		t.Errorf("expected initial enrichment scheduled, got %d", len(scheduler.Scheduled))
	}
	if repo.CallCount("Create") != 1 {
		t.Errorf("expected 1 create call, got %d", repo.CallCount("Create"))
	}
}

func TestAccountService_CreateAccount_TrimsAddress(t *testing.T) {
	service, _, _ := setupAccountServiceTest()

	account, err := service.CreateAccount(context.Background(), 1, "  "+testutil.EVMAddress+"  ", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.Address != testutil.EVMAddress {
		t.Errorf("expected trimmed address, got %q", account.Address)
	}
}

func TestAccountService_CreateAccount_EmptyAddress(t *testing.T) {
	service, _, _ := setupAccountServiceTest()

	if _, err := service.CreateAccount(context.Background(), 1, "   ", ""); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestAccountService_CreateAccount_Duplicate(t *testing.T) {
	service, repo, _ := setupAccountServiceTest()

	repo.AddAccount(testutil.CreateTestAccount(
		testutil.WithUserID(1),
		testutil.WithAddress(testutil.EVMAddress),
	))

	_, err := service.CreateAccount(context.Background(), 1, testutil.EVMAddress, "")
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestAccountService_CreateAccount_SchedulingFailureIsNotFatal(t *testing.T) {
	service, _, scheduler := setupAccountServiceTest()

	scheduler.ScheduleFunc = func(ctx context.Context, accountID int64) error {
		return errors.New("redis down")
	}

	account, err := service.CreateAccount(context.Background(), 1, testutil.EVMAddress, "")
	if err != nil {
		t.Fatalf("account creation must survive scheduling failure, got %v", err)
	}
	if account == nil {
		t.Fatal("expected account")
	}
}

func TestAccountService_ListAccounts(t *testing.T) {
	service, repo, _ := setupAccountServiceTest()

	repo.AddAccount(testutil.CreateTestAccount(testutil.WithID(1), testutil.WithUserID(1)))
	repo.AddAccount(testutil.CreateTestAccount(
		testutil.WithID(2),
		testutil.WithUserID(1),
		testutil.WithAddress(testutil.EVMAddress2),
	))
	repo.AddAccount(testutil.CreateTestAccount(testutil.WithID(3), testutil.WithUserID(2)))

	accounts, err := service.ListAccounts(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts) != 2 {
		t.Errorf("expected 2 accounts for user 1, got %d", len(accounts))
	}
}

func TestAccountService_TriggerSync(t *testing.T) {
	service, repo, scheduler := setupAccountServiceTest()

	repo.AddAccount(testutil.CreateTestAccount(
		testutil.WithID(1),
		testutil.WithSyncStatus(entities.SyncSynced),
	))

	if err := service.TriggerSync(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scheduler.Scheduled) != 1 {
		t.Errorf("expected 1 scheduled, got %d", len(scheduler.Scheduled))
	}
}

func TestAccountService_TriggerSync_NotFound(t *testing.T) {
	service, _, _ := setupAccountServiceTest()

	err := service.TriggerSync(context.Background(), 99)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountService_TriggerSync_AlreadySyncing(t *testing.T) {
	service, repo, _ := setupAccountServiceTest()

	repo.AddAccount(testutil.CreateTestAccount(
		testutil.WithID(1),
		testutil.WithSyncStatus(entities.SyncSyncing),
	))

	err := service.TriggerSync(context.Background(), 1)
	if !errors.Is(err, ErrAlreadySyncing) {
		t.Fatalf("expected ErrAlreadySyncing, got %v", err)
	}
}
