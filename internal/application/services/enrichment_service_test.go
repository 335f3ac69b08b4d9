package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/portfolio-enricher/internal/config"
	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
	"github.com/bimakw/portfolio-enricher/internal/infrastructure/providers"
	"github.com/bimakw/portfolio-enricher/internal/testutil"
)

func enricherTestConfig() config.EnricherConfig {
	return config.EnricherConfig{
		PriceCacheTTL:   5 * time.Minute,
		PriceBatchLimit: 10,
		PriceBatchDelay: time.Millisecond,
		ScanPriceLimit:  20,
		SyncStaleAfter:  5 * time.Minute,
	}
}

func setupEnrichmentServiceTest(portfolio PortfolioProvider, scanners []*ChainScanner) (*EnrichmentService, *testutil.MockAccountRepository, *testutil.MockScheduler) {
	repo := testutil.NewMockAccountRepository()
	scheduler := &testutil.MockScheduler{}

	service := NewEnrichmentService(repo, portfolio, scanners, scheduler, enricherTestConfig(), zap.NewNop())
	return service, repo, scheduler
}

func TestEnrichmentService_RequestSync(t *testing.T) {
	service, repo, scheduler := setupEnrichmentServiceTest(nil, nil)
	ctx := context.Background()

	account := testutil.CreateTestAccount(testutil.WithID(1))
	repo.AddAccount(account)

	if err := service.RequestSync(ctx, account); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scheduler.Scheduled) != 1 || scheduler.Scheduled[0] != 1 {
		t.Errorf("expected account 1 scheduled, got %v", scheduler.Scheduled)
	}
	if got := repo.Account(1).SyncStatusValue(); got != entities.SyncPending {
		t.Errorf("expected pending status, got %s", got)
	}
}

func TestEnrichmentService_RequestSync_RejectsWhileSyncing(t *testing.T) {
	service, repo, scheduler := setupEnrichmentServiceTest(nil, nil)

	account := testutil.CreateTestAccount(
		testutil.WithID(1),
		testutil.WithSyncStatus(entities.SyncSyncing),
	)
	repo.AddAccount(account)

	err := service.RequestSync(context.Background(), account)
	if !errors.Is(err, ErrAlreadySyncing) {
		t.Fatalf("expected ErrAlreadySyncing, got %v", err)
	}
	if len(scheduler.Scheduled) != 0 {
		t.Error("expected nothing scheduled")
	}
}

func TestEnrichmentService_SyncIfNeeded(t *testing.T) {
	service, repo, scheduler := setupEnrichmentServiceTest(nil, nil)
	ctx := context.Background()

	fresh := testutil.CreateTestAccount(
		testutil.WithID(1),
		testutil.WithSyncStatus(entities.SyncSynced),
		testutil.WithLastSyncedAt(time.Now()),
	)
	repo.AddAccount(fresh)

	enqueued, err := service.SyncIfNeeded(ctx, fresh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enqueued {
		t.Error("expected fresh account to be skipped")
	}

	stale := testutil.CreateTestAccount(
		testutil.WithID(2),
		testutil.WithSyncStatus(entities.SyncSynced),
		testutil.WithLastSyncedAt(time.Now().Add(-time.Hour)),
	)
	repo.AddAccount(stale)

	enqueued, err = service.SyncIfNeeded(ctx, stale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !enqueued {
		t.Error("expected stale account to be enqueued")
	}
	if len(scheduler.Scheduled) != 1 {
		t.Errorf("expected 1 scheduled, got %d", len(scheduler.Scheduled))
	}
}

func TestEnrichmentService_Enrich_MissingAccount(t *testing.T) {
	service, repo, _ := setupEnrichmentServiceTest(nil, nil)

	if err := service.Enrich(context.Background(), 99); err != nil {
		t.Fatalf("expected missing account to be skipped without error, got %v", err)
	}
	if repo.CallCount("TrySetSyncing") != 0 {
		t.Error("expected no claim attempt for missing account")
	}
}

func TestEnrichmentService_Enrich_RejectsConcurrentRun(t *testing.T) {
	service, repo, _ := setupEnrichmentServiceTest(nil, nil)

	account := testutil.CreateTestAccount(
		testutil.WithID(1),
		testutil.WithSyncStatus(entities.SyncSyncing),
	)
	repo.AddAccount(account)

	err := service.Enrich(context.Background(), 1)
	if !errors.Is(err, ErrAlreadySyncing) {
		t.Fatalf("expected ErrAlreadySyncing, got %v", err)
	}
	if repo.CallCount("UpdateSyncFailure") != 0 {
		t.Error("rejected run must not record a failure")
	}
}

func TestEnrichmentService_Enrich_PrimaryProviderSuccess(t *testing.T) {
	hr := 2.5
	portfolio := &testutil.MockPortfolioProvider{
		GetPortfolioBreakdownFunc: func(ctx context.Context, address string) (*providers.PortfolioBreakdown, error) {
			return &providers.PortfolioBreakdown{
				TotalUSD:    150,
				WalletUSD:   50,
				ProtocolUSD: 100,
				Protocols: []providers.DebankProtocol{
					{
						ID:   "aave_v3",
						Name: "Aave V3",
						PortfolioItems: []providers.DebankPortfolioItem{
							{
								Chain: "ethereum",
								Detail: providers.DebankItemDetail{
									HealthRate: &hr,
									SupplyTokens: []providers.DebankTokenAmount{
										{Symbol: "USDC", Name: "USD Coin", Amount: 100, Price: 1},
									},
								},
							},
						},
					},
				},
			}, nil
		},
	}

	service, repo, _ := setupEnrichmentServiceTest(portfolio, nil)

	account := testutil.CreateTestAccount(
		testutil.WithID(1),
		testutil.WithSyncStatus(entities.SyncPending),
	)
	repo.AddAccount(account)

	if err := service.Enrich(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.Account(1)
	if stored.SyncStatusValue() != entities.SyncSynced {
		t.Errorf("expected synced status, got %s", stored.SyncStatusValue())
	}
	if stored.BalanceUSD != 150 || stored.WalletBalanceUSD != 50 || stored.ProtocolBalanceUSD != 100 {
		t.Errorf("unexpected balances: %f %f %f", stored.BalanceUSD, stored.WalletBalanceUSD, stored.ProtocolBalanceUSD)
	}
	if stored.LastSyncedAt == nil {
		t.Error("expected last_synced_at set")
	}

	groups, err := entities.DecodePositionsPayload(stored.DeFiPositions)
	if err != nil {
		t.Fatalf("stored payload does not decode: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "Aave V3" {
		t.Fatalf("unexpected stored groups: %+v", groups)
	}
	if groups[0].HealthRate == nil || *groups[0].HealthRate != 2.5 {
		t.Error("expected health rate in stored payload")
	}
}

func TestEnrichmentService_Enrich_FallsBackToChainScan(t *testing.T) {
	portfolio := &testutil.MockPortfolioProvider{
		GetPortfolioBreakdownFunc: func(ctx context.Context, address string) (*providers.PortfolioBreakdown, error) {
			return nil, errors.New("provider down")
		},
	}

	chainProvider := &testutil.MockChainProvider{ChainName: "ethereum"}
	chainProvider.GetBalanceFunc = func(ctx context.Context, address string) (float64, error) {
		return 1.0, nil
	}

	priceProvider := &testutil.MockPriceProvider{
		GetNativePriceFunc: func(ctx context.Context, coinID string) (float64, error) {
			return 2000, nil
		},
	}
	prices := NewPriceService(priceProvider, enricherTestConfig(), zap.NewNop())
	scanner := NewChainScanner(chainProvider, prices, 20, zap.NewNop())

	service, repo, _ := setupEnrichmentServiceTest(portfolio, []*ChainScanner{scanner})

	account := testutil.CreateTestAccount(
		testutil.WithID(1),
		testutil.WithSyncStatus(entities.SyncPending),
	)
	repo.AddAccount(account)

	if err := service.Enrich(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.Account(1)
	if stored.SyncStatusValue() != entities.SyncSynced {
		t.Errorf("expected synced status, got %s", stored.SyncStatusValue())
	}
	if stored.WalletBalanceUSD != 2000 {
		t.Errorf("expected wallet 2000 from fallback scan, got %f", stored.WalletBalanceUSD)
	}
	if stored.BalanceUSD != 2000 {
		t.Errorf("expected total 2000, got %f", stored.BalanceUSD)
	}
}

func TestEnrichmentService_Enrich_FailedChainSkipped(t *testing.T) {
	healthy := &testutil.MockChainProvider{ChainName: "ethereum"}
	healthy.GetBalanceFunc = func(ctx context.Context, address string) (float64, error) {
		return 1.0, nil
	}
	broken := &testutil.MockChainProvider{ChainName: "base"}
	broken.GetBalanceFunc = func(ctx context.Context, address string) (float64, error) {
		return 0, errors.New("rpc unavailable")
	}

	priceProvider := &testutil.MockPriceProvider{
		GetNativePriceFunc: func(ctx context.Context, coinID string) (float64, error) {
			return 1000, nil
		},
	}
	prices := NewPriceService(priceProvider, enricherTestConfig(), zap.NewNop())
	scanners := []*ChainScanner{
		NewChainScanner(healthy, prices, 20, zap.NewNop()),
		NewChainScanner(broken, prices, 20, zap.NewNop()),
	}

	service, repo, _ := setupEnrichmentServiceTest(nil, scanners)

	account := testutil.CreateTestAccount(
		testutil.WithID(1),
		testutil.WithSyncStatus(entities.SyncPending),
	)
	repo.AddAccount(account)

	if err := service.Enrich(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.Account(1)
	if stored.WalletBalanceUSD != 1000 {
		t.Errorf("expected only healthy chain counted, got %f", stored.WalletBalanceUSD)
	}
}

func TestEnrichmentService_Enrich_FailurePreservesBalances(t *testing.T) {
	service, repo, _ := setupEnrichmentServiceTest(nil, nil)

	account := testutil.CreateTestAccount(
		testutil.WithID(1),
		testutil.WithSyncStatus(entities.SyncPending),
		testutil.WithBalances(1000, 400, 600),
	)
	repo.AddAccount(account)

	repo.UpdateChainFunc = func(ctx context.Context, id int64, chain, accountType string) error {
		return errors.New("db unavailable")
	}

	if err := service.Enrich(context.Background(), 1); err == nil {
		t.Fatal("expected error")
	}

	stored := repo.Account(1)
	if stored.SyncStatusValue() != entities.SyncError {
		t.Errorf("expected error status, got %s", stored.SyncStatusValue())
	}
	if stored.SyncError == nil {
		t.Fatal("expected sync error message")
	}
	if stored.BalanceUSD != 1000 || stored.WalletBalanceUSD != 400 || stored.ProtocolBalanceUSD != 600 {
		t.Error("failure must not clobber previously synced balances")
	}
}

func TestEnrichmentService_Enrich_SolanaZeroFill(t *testing.T) {
	service, repo, _ := setupEnrichmentServiceTest(nil, nil)

	account := testutil.CreateTestAccount(
		testutil.WithID(1),
		testutil.WithAddress(testutil.SolanaAddress),
		testutil.WithSyncStatus(entities.SyncPending),
	)
	repo.AddAccount(account)

	if err := service.Enrich(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.Account(1)
	if stored.SyncStatusValue() != entities.SyncSynced {
		t.Errorf("expected synced status, got %s", stored.SyncStatusValue())
	}
	if stored.Chain != entities.ChainSolana {
		t.Errorf("expected solana chain, got %s", stored.Chain)
	}
	if stored.BalanceUSD != 0 {
		t.Errorf("expected zero balance, got %f", stored.BalanceUSD)
	}
	if stored.DeFiPositions == nil || *stored.DeFiPositions != "[]" {
		t.Error("expected empty positions payload")
	}
}

func TestMergeProtocolGroups(t *testing.T) {
	dst := []entities.RawProtocolGroup{
		{Name: "Aave", Positions: []entities.RawPosition{{TokenSymbol: "aUSDC"}}},
	}
	src := []entities.RawProtocolGroup{
		{Name: "Aave", Positions: []entities.RawPosition{{TokenSymbol: "aDAI"}}},
		{Name: "Curve", Positions: []entities.RawPosition{{TokenSymbol: "steCRV-LP"}}},
	}

	merged := mergeProtocolGroups(dst, src)

	if len(merged) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(merged))
	}
	if merged[0].Name != "Aave" || len(merged[0].Positions) != 2 {
		t.Errorf("expected Aave positions concatenated, got %+v", merged[0])
	}
	if merged[1].Name != "Curve" {
		t.Errorf("expected Curve appended, got %s", merged[1].Name)
	}
}

func TestBuildGroupsFromBreakdown(t *testing.T) {
	breakdown := &providers.PortfolioBreakdown{
		Protocols: []providers.DebankProtocol{
			{
				ID:      "aave_v3",
				Name:    "Aave V3",
				SiteURL: "https://app.aave.com",
				PortfolioItems: []providers.DebankPortfolioItem{
					{
						Chain: "ethereum",
						Detail: providers.DebankItemDetail{
							SupplyTokens: []providers.DebankTokenAmount{
								{Symbol: "USDC", Name: "USD Coin", Amount: 100, Price: 1},
							},
							BorrowTokens: []providers.DebankTokenAmount{
								{Symbol: "DAI", Name: "Dai", Amount: 50, Price: 1},
							},
						},
					},
				},
			},
			{
				ID:   "empty",
				Name: "Empty Protocol",
			},
		},
	}

	groups := buildGroupsFromBreakdown(breakdown)

	if len(groups) != 1 {
		t.Fatalf("expected empty protocol dropped, got %d groups", len(groups))
	}

	g := groups[0]
	if g.Type != "lending" {
		t.Errorf("expected lending type from aave site url, got %s", g.Type)
	}
	if len(g.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(g.Positions))
	}
	if g.Positions[0].UsdValue != 100 || g.Positions[0].IsDebt {
		t.Errorf("unexpected supply position: %+v", g.Positions[0])
	}
	if g.Positions[1].UsdValue != -50 || !g.Positions[1].IsDebt {
		t.Errorf("expected borrow as negative debt, got %+v", g.Positions[1])
	}
}

func TestBuildGroupsFromBreakdown_SyntheticDebt(t *testing.T) {
	breakdown := &providers.PortfolioBreakdown{
		Protocols: []providers.DebankProtocol{
			{
				ID:   "obscure",
				Name: "Obscure Lender",
				PortfolioItems: []providers.DebankPortfolioItem{
					{
						Name:  "Lending",
						Chain: "ethereum",
						Stats: providers.DebankItemStats{DebtUsdValue: 250},
					},
				},
			},
		},
	}

	groups := buildGroupsFromBreakdown(breakdown)

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	positions := groups[0].Positions
	if len(positions) != 1 {
		t.Fatalf("expected synthetic debt position, got %d positions", len(positions))
	}
	if positions[0].UsdValue != -250 || !positions[0].IsDebt {
		t.Errorf("expected synthetic debt of -250, got %+v", positions[0])
	}
}
