package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/portfolio-enricher/internal/config"
	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
	"github.com/bimakw/portfolio-enricher/internal/domain/repositories"
	"github.com/bimakw/portfolio-enricher/internal/infrastructure/providers"
)

// ErrAlreadySyncing rejects a second enrichment trigger while a run holds
// the syncing state
var ErrAlreadySyncing = errors.New("enrichment already in progress")

// PortfolioProvider is the primary portfolio data collaborator
type PortfolioProvider interface {
	GetPortfolioBreakdown(ctx context.Context, address string) (*providers.PortfolioBreakdown, error)
}

// Scheduler dispatches enrichment runs, fire-and-forget with at-least-once
// delivery
type Scheduler interface {
	Schedule(ctx context.Context, accountID int64) error
}

// EnrichmentService drives the account enrichment state machine:
// pending -> syncing -> synced|error
type EnrichmentService struct {
	accountRepo repositories.AccountRepository
	portfolio   PortfolioProvider
	scanners    []*ChainScanner
	scheduler   Scheduler
	cfg         config.EnricherConfig
	logger      *zap.Logger
}

// NewEnrichmentService creates an enrichment service. The portfolio provider
// may be nil, in which case every ethereum enrichment takes the chain-scan
// path.
func NewEnrichmentService(
	accountRepo repositories.AccountRepository,
	portfolio PortfolioProvider,
	scanners []*ChainScanner,
	scheduler Scheduler,
	cfg config.EnricherConfig,
	logger *zap.Logger,
) *EnrichmentService {
	return &EnrichmentService{
		accountRepo: accountRepo,
		portfolio:   portfolio,
		scanners:    scanners,
		scheduler:   scheduler,
		cfg:         cfg,
		logger:      logger,
	}
}

// RequestSync enqueues an enrichment run for an account. Rejected while the
// account is already syncing.
func (s *EnrichmentService) RequestSync(ctx context.Context, account *entities.Account) error {
	if account.IsSyncing() {
		return ErrAlreadySyncing
	}

	if err := s.scheduler.Schedule(ctx, account.ID); err != nil {
		return fmt.Errorf("failed to schedule enrichment: %w", err)
	}

	if err := s.accountRepo.SetSyncStatus(ctx, account.ID, entities.SyncPending); err != nil {
		return fmt.Errorf("failed to mark account pending: %w", err)
	}

	return nil
}

// SyncIfNeeded enqueues enrichment only when the account is stale or in a
// retriable state. Returns whether a run was enqueued.
func (s *EnrichmentService) SyncIfNeeded(ctx context.Context, account *entities.Account) (bool, error) {
	if !account.NeedsSync(time.Now(), s.cfg.SyncStaleAfter) {
		return false, nil
	}

	if err := s.RequestSync(ctx, account); err != nil {
		if errors.Is(err, ErrAlreadySyncing) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// Enrich executes one enrichment run for an account. The syncing claim is a
// single atomic conditional update, so a concurrent run observing the claim
// is rejected without touching state.
func (s *EnrichmentService) Enrich(ctx context.Context, accountID int64) error {
	start := time.Now()

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load account %d: %w", accountID, err)
	}
	if account == nil {
		// Deleted between scheduling and execution
		s.logger.Warn("Skipping enrichment for missing account", zap.Int64("account_id", accountID))
		return nil
	}

	claimed, err := s.accountRepo.TrySetSyncing(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to claim account %d: %w", accountID, err)
	}
	if !claimed {
		observeEnrichment("rejected", time.Since(start))
		return ErrAlreadySyncing
	}

	if err := s.enrich(ctx, account); err != nil {
		s.logger.Error("Account enrichment failed",
			zap.Int64("account_id", accountID),
			zap.String("address", account.Address),
			zap.Error(err),
		)

		if updateErr := s.accountRepo.UpdateSyncFailure(ctx, accountID, err.Error()); updateErr != nil {
			s.logger.Error("Failed to persist sync failure",
				zap.Int64("account_id", accountID),
				zap.Error(updateErr),
			)
		}

		observeEnrichment("error", time.Since(start))
		return err
	}

	observeEnrichment("synced", time.Since(start))
	return nil
}

// enrich classifies the address, fetches the portfolio, and persists the
// result. Any error bubbles to the caller which records the error state;
// prior balances stay untouched on failure.
func (s *EnrichmentService) enrich(ctx context.Context, account *entities.Account) error {
	chain, accountType := ClassifyAddress(account.Address)
	if err := s.accountRepo.UpdateChain(ctx, account.ID, chain, accountType); err != nil {
		return fmt.Errorf("failed to persist classification: %w", err)
	}

	var result repositories.SyncResult
	result.Chain = chain
	result.SyncedAt = time.Now().UTC()

	switch chain {
	case entities.ChainEthereum:
		wallet, protocol, total, groups, err := s.fetchEVMPortfolio(ctx, account.Address)
		if err != nil {
			return err
		}

		payload, err := entities.EncodePositionsPayload(groups)
		if err != nil {
			return err
		}

		result.BalanceUSD = roundTo(total, 2)
		result.WalletBalanceUSD = roundTo(wallet, 2)
		result.ProtocolBalanceUSD = roundTo(protocol, 2)
		result.PositionsPayload = payload

	case entities.ChainSolana:
		// Solana balances not yet implemented; zero-fill, not an error
		s.logger.Info("Solana balance fetching not yet implemented",
			zap.Int64("account_id", account.ID),
		)
		result.PositionsPayload = "[]"

	default:
		result.PositionsPayload = "[]"
	}

	if err := s.accountRepo.UpdateSyncSuccess(ctx, account.ID, result); err != nil {
		return fmt.Errorf("failed to persist sync result: %w", err)
	}

	s.logger.Info("Account enriched",
		zap.Int64("account_id", account.ID),
		zap.String("chain", chain),
		zap.Float64("balance_usd", result.BalanceUSD),
		zap.Float64("wallet_usd", result.WalletBalanceUSD),
		zap.Float64("protocol_usd", result.ProtocolBalanceUSD),
	)

	return nil
}

// fetchEVMPortfolio queries the primary provider, falling back to the
// multi-chain scan when the provider fails or is not configured
func (s *EnrichmentService) fetchEVMPortfolio(ctx context.Context, address string) (wallet, protocol, total float64, groups []entities.RawProtocolGroup, err error) {
	if s.portfolio != nil {
		breakdown, perr := s.portfolio.GetPortfolioBreakdown(ctx, address)
		if perr == nil && breakdown != nil {
			groups = buildGroupsFromBreakdown(breakdown)
			return breakdown.WalletUSD, breakdown.ProtocolUSD, breakdown.TotalUSD, groups, nil
		}

		s.logger.Warn("Primary provider unavailable, falling back to chain scan",
			zap.String("address", address),
			zap.Error(perr),
		)
	}

	return s.scanFallbackChains(ctx, address)
}

// scanFallbackChains scans every configured EVM chain concurrently and joins
// the results only after all scans return. A failed chain is logged and
// contributes zero; totals are never persisted partially.
func (s *EnrichmentService) scanFallbackChains(ctx context.Context, address string) (wallet, protocol, total float64, groups []entities.RawProtocolGroup, err error) {
	results := make([]*ScanResult, len(s.scanners))

	g, gctx := errgroup.WithContext(ctx)
	for i, scanner := range s.scanners {
		i, scanner := i, scanner
		g.Go(func() error {
			res, scanErr := scanner.Scan(gctx, address)
			if scanErr != nil {
				s.logger.Warn("Chain scan failed, skipping chain",
					zap.String("chain", scanner.provider.Chain()),
					zap.String("address", address),
					zap.Error(scanErr),
				)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, 0, nil, err
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		wallet += res.WalletUSD
		protocol += res.ProtocolUSD
		groups = mergeProtocolGroups(groups, res.Groups)
	}

	return wallet, protocol, wallet + protocol, groups, nil
}

// mergeProtocolGroups concatenates position lists under the same protocol
// name, preserving first-seen group order. No deduplication.
func mergeProtocolGroups(dst, src []entities.RawProtocolGroup) []entities.RawProtocolGroup {
	index := make(map[string]int, len(dst))
	for i, g := range dst {
		index[g.Name] = i
	}

	for _, g := range src {
		if i, ok := index[g.Name]; ok {
			dst[i].Positions = append(dst[i].Positions, g.Positions...)
			continue
		}
		index[g.Name] = len(dst)
		dst = append(dst, g)
	}

	return dst
}

// buildGroupsFromBreakdown converts primary-provider protocol positions into
// the stored payload shape. Borrow and debt token lists become negative
// positions; a protocol reporting only an aggregate debt value gets a
// synthetic debt position so liabilities never silently disappear.
func buildGroupsFromBreakdown(breakdown *providers.PortfolioBreakdown) []entities.RawProtocolGroup {
	groups := make([]entities.RawProtocolGroup, 0, len(breakdown.Protocols))

	for _, protocol := range breakdown.Protocols {
		protocolType := "defi"
		if strings.Contains(protocol.SiteURL, "aave") {
			protocolType = "lending"
		}

		group := entities.RawProtocolGroup{
			ID:      protocol.ID,
			Name:    protocol.Name,
			Type:    protocolType,
			LogoURL: protocol.LogoURL,
		}

		var protocolValue float64

		for _, item := range protocol.PortfolioItems {
			itemChain := item.Chain
			if itemChain == "" {
				itemChain = entities.ChainUnknown
			}

			if group.HealthRate == nil && item.Detail.HealthRate != nil {
				group.HealthRate = item.Detail.HealthRate
			}

			for _, token := range item.Detail.SupplyTokens {
				value := token.Amount * token.Price
				protocolValue += value

				group.Positions = append(group.Positions, entities.RawPosition{
					TokenSymbol: tokenSymbol(token),
					TokenName:   tokenName(token, protocol.Name),
					Balance:     token.Amount,
					UsdValue:    roundTo(value, 2),
					Chain:       itemChain,
					IsDebt:      false,
					LogoURL:     token.LogoURL,
				})
			}

			borrowed := append(append([]providers.DebankTokenAmount{}, item.Detail.BorrowTokens...), item.Detail.DebtTokens...)
			for _, token := range borrowed {
				value := -(token.Amount * token.Price)
				protocolValue += value

				group.Positions = append(group.Positions, entities.RawPosition{
					TokenSymbol: tokenSymbol(token),
					TokenName:   tokenName(token, "Borrowed "+token.Symbol),
					Balance:     token.Amount,
					UsdValue:    roundTo(value, 2),
					Chain:       itemChain,
					IsDebt:      true,
					LogoURL:     token.LogoURL,
				})
			}

			// Aggregate-only debt reporting: synthesize a position
			if len(item.Detail.BorrowTokens) == 0 && len(item.Detail.DebtTokens) == 0 && item.Stats.DebtUsdValue > 0 {
				protocolValue -= item.Stats.DebtUsdValue

				group.Positions = append(group.Positions, entities.RawPosition{
					TokenSymbol: item.Name,
					TokenName:   "Borrowed (Synthetic)",
					Balance:     0,
					UsdValue:    roundTo(-item.Stats.DebtUsdValue, 2),
					Chain:       itemChain,
					IsDebt:      true,
				})
			}
		}

		if protocolValue != 0 || len(group.Positions) > 0 {
			groups = append(groups, group)
		}
	}

	return groups
}

// tokenSymbol picks the best available symbol for a provider token
func tokenSymbol(token providers.DebankTokenAmount) string {
	if token.Symbol != "" {
		return token.Symbol
	}
	if token.OptimizedSymbol != "" {
		return token.OptimizedSymbol
	}
	return "Unknown"
}

// tokenName picks the token name with a fallback
func tokenName(token providers.DebankTokenAmount, fallback string) string {
	if token.Name != "" {
		return token.Name
	}
	return fallback
}
