package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
	"github.com/bimakw/portfolio-enricher/internal/domain/repositories"
	"github.com/bimakw/portfolio-enricher/internal/infrastructure/cache"
)

// DefaultTopAssetsLimit caps the ranked top-assets list
const DefaultTopAssetsLimit = 10

// SummaryResponse wraps the portfolio summary for API responses
type SummaryResponse struct {
	Data entities.PortfolioSummary `json:"data"`
}

// AggregationService combines accounts and normalized positions into
// portfolio-level summaries
type AggregationService struct {
	accountRepo repositories.AccountRepository
	normalizer  *PositionNormalizer
	cache       *cache.RedisCache
	logger      *zap.Logger
}

// NewAggregationService creates a new aggregation service
func NewAggregationService(
	accountRepo repositories.AccountRepository,
	normalizer *PositionNormalizer,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *AggregationService {
	return &AggregationService{
		accountRepo: accountRepo,
		normalizer:  normalizer,
		cache:       cache,
		logger:      logger,
	}
}

// GetSummary computes the portfolio summary for a user's active accounts
func (s *AggregationService) GetSummary(ctx context.Context, userID int64) (*SummaryResponse, error) {
	cacheKey := fmt.Sprintf("portfolio_summary:%d", userID)

	var cached SummaryResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	accounts, err := s.accountRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}

	positions := s.normalizer.NormalizeAll(accounts)
	summary := BuildSummary(accounts, positions, DefaultTopAssetsLimit)

	response := &SummaryResponse{Data: summary}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, time.Minute); err != nil {
			s.logger.Warn("Failed to cache summary", zap.Error(err))
		}
	}

	return response, nil
}

// BuildSummary aggregates accounts and positions into a portfolio summary.
// Totals come from account balance fields only; position data drives the
// rankings.
func BuildSummary(accounts []entities.Account, positions []entities.NormalizedPosition, topAssetsLimit int) entities.PortfolioSummary {
	var summary entities.PortfolioSummary

	for _, a := range accounts {
		summary.TotalValue += a.BalanceUSD
		summary.IdleValue += a.WalletBalanceUSD
		summary.DeployedValue += a.ProtocolBalanceUSD

		switch a.SyncStatusValue() {
		case entities.SyncSynced:
			summary.SyncStatusSummary.Synced++
		case entities.SyncSyncing:
			summary.SyncStatusSummary.Syncing++
		case entities.SyncError:
			summary.SyncStatusSummary.Error++
		case entities.SyncPending:
			summary.SyncStatusSummary.Pending++
		}

		if a.LastSyncedAt != nil {
			if summary.LastSynced == nil || a.LastSyncedAt.After(*summary.LastSynced) {
				t := *a.LastSyncedAt
				summary.LastSynced = &t
			}
		}
	}

	summary.CategoryBreakdown = entities.CategoryBreakdown{
		Idle:     entities.CategoryTotal{Total: summary.IdleValue},
		Deployed: entities.CategoryTotal{Total: summary.DeployedValue},
		Futures:  0,
	}

	summary.TopAssets = buildTopAssets(positions, summary.TotalValue, topAssetsLimit)
	summary.ProtocolBreakdown = buildProtocolBreakdown(positions)

	return summary
}

// buildTopAssets groups positions by token symbol and ranks them by
// absolute value so large debt positions surface too
func buildTopAssets(positions []entities.NormalizedPosition, totalValue float64, limit int) []entities.TopAsset {
	if len(positions) == 0 {
		return []entities.TopAsset{}
	}

	index := make(map[string]int)
	assets := make([]entities.TopAsset, 0)

	for _, p := range positions {
		i, ok := index[p.TokenSymbol]
		if !ok {
			i = len(assets)
			index[p.TokenSymbol] = i
			assets = append(assets, entities.TopAsset{
				Symbol:  p.TokenSymbol,
				Name:    p.TokenName,
				IconURL: p.TokenIconURL,
			})
		}
		assets[i].TotalValue += p.UsdValue
		assets[i].Balance += p.Balance
	}

	sort.SliceStable(assets, func(i, j int) bool {
		return math.Abs(assets[i].TotalValue) > math.Abs(assets[j].TotalValue)
	})

	if len(assets) > limit {
		assets = assets[:limit]
	}

	totalAbs := math.Abs(totalValue)
	if totalAbs > 0 {
		for i := range assets {
			assets[i].Percentage = roundTo(math.Abs(assets[i].TotalValue)/totalAbs*100, 2)
		}
	}

	return assets
}

// buildProtocolBreakdown groups positions by protocol key and computes
// supplied/borrowed/net values per protocol instance
func buildProtocolBreakdown(positions []entities.NormalizedPosition) []entities.ProtocolStat {
	if len(positions) == 0 {
		return []entities.ProtocolStat{}
	}

	index := make(map[string]int)
	stats := make([]entities.ProtocolStat, 0)

	for i := range positions {
		p := &positions[i]
		key := p.ProtocolKey()

		si, ok := index[key]
		if !ok {
			si = len(stats)
			index[key] = si
			stats = append(stats, entities.ProtocolStat{
				ProtocolID: p.ProtocolID,
				Name:       p.ProtocolName,
				Type:       p.ProtocolType,
				Chain:      p.Chain,
				IconURL:    p.ProtocolIconURL,
			})
		}

		stat := &stats[si]
		stat.NetValue += p.UsdValue
		if p.IsDebt {
			stat.BorrowedValue += p.AbsValue()
		} else {
			stat.SuppliedValue += p.UsdValue
		}
		if stat.HealthRate == nil && p.HealthRate != nil {
			stat.HealthRate = p.HealthRate
		}
		stat.PositionCount++
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].NetValue > stats[j].NetValue
	})

	return stats
}
