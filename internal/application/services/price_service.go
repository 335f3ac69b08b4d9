package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bimakw/portfolio-enricher/internal/config"
)

// PriceProvider is the external price lookup collaborator
type PriceProvider interface {
	GetTokenPrice(ctx context.Context, platform, contractAddress string) (float64, error)
	GetNativePrice(ctx context.Context, coinID string) (float64, error)
}

// Map common native symbols to CoinGecko ids
var coingeckoIDs = map[string]string{
	"eth":   "ethereum",
	"btc":   "bitcoin",
	"sol":   "solana",
	"matic": "matic-network",
	"bnb":   "binancecoin",
	"avax":  "avalanche-2",
	"arb":   "arbitrum",
	"op":    "optimism",
}

type priceEntry struct {
	value     float64
	expiresAt time.Time
}

// PriceService caches USD prices with a uniform TTL and paces batch lookups
// to stay under the provider's rate limit. The cache is advisory shared
// state: concurrent refreshes of the same key are benign.
type PriceService struct {
	provider PriceProvider
	logger   *zap.Logger

	ttl        time.Duration
	batchLimit int
	limiter    *rate.Limiter
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]priceEntry
}

// NewPriceService creates a price service with TTL and pacing from config
func NewPriceService(provider PriceProvider, cfg config.EnricherConfig, logger *zap.Logger) *PriceService {
	return &PriceService{
		provider:   provider,
		logger:     logger,
		ttl:        cfg.PriceCacheTTL,
		batchLimit: cfg.PriceBatchLimit,
		limiter:    rate.NewLimiter(rate.Every(cfg.PriceBatchDelay), 1),
		now:        time.Now,
		cache:      make(map[string]priceEntry),
	}
}

// getCached returns a live cached price. A lookup at or past expiry is a
// miss and evicts the stale entry.
func (s *PriceService) getCached(key string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		return 0, false
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.cache, key)
		return 0, false
	}
	return entry.value, true
}

func (s *PriceService) setCached(key string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = priceEntry{value: value, expiresAt: s.now().Add(s.ttl)}
}

// GetNativePrice returns the USD price for a native asset symbol, zero when
// unknown or unavailable
func (s *PriceService) GetNativePrice(ctx context.Context, symbol string) float64 {
	symbol = strings.ToLower(symbol)
	key := "native:" + symbol

	if price, ok := s.getCached(key); ok {
		return price
	}

	coinID, ok := coingeckoIDs[symbol]
	if !ok {
		return 0
	}

	price, err := s.provider.GetNativePrice(ctx, coinID)
	if err != nil {
		s.logger.Error("Native price fetch failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return 0
	}

	if price > 0 {
		s.setCached(key, price)
	}
	return price
}

// GetTokenPrice returns the USD price for a token contract, zero when
// unavailable
func (s *PriceService) GetTokenPrice(ctx context.Context, platform, contractAddress string) float64 {
	contract := strings.ToLower(contractAddress)
	key := platform + ":" + contract

	if price, ok := s.getCached(key); ok {
		return price
	}

	price, err := s.provider.GetTokenPrice(ctx, platform, contract)
	if err != nil {
		s.logger.Error("Token price fetch failed",
			zap.String("contract", contract),
			zap.Error(err),
		)
		return 0
	}

	if price > 0 {
		s.setCached(key, price)
	}
	return price
}

// GetBatchPrices resolves prices for the first batchLimit addresses only.
// Each provider query waits on the limiter so queries past the first are
// spaced by the configured delay. Addresses resolving to a non-positive
// price are omitted: absence, not zero, signals unknown.
func (s *PriceService) GetBatchPrices(ctx context.Context, platform string, addresses []string) map[string]float64 {
	prices := make(map[string]float64)
	if len(addresses) == 0 {
		return prices
	}

	limited := addresses
	if len(limited) > s.batchLimit {
		limited = limited[:s.batchLimit]
	}

	for _, address := range limited {
		key := platform + ":" + strings.ToLower(address)
		if price, ok := s.getCached(key); ok {
			if price > 0 {
				prices[address] = price
			}
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Warn("Batch price fetch aborted", zap.Error(err))
			return prices
		}

		if price := s.GetTokenPrice(ctx, platform, address); price > 0 {
			prices[address] = price
		}
	}

	return prices
}
