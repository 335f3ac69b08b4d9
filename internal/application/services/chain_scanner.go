package services

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
	"github.com/bimakw/portfolio-enricher/internal/infrastructure/providers"
)

// ChainProvider is the per-chain data provider collaborator
type ChainProvider interface {
	Chain() string
	GetBalance(ctx context.Context, address string) (float64, error)
	GetTokenBalances(ctx context.Context, address string) ([]providers.TokenBalance, error)
	GetTokenMetadata(ctx context.Context, contractAddress string) (*providers.TokenMetadata, error)
}

// CoinGecko platform ids per chain; chains without an entry price against
// the ethereum platform
var coingeckoPlatforms = map[string]string{
	"ethereum": "ethereum",
	"base":     "base",
	"arbitrum": "arbitrum-one",
	"optimism": "optimistic-ethereum",
	"polygon":  "polygon-pos",
}

// nativeSymbol returns the chain's native asset symbol
func nativeSymbol(chain string) string {
	if chain == "polygon" {
		return "matic"
	}
	return "eth"
}

// ScanResult holds the outcome of scanning one chain for one address
type ScanResult struct {
	Chain       string
	WalletUSD   float64
	ProtocolUSD float64
	Groups      []entities.RawProtocolGroup
}

// ChainScanner produces wallet balance, protocol balance, and DeFi positions
// for one chain and one address
type ChainScanner struct {
	provider   ChainProvider
	prices     *PriceService
	priceLimit int
	logger     *zap.Logger
}

// NewChainScanner creates a scanner over one chain provider
func NewChainScanner(provider ChainProvider, prices *PriceService, priceLimit int, logger *zap.Logger) *ChainScanner {
	return &ChainScanner{
		provider:   provider,
		prices:     prices,
		priceLimit: priceLimit,
		logger:     logger,
	}
}

// scannedToken pairs a token balance with its metadata and classification
type scannedToken struct {
	balance    providers.TokenBalance
	metadata   *providers.TokenMetadata
	descriptor *entities.ProtocolDescriptor
}

// Scan enumerates native and token balances, classifies receipt tokens, and
// prices what it can. Individual token failures are skipped, never fatal.
func (s *ChainScanner) Scan(ctx context.Context, address string) (*ScanResult, error) {
	chain := s.provider.Chain()
	result := &ScanResult{Chain: chain}

	native, err := s.provider.GetBalance(ctx, address)
	if err != nil {
		return nil, err
	}
	if native > 0 {
		symbol := nativeSymbol(chain)
		price := s.prices.GetNativePrice(ctx, symbol)
		value := native * price
		result.WalletUSD += value

		s.logger.Debug("Native balance",
			zap.String("chain", chain),
			zap.String("symbol", symbol),
			zap.Float64("balance", native),
			zap.Float64("usd_value", value),
		)
	}

	tokens, err := s.provider.GetTokenBalances(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return result, nil
	}

	scanned := make([]scannedToken, 0, len(tokens))
	for _, tb := range tokens {
		metadata, err := s.provider.GetTokenMetadata(ctx, tb.ContractAddress)
		if err != nil {
			s.logger.Warn("Skipping token without metadata",
				zap.String("chain", chain),
				zap.String("contract", tb.ContractAddress),
				zap.Error(err),
			)
			continue
		}

		scanned = append(scanned, scannedToken{
			balance:    tb,
			metadata:   metadata,
			descriptor: DetectProtocol(metadata.Symbol, metadata.Name),
		})
	}

	// Receipt tokens first so they win the rate-limited price batch
	sort.SliceStable(scanned, func(i, j int) bool {
		return scanned[i].descriptor != nil && scanned[j].descriptor == nil
	})

	platform, ok := coingeckoPlatforms[chain]
	if !ok {
		platform = "ethereum"
	}

	limit := s.priceLimit
	if limit > len(scanned) {
		limit = len(scanned)
	}
	contracts := make([]string, 0, limit)
	for _, st := range scanned[:limit] {
		contracts = append(contracts, st.balance.ContractAddress)
	}
	batchPrices := s.prices.GetBatchPrices(ctx, platform, contracts)

	groupIndex := make(map[string]int)

	for _, st := range scanned {
		balance, err := providers.ParseTokenBalance(st.balance.TokenBalance, st.metadata.Decimals)
		if err != nil || balance <= 0 {
			continue
		}

		price := batchPrices[st.balance.ContractAddress]
		if price == 0 && st.descriptor != nil && st.descriptor.EstimatedPeg != nil {
			price = *st.descriptor.EstimatedPeg
		}

		value := balance * price

		if st.descriptor == nil {
			// Unpriced plain tokens contribute nothing to either side
			result.WalletUSD += value
			continue
		}

		if st.descriptor.IsDebt {
			result.ProtocolUSD -= value
			value = -value
		} else {
			result.ProtocolUSD += value
		}

		idx, ok := groupIndex[st.descriptor.ProtocolName]
		if !ok {
			idx = len(result.Groups)
			groupIndex[st.descriptor.ProtocolName] = idx
			result.Groups = append(result.Groups, entities.RawProtocolGroup{
				ID:   st.descriptor.ProtocolKey,
				Name: st.descriptor.ProtocolName,
				Type: st.descriptor.Type,
			})
		}

		result.Groups[idx].Positions = append(result.Groups[idx].Positions, entities.RawPosition{
			TokenSymbol:     st.metadata.Symbol,
			TokenName:       st.metadata.Name,
			Balance:         roundTo(balance, 6),
			UsdValue:        roundTo(value, 2),
			ContractAddress: st.balance.ContractAddress,
			Chain:           chain,
			IsDebt:          st.descriptor.IsDebt,
			LogoURL:         st.metadata.Logo,
		})
	}

	return result, nil
}

// roundTo rounds to the given number of decimal places
func roundTo(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
