package providers

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/bimakw/portfolio-enricher/internal/config"
)

// Alchemy JSON-RPC endpoints per chain
var alchemyEndpoints = map[string]string{
	"ethereum": "https://eth-mainnet.g.alchemy.com/v2",
	"base":     "https://base-mainnet.g.alchemy.com/v2",
	"arbitrum": "https://arb-mainnet.g.alchemy.com/v2",
	"optimism": "https://opt-mainnet.g.alchemy.com/v2",
	"polygon":  "https://polygon-mainnet.g.alchemy.com/v2",
}

// TokenBalance is one non-zero ERC-20 balance returned by the token scan
type TokenBalance struct {
	ContractAddress string `json:"contractAddress"`
	TokenBalance    string `json:"tokenBalance"` // hex-encoded raw balance
}

// TokenMetadata holds ERC-20 token metadata
type TokenMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Logo     string `json:"logo"`
}

// AlchemyClient is a per-chain data provider over the Alchemy JSON-RPC API
type AlchemyClient struct {
	client *rpc.Client
	chain  string
	logger *zap.Logger
}

// NewAlchemyClient creates a client for one supported chain
func NewAlchemyClient(cfg config.ProvidersConfig, chain string, logger *zap.Logger) (*AlchemyClient, error) {
	base, ok := alchemyEndpoints[chain]
	if !ok {
		return nil, fmt.Errorf("unsupported chain: %s", chain)
	}
	if cfg.AlchemyAPIKey == "" {
		return nil, fmt.Errorf("alchemy API key not configured")
	}

	client, err := rpc.Dial(base + "/" + cfg.AlchemyAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to dial alchemy endpoint for %s: %w", chain, err)
	}

	return &AlchemyClient{
		client: client,
		chain:  chain,
		logger: logger,
	}, nil
}

// Chain returns the chain this client queries
func (c *AlchemyClient) Chain() string {
	return c.chain
}

// Close closes the underlying RPC connection
func (c *AlchemyClient) Close() {
	c.client.Close()
}

// GetBalance returns the native-asset balance in whole units (wei / 1e18)
func (c *AlchemyClient) GetBalance(ctx context.Context, address string) (float64, error) {
	if !common.IsHexAddress(address) {
		return 0, fmt.Errorf("invalid address: %s", address)
	}

	var result hexutil.Big
	err := c.client.CallContext(ctx, &result, "eth_getBalance", common.HexToAddress(address), "latest")
	if err != nil {
		return 0, fmt.Errorf("eth_getBalance failed on %s: %w", c.chain, err)
	}

	wei := new(big.Float).SetInt((*big.Int)(&result))
	eth, _ := new(big.Float).Quo(wei, big.NewFloat(1e18)).Float64()
	return eth, nil
}

// tokenBalancesResult mirrors the alchemy_getTokenBalances response
type tokenBalancesResult struct {
	Address       string         `json:"address"`
	TokenBalances []TokenBalance `json:"tokenBalances"`
}

// GetTokenBalances returns all ERC-20 balances for an address, zero balances
// filtered out
func (c *AlchemyClient) GetTokenBalances(ctx context.Context, address string) ([]TokenBalance, error) {
	var result tokenBalancesResult
	err := c.client.CallContext(ctx, &result, "alchemy_getTokenBalances", common.HexToAddress(address))
	if err != nil {
		return nil, fmt.Errorf("alchemy_getTokenBalances failed on %s: %w", c.chain, err)
	}

	balances := make([]TokenBalance, 0, len(result.TokenBalances))
	for _, tb := range result.TokenBalances {
		raw, err := decodeHexBalance(tb.TokenBalance)
		if err != nil || raw.Sign() <= 0 {
			continue
		}
		balances = append(balances, tb)
	}

	return balances, nil
}

// GetTokenMetadata returns name/symbol/decimals for a token contract
func (c *AlchemyClient) GetTokenMetadata(ctx context.Context, contractAddress string) (*TokenMetadata, error) {
	var metadata TokenMetadata
	err := c.client.CallContext(ctx, &metadata, "alchemy_getTokenMetadata", common.HexToAddress(contractAddress))
	if err != nil {
		return nil, fmt.Errorf("alchemy_getTokenMetadata failed on %s: %w", c.chain, err)
	}

	if metadata.Decimals <= 0 {
		metadata.Decimals = 18
	}

	return &metadata, nil
}

// decodeHexBalance parses a hex balance. Alchemy pads values to 32 bytes,
// which hexutil.DecodeBig rejects for its leading zeros, so parse leniently.
func decodeHexBalance(balanceHex string) (*big.Int, error) {
	s := strings.TrimPrefix(balanceHex, "0x")
	if s == "" {
		return nil, fmt.Errorf("empty hex balance")
	}
	raw, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex balance %q", balanceHex)
	}
	return raw, nil
}

// ParseTokenBalance converts a hex raw balance into whole token units
func ParseTokenBalance(balanceHex string, decimals int) (float64, error) {
	raw, err := decodeHexBalance(balanceHex)
	if err != nil {
		return 0, err
	}

	if decimals <= 0 {
		decimals = 18
	}

	value := new(big.Float).SetInt(raw)
	scale := new(big.Float).SetFloat64(math.Pow10(decimals))
	balance, _ := new(big.Float).Quo(value, scale).Float64()
	return balance, nil
}
