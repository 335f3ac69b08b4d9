package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/bimakw/portfolio-enricher/internal/config"
)

// DebankTokenAmount is one token entry in a supply/borrow/debt list
type DebankTokenAmount struct {
	Symbol          string  `json:"symbol"`
	OptimizedSymbol string  `json:"optimized_symbol"`
	Name            string  `json:"name"`
	Amount          float64 `json:"amount"`
	Price           float64 `json:"price"`
	LogoURL         string  `json:"logo_url"`
}

// DebankItemDetail holds the token lists of one portfolio item
type DebankItemDetail struct {
	SupplyTokens []DebankTokenAmount `json:"supply_token_list"`
	BorrowTokens []DebankTokenAmount `json:"borrow_token_list"`
	DebtTokens   []DebankTokenAmount `json:"debt_token_list"`
	HealthRate   *float64            `json:"health_rate,omitempty"`
}

// DebankItemStats holds per-item aggregate values
type DebankItemStats struct {
	NetUsdValue  float64 `json:"net_usd_value"`
	DebtUsdValue float64 `json:"debt_usd_value"`
}

// DebankPortfolioItem is one position group inside a protocol
type DebankPortfolioItem struct {
	Name   string           `json:"name"`
	Chain  string           `json:"chain"`
	Detail DebankItemDetail `json:"detail"`
	Stats  DebankItemStats  `json:"stats"`
}

// DebankProtocol is one protocol entry from the complex protocol list
type DebankProtocol struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Chain          string                `json:"chain"`
	SiteURL        string                `json:"site_url"`
	LogoURL        string                `json:"logo_url"`
	PortfolioItems []DebankPortfolioItem `json:"portfolio_item_list"`
}

// DebankToken is one wallet token from the all-token list
type DebankToken struct {
	ID      string  `json:"id"`
	Chain   string  `json:"chain"`
	Symbol  string  `json:"symbol"`
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Price   float64 `json:"price"`
	LogoURL string  `json:"logo_url"`
}

// PortfolioBreakdown is the combined primary-provider portfolio view
type PortfolioBreakdown struct {
	TotalUSD    float64
	WalletUSD   float64
	ProtocolUSD float64
	Protocols   []DebankProtocol
	Tokens      []DebankToken
}

// DebankClient is the primary portfolio data provider
type DebankClient struct {
	baseURL    string
	accessKey  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDebankClient creates a new DeBank API client
func NewDebankClient(cfg config.ProvidersConfig, logger *zap.Logger) (*DebankClient, error) {
	if cfg.DebankAccessKey == "" {
		return nil, fmt.Errorf("debank access key not configured")
	}

	return &DebankClient{
		baseURL:    strings.TrimRight(cfg.DebankBaseURL, "/"),
		accessKey:  cfg.DebankAccessKey,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}, nil
}

// totalBalanceResponse mirrors /v1/user/total_balance
type totalBalanceResponse struct {
	TotalUsdValue float64 `json:"total_usd_value"`
}

// GetTotalBalance returns the total USD value across all chains
func (c *DebankClient) GetTotalBalance(ctx context.Context, address string) (float64, error) {
	var resp totalBalanceResponse
	params := url.Values{"id": {strings.ToLower(address)}}
	if err := c.get(ctx, "/v1/user/total_balance", params, &resp); err != nil {
		return 0, err
	}
	return resp.TotalUsdValue, nil
}

// GetProtocolPositions returns all DeFi protocol positions for an address
func (c *DebankClient) GetProtocolPositions(ctx context.Context, address string) ([]DebankProtocol, error) {
	var protocols []DebankProtocol
	params := url.Values{"id": {strings.ToLower(address)}}
	if err := c.get(ctx, "/v1/user/all_complex_protocol_list", params, &protocols); err != nil {
		return nil, err
	}
	return protocols, nil
}

// GetTokenBalances returns wallet token balances across all chains
func (c *DebankClient) GetTokenBalances(ctx context.Context, address string) ([]DebankToken, error) {
	var tokens []DebankToken
	params := url.Values{
		"id":     {strings.ToLower(address)},
		"is_all": {"true"},
	}
	if err := c.get(ctx, "/v1/user/all_token_list", params, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// GetPortfolioBreakdown combines total balance, protocol positions, and
// token balances into a single portfolio view. The reported total is
// authoritative; wallet balance is derived as total minus protocol.
func (c *DebankClient) GetPortfolioBreakdown(ctx context.Context, address string) (*PortfolioBreakdown, error) {
	total, err := c.GetTotalBalance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get total balance: %w", err)
	}

	protocols, err := c.GetProtocolPositions(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get protocol positions: %w", err)
	}

	tokens, err := c.GetTokenBalances(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balances: %w", err)
	}

	protocolBalance := sumProtocolBalance(protocols)
	wallet := reconcileWalletBalance(c.logger, total-protocolBalance, protocolBalance, total)

	return &PortfolioBreakdown{
		TotalUSD:    total,
		WalletUSD:   wallet,
		ProtocolUSD: protocolBalance,
		Protocols:   protocols,
		Tokens:      tokens,
	}, nil
}

// sumProtocolBalance totals net_usd_value across all portfolio items
func sumProtocolBalance(protocols []DebankProtocol) float64 {
	var sum float64
	for _, p := range protocols {
		for _, item := range p.PortfolioItems {
			sum += item.Stats.NetUsdValue
		}
	}
	return sum
}

// reconcileWalletBalance verifies wallet + protocol against the reported
// total. Mismatches above a cent are logged. Small negative wallet values
// are rounding noise and clamp to zero; large ones are surfaced via logging
// only, since the reported total stays authoritative.
func reconcileWalletBalance(logger *zap.Logger, wallet, protocol, total float64) float64 {
	diff := math.Abs(wallet + protocol - total)
	if diff > 0.01 {
		logger.Warn("Balance mismatch",
			zap.Float64("wallet", wallet),
			zap.Float64("protocol", protocol),
			zap.Float64("total", total),
			zap.Float64("diff", diff),
		)
	}

	if wallet < 0 && wallet > -1 {
		logger.Info("Rounding negative wallet balance to zero",
			zap.Float64("wallet", wallet),
		)
		return 0
	}
	if wallet <= -1 {
		logger.Error("Large negative wallet balance",
			zap.Float64("wallet", wallet),
		)
	}

	return wallet
}

// get performs an authenticated GET request and decodes the JSON response
func (c *DebankClient) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("AccessKey", c.accessKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("debank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("debank API error: %d - %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode debank response: %w", err)
	}

	return nil
}
