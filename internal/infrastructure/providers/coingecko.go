package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/bimakw/portfolio-enricher/internal/config"
)

// CoingeckoClient fetches USD prices from the CoinGecko API
type CoingeckoClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewCoingeckoClient creates a new CoinGecko client. The free tier needs no
// API key.
func NewCoingeckoClient(cfg config.ProvidersConfig, logger *zap.Logger) *CoingeckoClient {
	return &CoingeckoClient{
		baseURL:    strings.TrimRight(cfg.CoingeckoBaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

// GetTokenPrice returns the USD price for a token contract on a platform.
// A token CoinGecko does not know resolves to zero, not an error.
func (c *CoingeckoClient) GetTokenPrice(ctx context.Context, platform, contractAddress string) (float64, error) {
	contract := strings.ToLower(contractAddress)
	params := url.Values{
		"contract_addresses": {contract},
		"vs_currencies":      {"usd"},
	}

	var resp map[string]map[string]float64
	if err := c.get(ctx, "/simple/token_price/"+platform, params, &resp); err != nil {
		return 0, err
	}

	return resp[contract]["usd"], nil
}

// GetNativePrice returns the USD price for a native asset by CoinGecko id
func (c *CoingeckoClient) GetNativePrice(ctx context.Context, coinID string) (float64, error) {
	params := url.Values{
		"ids":           {coinID},
		"vs_currencies": {"usd"},
	}

	var resp map[string]map[string]float64
	if err := c.get(ctx, "/simple/price", params, &resp); err != nil {
		return 0, err
	}

	return resp[coinID]["usd"], nil
}

func (c *CoingeckoClient) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("coingecko API error: %d - %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode coingecko response: %w", err)
	}

	return nil
}
