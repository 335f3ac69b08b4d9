package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/portfolio-enricher/internal/application/services"
	"github.com/bimakw/portfolio-enricher/internal/config"
	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
	"github.com/bimakw/portfolio-enricher/internal/testutil"
)

func enricherHandlerTestConfig() config.EnricherConfig {
	return config.EnricherConfig{
		PriceCacheTTL:   5 * time.Minute,
		PriceBatchLimit: 10,
		PriceBatchDelay: time.Millisecond,
		SyncStaleAfter:  5 * time.Minute,
	}
}

func setupPortfolioHandlerTest() (*PortfolioHandler, *testutil.MockAccountRepository) {
	repo := testutil.NewMockAccountRepository()
	logger := zap.NewNop()

	normalizer := services.NewPositionNormalizer(logger)
	service := services.NewAggregationService(repo, normalizer, nil, logger)
	handler := NewPortfolioHandler(service, logger)

	return handler, repo
}

func portfolioTestRouter(handler *PortfolioHandler) chi.Router {
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func TestNewPortfolioHandler(t *testing.T) {
	handler, _ := setupPortfolioHandlerTest()
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}
}

func TestPortfolioHandler_GetSummary_Success(t *testing.T) {
	handler, repo := setupPortfolioHandlerTest()
	router := portfolioTestRouter(handler)

	payload := `[{"id":"aave","name":"Aave","positions":[
		{"token_symbol":"aUSDC","token_name":"Aave USDC","balance":100,"usd_value":100,"is_debt":false}
	]}]`
	repo.AddAccount(testutil.CreateTestAccount(
		testutil.WithID(1),
		testutil.WithUserID(3),
		testutil.WithBalances(150, 50, 100),
		testutil.WithPositions(payload),
	))

	req := httptest.NewRequest(http.MethodGet, "/portfolio/summary?user_id=3", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data entities.PortfolioSummary `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.TotalValue != 150 {
		t.Errorf("expected total 150, got %f", resp.Data.TotalValue)
	}
	if len(resp.Data.TopAssets) != 1 || resp.Data.TopAssets[0].Symbol != "aUSDC" {
		t.Errorf("unexpected top assets: %+v", resp.Data.TopAssets)
	}
	if len(resp.Data.ProtocolBreakdown) != 1 {
		t.Errorf("expected 1 protocol entry, got %d", len(resp.Data.ProtocolBreakdown))
	}
}

func TestPortfolioHandler_GetSummary_MissingUserID(t *testing.T) {
	handler, _ := setupPortfolioHandlerTest()
	router := portfolioTestRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/portfolio/summary", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestPortfolioHandler_GetSummary_EmptyPortfolio(t *testing.T) {
	handler, _ := setupPortfolioHandlerTest()
	router := portfolioTestRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/portfolio/summary?user_id=42", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data entities.PortfolioSummary `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.TotalValue != 0 {
		t.Errorf("expected zero total, got %f", resp.Data.TotalValue)
	}
}
