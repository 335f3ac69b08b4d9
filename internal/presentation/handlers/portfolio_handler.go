package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/portfolio-enricher/internal/application/services"
)

// PortfolioHandler handles HTTP requests for portfolio summaries
type PortfolioHandler struct {
	service *services.AggregationService
	logger  *zap.Logger
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(service *services.AggregationService, logger *zap.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the portfolio routes on a chi router
func (h *PortfolioHandler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolio/summary", h.GetSummary)
}

// GetSummary handles GET /api/v1/portfolio/summary?user_id=N
func (h *PortfolioHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := parseUserID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid or missing user_id")
		return
	}

	response, err := h.service.GetSummary(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to get portfolio summary",
			zap.Error(err),
			zap.Int64("user_id", userID),
		)
		h.respondError(w, http.StatusInternalServerError, "Failed to get portfolio summary")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

func (h *PortfolioHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *PortfolioHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
