package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/portfolio-enricher/internal/application/services"
	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
)

// AccountHandler handles HTTP requests for tracked accounts
type AccountHandler struct {
	service *services.AccountService
	logger  *zap.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service *services.AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the account routes on a chi router
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.CreateAccount)
		r.Get("/", h.ListAccounts)
		r.Post("/{id}/sync", h.TriggerSync)
	})
}

type createAccountRequest struct {
	UserID  int64  `json:"user_id"`
	Address string `json:"address"`
	Name    string `json:"name"`
}

type accountResponse struct {
	Data entities.Account `json:"data"`
}

type accountListResponse struct {
	Data  []entities.Account `json:"data"`
	Count int                `json:"count"`
}

// CreateAccount handles POST /api/v1/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID <= 0 {
		h.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	account, err := h.service.CreateAccount(ctx, req.UserID, req.Address, req.Name)
	if err != nil {
		if errors.Is(err, services.ErrAccountExists) {
			h.respondError(w, http.StatusConflict, "Account already exists")
			return
		}
		h.logger.Error("Failed to create account",
			zap.Error(err),
			zap.Int64("user_id", req.UserID),
		)
		h.respondError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	h.respondJSON(w, http.StatusCreated, accountResponse{Data: *account})
}

// ListAccounts handles GET /api/v1/accounts?user_id=N
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := parseUserID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid or missing user_id")
		return
	}

	accounts, err := h.service.ListAccounts(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to list accounts",
			zap.Error(err),
			zap.Int64("user_id", userID),
		)
		h.respondError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	h.respondJSON(w, http.StatusOK, accountListResponse{
		Data:  accounts,
		Count: len(accounts),
	})
}

// TriggerSync handles POST /api/v1/accounts/{id}/sync
func (h *AccountHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || accountID <= 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	if err := h.service.TriggerSync(ctx, accountID); err != nil {
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			h.respondError(w, http.StatusNotFound, "Account not found")
		case errors.Is(err, services.ErrAlreadySyncing):
			h.respondError(w, http.StatusConflict, "Sync already in progress")
		default:
			h.logger.Error("Failed to trigger sync",
				zap.Error(err),
				zap.Int64("account_id", accountID),
			)
			h.respondError(w, http.StatusInternalServerError, "Failed to trigger sync")
		}
		return
	}

	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// parseUserID extracts the user_id query parameter
func parseUserID(r *http.Request) (int64, bool) {
	v := r.URL.Query().Get("user_id")
	if v == "" {
		return 0, false
	}
	userID, err := strconv.ParseInt(v, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

func (h *AccountHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *AccountHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
