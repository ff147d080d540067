package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/internal/inventory/usecase/command"
	"github.com/tair/colporter/internal/inventory/usecase/query"
	"github.com/tair/colporter/pkg/auth"
	"github.com/tair/colporter/pkg/logger"
)

// InventoryHandler handles HTTP requests for books, transactions and counts
type InventoryHandler struct {
	// Command handlers
	submitCountHandler *command.SubmitCountHandler

	// Query handlers
	listBooksHandler        *query.ListBooksHandler
	listTransactionsHandler *query.ListTransactionsHandler
	listCountsHandler       *query.ListCountsHandler

	tokens  *auth.Manager
	metrics *Metrics
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(
	submitCountHandler *command.SubmitCountHandler,
	listBooksHandler *query.ListBooksHandler,
	listTransactionsHandler *query.ListTransactionsHandler,
	listCountsHandler *query.ListCountsHandler,
	tokens *auth.Manager,
	metrics *Metrics,
) *InventoryHandler {
	return &InventoryHandler{
		submitCountHandler:      submitCountHandler,
		listBooksHandler:        listBooksHandler,
		listTransactionsHandler: listTransactionsHandler,
		listCountsHandler:       listCountsHandler,
		tokens:                  tokens,
		metrics:                 metrics,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SubmitCountRequest is the body of POST /api/books/{bookId}/counts
type SubmitCountRequest struct {
	ManualCount        *int   `json:"manualCount"`
	CountDate          string `json:"countDate"`
	SystemCount        *int   `json:"systemCount"`
	ConfirmDiscrepancy bool   `json:"confirmDiscrepancy"`
	SetVerified        bool   `json:"setVerified"`
	ProgramID          uint   `json:"programId"`
}

// SubmitCountResponse carries the stored count and, after a confirmation, the book
type SubmitCountResponse struct {
	Count *domain.InventoryCount `json:"count"`
	Book  *domain.Book           `json:"book,omitempty"`
}

// Pinger reports whether the backing store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RegisterRoutes registers all inventory routes
func (h *InventoryHandler) RegisterRoutes(router *mux.Router) {
	authenticated := AuthMiddleware(h.tokens)
	reconciler := ReconcilerMiddleware(h.tokens)

	router.HandleFunc("/api/books", h.metrics.middleware("/api/books", authenticated(h.ListBooks))).Methods("GET")
	router.HandleFunc("/api/transactions", h.metrics.middleware("/api/transactions", authenticated(h.ListTransactions))).Methods("GET")
	router.HandleFunc("/api/books/counts/{date}", h.metrics.middleware("/api/books/counts/{date}", authenticated(h.ListCounts))).Methods("GET")
	router.HandleFunc("/api/books/{bookId:[0-9]+}/counts", h.metrics.middleware("/api/books/{bookId}/counts", reconciler(h.SubmitCount))).Methods("POST")
}

// RegisterHealthCheck registers health check endpoint. db may be nil when
// the service runs on in-memory storage.
func (h *InventoryHandler) RegisterHealthCheck(router *mux.Router, db Pinger) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, Response{
					Success: false,
					Error:   "Database unavailable",
				})
				return
			}
		}

		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Inventory service is healthy",
		})
	}).Methods("GET")
}

// ListBooks handles GET /api/books?programId=
func (h *InventoryHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	programID, ok := programIDParam(w, r, true)
	if !ok {
		return
	}
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))

	books, err := h.listBooksHandler.Handle(r.Context(), query.ListBooksQuery{
		ProgramID:  programID,
		ActiveOnly: activeOnly,
	})
	if err != nil {
		h.respondDomainError(w, r, err, "Failed to list books")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    books,
	})
}

// ListTransactions handles GET /api/transactions?status=&date=&programId=
func (h *InventoryHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	programID, ok := programIDParam(w, r, false)
	if !ok {
		return
	}

	txs, err := h.listTransactionsHandler.Handle(r.Context(), query.ListTransactionsQuery{
		ProgramID: programID,
		Status:    r.URL.Query().Get("status"),
		Date:      r.URL.Query().Get("date"),
	})
	if err != nil {
		h.respondDomainError(w, r, err, "Failed to list transactions")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    txs,
	})
}

// ListCounts handles GET /api/books/counts/{date}?programId=
func (h *InventoryHandler) ListCounts(w http.ResponseWriter, r *http.Request) {
	programID, ok := programIDParam(w, r, true)
	if !ok {
		return
	}

	counts, err := h.listCountsHandler.Handle(r.Context(), query.ListCountsQuery{
		ProgramID: programID,
		Date:      mux.Vars(r)["date"],
	})
	if err != nil {
		h.respondDomainError(w, r, err, "Failed to list inventory counts")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    counts,
	})
}

// SubmitCount handles POST /api/books/{bookId}/counts
func (h *InventoryHandler) SubmitCount(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseUint(mux.Vars(r)["bookId"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid book ID")
		return
	}

	var req SubmitCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ManualCount == nil || req.SystemCount == nil {
		respondError(w, http.StatusBadRequest, "manualCount and systemCount are required")
		return
	}

	claims := claimsFrom(r.Context())
	result, err := h.submitCountHandler.Handle(r.Context(), command.SubmitCountCommand{
		ProgramID:          req.ProgramID,
		BookID:             uint(bookID),
		CountDate:          req.CountDate,
		ManualCount:        *req.ManualCount,
		SystemCount:        *req.SystemCount,
		ConfirmDiscrepancy: req.ConfirmDiscrepancy,
		SetVerified:        req.SetVerified,
		Operator:           claims.Username,
		Role:               claims.Role,
	})
	if err != nil {
		h.respondDomainError(w, r, err, "Failed to submit inventory count")
		return
	}

	message := "Inventory count saved"
	if req.ConfirmDiscrepancy {
		message = "Discrepancy confirmed and stock updated"
		h.metrics.discrepancyConfirmed(result.Count.Discrepancy)
	} else {
		h.metrics.countSaved(string(result.Count.Status))
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    SubmitCountResponse{Count: result.Count, Book: result.Book},
	})
}

// respondDomainError maps domain sentinels to HTTP status codes
func (h *InventoryHandler) respondDomainError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(r.Context()).Err(err).Msg(message)
		respondError(w, status, message)
		return
	}
	logger.Warn(r.Context()).Err(err).Int("status", status).Msg(message)
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func programIDParam(w http.ResponseWriter, r *http.Request, required bool) (uint, bool) {
	raw := r.URL.Query().Get("programId")
	if raw == "" && !required {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, "Invalid programId")
		return 0, false
	}
	return uint(id), true
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}
