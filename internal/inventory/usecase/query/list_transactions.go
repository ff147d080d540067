package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/tair/colporter/internal/inventory/domain"
)

// ListTransactionsQuery filters transactions. Date is an inclusive upper bound.
type ListTransactionsQuery struct {
	ProgramID uint
	Status    string
	Date      string
}

// ListTransactionsHandler handles list transactions query
type ListTransactionsHandler struct {
	repo domain.TransactionRepository
}

// NewListTransactionsHandler creates a new list transactions handler
func NewListTransactionsHandler(repo domain.TransactionRepository) *ListTransactionsHandler {
	return &ListTransactionsHandler{repo: repo}
}

// Handle executes the list transactions query
func (h *ListTransactionsHandler) Handle(ctx context.Context, query ListTransactionsQuery) ([]domain.Transaction, error) {
	filter := domain.TransactionFilter{ProgramID: query.ProgramID}

	if query.Status != "" {
		status := domain.TransactionStatus(strings.ToUpper(query.Status))
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, query.Status)
		}
		filter.Status = status
	}
	if query.Date != "" {
		date, err := domain.ParseCountDate(query.Date)
		if err != nil {
			return nil, err
		}
		filter.UpTo = date
	}

	txs, err := h.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}
