package query

import (
	"context"
	"fmt"

	"github.com/tair/colporter/internal/inventory/domain"
)

// ListCountsQuery represents the query for one program's counts on one date
type ListCountsQuery struct {
	ProgramID uint
	Date      string
}

// ListCountsHandler handles list counts query
type ListCountsHandler struct {
	repo domain.CountRepository
}

// NewListCountsHandler creates a new list counts handler
func NewListCountsHandler(repo domain.CountRepository) *ListCountsHandler {
	return &ListCountsHandler{repo: repo}
}

// Handle executes the list counts query
func (h *ListCountsHandler) Handle(ctx context.Context, query ListCountsQuery) ([]domain.InventoryCount, error) {
	if query.ProgramID == 0 {
		return nil, fmt.Errorf("%w: programId is required", domain.ErrValidation)
	}
	date, err := domain.ParseCountDate(query.Date)
	if err != nil {
		return nil, err
	}

	counts, err := h.repo.ListByDate(ctx, query.ProgramID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list counts: %w", err)
	}
	return counts, nil
}
