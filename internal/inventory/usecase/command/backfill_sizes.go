package command

import (
	"context"
	"fmt"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/pkg/logger"
)

// BackfillBookSizesHandler classifies books stored before the size field
// existed. It runs once at startup and is the only caller of the price rule.
type BackfillBookSizesHandler struct {
	books domain.BookRepository
}

// NewBackfillBookSizesHandler creates a new backfill handler
func NewBackfillBookSizesHandler(books domain.BookRepository) *BackfillBookSizesHandler {
	return &BackfillBookSizesHandler{books: books}
}

// Handle executes the backfill and returns the number of updated books
func (h *BackfillBookSizesHandler) Handle(ctx context.Context) (int, error) {
	n, err := h.books.BackfillSizes(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to backfill book sizes: %w", err)
	}
	if n > 0 {
		logger.Info(ctx).Int("books", n).Msg("Backfilled legacy book sizes")
	}
	return n, nil
}
