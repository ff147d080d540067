package query

import (
	"context"
	"fmt"

	"github.com/tair/colporter/internal/inventory/domain"
)

// ListBooksQuery represents the query to list the books of a program
type ListBooksQuery struct {
	ProgramID  uint
	ActiveOnly bool
}

// ListBooksHandler handles list books query
type ListBooksHandler struct {
	repo domain.BookRepository
}

// NewListBooksHandler creates a new list books handler
func NewListBooksHandler(repo domain.BookRepository) *ListBooksHandler {
	return &ListBooksHandler{repo: repo}
}

// Handle executes the list books query
func (h *ListBooksHandler) Handle(ctx context.Context, query ListBooksQuery) ([]domain.Book, error) {
	if query.ProgramID == 0 {
		return nil, fmt.Errorf("%w: programId is required", domain.ErrValidation)
	}

	books, err := h.repo.FindByProgram(ctx, query.ProgramID, query.ActiveOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}
