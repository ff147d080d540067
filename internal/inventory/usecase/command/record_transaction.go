package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/pkg/logger"
)

// RecordTransactionCommand represents a newly recorded sales transaction
type RecordTransactionCommand struct {
	ExternalID string
	ProgramID  uint
	Date       string
	Items      []domain.TransactionItem
	CreatedBy  string
}

// RecordTransactionHandler stores incoming transactions as PENDING
type RecordTransactionHandler struct {
	books domain.BookRepository
	txs   domain.TransactionRepository
}

// NewRecordTransactionHandler creates a new record transaction handler
func NewRecordTransactionHandler(books domain.BookRepository, txs domain.TransactionRepository) *RecordTransactionHandler {
	return &RecordTransactionHandler{books: books, txs: txs}
}

// Handle executes the record transaction command. Re-delivery of a known
// external id returns the stored transaction unchanged.
func (h *RecordTransactionHandler) Handle(ctx context.Context, cmd RecordTransactionCommand) (*domain.Transaction, error) {
	if cmd.ExternalID == "" {
		return nil, fmt.Errorf("%w: external id is required", domain.ErrValidation)
	}
	if cmd.ProgramID == 0 {
		return nil, fmt.Errorf("%w: program id is required", domain.ErrValidation)
	}
	date, err := domain.ParseCountDate(cmd.Date)
	if err != nil {
		return nil, err
	}
	if len(cmd.Items) == 0 {
		return nil, fmt.Errorf("%w: transaction has no items", domain.ErrValidation)
	}

	existing, err := h.txs.FindByExternalID(ctx, cmd.ExternalID)
	if err == nil {
		logger.Debug(ctx).Str("external_id", cmd.ExternalID).Msg("Transaction already recorded")
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	items := make([]domain.TransactionItem, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for book %d must be positive", domain.ErrValidation, item.BookID)
		}
		book, err := h.books.FindByID(ctx, item.BookID)
		if err != nil {
			return nil, err
		}
		if book.ProgramID != cmd.ProgramID {
			return nil, fmt.Errorf("book %d in program %d: %w", item.BookID, cmd.ProgramID, domain.ErrNotFound)
		}
		items = append(items, domain.TransactionItem{BookID: item.BookID, Quantity: item.Quantity})
	}

	tx := &domain.Transaction{
		ExternalID: cmd.ExternalID,
		ProgramID:  cmd.ProgramID,
		Date:       date,
		Status:     domain.TransactionPending,
		Items:      items,
		CreatedBy:  cmd.CreatedBy,
	}
	if err := h.txs.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	logger.Info(ctx).
		Str("external_id", tx.ExternalID).
		Uint("program_id", tx.ProgramID).
		Str("date", tx.Date).
		Int("items", len(tx.Items)).
		Msg("Transaction recorded")
	return tx, nil
}
