package command

import (
	"context"
	"fmt"
	"time"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/pkg/logger"
)

// ReviewTransactionCommand approves or rejects a pending transaction
type ReviewTransactionCommand struct {
	ExternalID string
	Status     domain.TransactionStatus
	ReviewedBy string
}

// ReviewTransactionHandler handles transaction reviews
type ReviewTransactionHandler struct {
	txs domain.TransactionRepository
	now func() time.Time
}

// NewReviewTransactionHandler creates a new review transaction handler
func NewReviewTransactionHandler(txs domain.TransactionRepository) *ReviewTransactionHandler {
	return &ReviewTransactionHandler{txs: txs, now: time.Now}
}

// Handle executes the review command. Repeating the review that already
// happened is a no-op; any other change of a reviewed transaction conflicts.
func (h *ReviewTransactionHandler) Handle(ctx context.Context, cmd ReviewTransactionCommand) (*domain.Transaction, error) {
	if cmd.ExternalID == "" {
		return nil, fmt.Errorf("%w: external id is required", domain.ErrValidation)
	}

	current, err := h.txs.FindByExternalID(ctx, cmd.ExternalID)
	if err != nil {
		return nil, err
	}
	if current.Status == cmd.Status && current.Status != domain.TransactionPending {
		logger.Debug(ctx).Str("external_id", cmd.ExternalID).Msg("Transaction already reviewed")
		return current, nil
	}

	tx, err := h.txs.Review(ctx, cmd.ExternalID, cmd.Status, cmd.ReviewedBy, h.now())
	if err != nil {
		return nil, err
	}

	logger.Info(ctx).
		Str("external_id", tx.ExternalID).
		Str("status", string(tx.Status)).
		Str("reviewed_by", tx.ReviewedBy).
		Msg("Transaction reviewed")
	return tx, nil
}
