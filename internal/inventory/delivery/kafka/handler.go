package kafka

import (
	"context"
	"errors"
	"strings"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/internal/inventory/usecase/command"
	"github.com/tair/colporter/kafka"
	"github.com/tair/colporter/pkg/logger"
)

// TransactionEventHandler feeds transaction events into the command handlers
type TransactionEventHandler struct {
	record *command.RecordTransactionHandler
	review *command.ReviewTransactionHandler
}

// NewTransactionEventHandler creates a new transaction event handler
func NewTransactionEventHandler(record *command.RecordTransactionHandler, review *command.ReviewTransactionHandler) *TransactionEventHandler {
	return &TransactionEventHandler{record: record, review: review}
}

// Register subscribes the handler to the transaction event types
func (h *TransactionEventHandler) Register(consumer *kafka.Consumer) {
	consumer.RegisterHandler(kafka.EventTypeTransactionRecorded, h.HandleRecorded)
	consumer.RegisterHandler(kafka.EventTypeTransactionReviewed, h.HandleReviewed)
}

// HandleRecorded stores a newly recorded transaction
func (h *TransactionEventHandler) HandleRecorded(ctx context.Context, event kafka.TransactionEvent) error {
	items := make([]domain.TransactionItem, 0, len(event.Items))
	for _, item := range event.Items {
		items = append(items, domain.TransactionItem{BookID: item.BookID, Quantity: item.Quantity})
	}

	_, err := h.record.Handle(ctx, command.RecordTransactionCommand{
		ExternalID: event.ExternalID,
		ProgramID:  event.ProgramID,
		Date:       event.Date,
		Items:      items,
		CreatedBy:  event.Actor,
	})
	return dropPermanent(ctx, event, err)
}

// HandleReviewed applies an approval or rejection
func (h *TransactionEventHandler) HandleReviewed(ctx context.Context, event kafka.TransactionEvent) error {
	_, err := h.review.Handle(ctx, command.ReviewTransactionCommand{
		ExternalID: event.ExternalID,
		Status:     domain.TransactionStatus(strings.ToUpper(event.Status)),
		ReviewedBy: event.Actor,
	})
	return dropPermanent(ctx, event, err)
}

// dropPermanent logs and swallows errors that redelivery cannot fix
func dropPermanent(ctx context.Context, event kafka.TransactionEvent, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
		logger.Warn(ctx).
			Err(err).
			Str("event_type", event.EventType).
			Str("external_id", event.ExternalID).
			Msg("Dropping transaction event")
		return nil
	}
	return err
}
