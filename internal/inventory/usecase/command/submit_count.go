package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/kafka"
	"github.com/tair/colporter/pkg/auth"
	"github.com/tair/colporter/pkg/logger"
)

// EventPublisher publishes count lifecycle events
type EventPublisher interface {
	PublishCountSaved(ctx context.Context, event kafka.CountEvent) error
	PublishCountConfirmed(ctx context.Context, event kafka.CountEvent) error
}

// SubmitCountCommand represents a manual count save or a discrepancy confirmation
type SubmitCountCommand struct {
	ProgramID          uint
	BookID             uint
	CountDate          string
	ManualCount        int
	SystemCount        int
	ConfirmDiscrepancy bool
	SetVerified        bool
	Operator           string
	Role               auth.Role
}

// SubmitCountResult carries the stored count and, after a confirmation, the
// book with its committed stock
type SubmitCountResult struct {
	Count *domain.InventoryCount
	Book  *domain.Book
}

// SubmitCountHandler handles count submissions
type SubmitCountHandler struct {
	books  domain.BookRepository
	txs    domain.TransactionRepository
	counts domain.CountRepository
	locker domain.RowLocker
	events EventPublisher
	now    func() time.Time
}

// NewSubmitCountHandler creates a new submit count handler. events may be nil.
func NewSubmitCountHandler(
	books domain.BookRepository,
	txs domain.TransactionRepository,
	counts domain.CountRepository,
	locker domain.RowLocker,
	events EventPublisher,
) *SubmitCountHandler {
	return &SubmitCountHandler{
		books:  books,
		txs:    txs,
		counts: counts,
		locker: locker,
		events: events,
		now:    time.Now,
	}
}

// Handle executes the submit count command
func (h *SubmitCountHandler) Handle(ctx context.Context, cmd SubmitCountCommand) (*SubmitCountResult, error) {
	if !cmd.Role.CanReconcile() {
		return nil, fmt.Errorf("%w: role %q cannot record inventory counts", domain.ErrForbidden, cmd.Role)
	}
	if cmd.ProgramID == 0 {
		return nil, fmt.Errorf("%w: programId is required", domain.ErrValidation)
	}
	if cmd.BookID == 0 {
		return nil, fmt.Errorf("%w: bookId is required", domain.ErrValidation)
	}
	date, err := domain.ParseCountDate(cmd.CountDate)
	if err != nil {
		return nil, err
	}
	if cmd.ManualCount < 0 || cmd.SystemCount < 0 {
		return nil, fmt.Errorf("%w: counts must be non-negative", domain.ErrValidation)
	}

	book, err := h.books.FindByID(ctx, cmd.BookID)
	if err != nil {
		return nil, err
	}
	if book.ProgramID != cmd.ProgramID {
		return nil, fmt.Errorf("book %d in program %d: %w", cmd.BookID, cmd.ProgramID, domain.ErrNotFound)
	}
	if !book.IsActive {
		return nil, fmt.Errorf("%w: book %d is not active", domain.ErrValidation, cmd.BookID)
	}

	unlock, err := h.locker.Lock(ctx, fmt.Sprintf("count:%d:%d:%s", cmd.ProgramID, cmd.BookID, date))
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := h.counts.Find(ctx, cmd.ProgramID, cmd.BookID, date)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if cmd.ConfirmDiscrepancy {
		return h.confirm(ctx, cmd, book, existing)
	}
	return h.save(ctx, cmd, date, existing)
}

func (h *SubmitCountHandler) save(ctx context.Context, cmd SubmitCountCommand, date string, existing *domain.InventoryCount) (*SubmitCountResult, error) {
	if cmd.SetVerified && cmd.ManualCount != cmd.SystemCount {
		return nil, fmt.Errorf("%w: setVerified requires matching counts, got manual %d and system %d",
			domain.ErrValidation, cmd.ManualCount, cmd.SystemCount)
	}

	count := existing
	if count == nil {
		count = &domain.InventoryCount{ProgramID: cmd.ProgramID, BookID: cmd.BookID, CountDate: date}
	} else if count.Status == domain.CountVerified {
		return nil, fmt.Errorf("%w: count for book %d on %s is already verified", domain.ErrConflict, cmd.BookID, date)
	}

	if err := count.RecordManual(cmd.ManualCount, cmd.SystemCount, cmd.Operator); err != nil {
		return nil, err
	}
	if err := h.counts.Save(ctx, count); err != nil {
		return nil, fmt.Errorf("failed to save count: %w", err)
	}

	logger.Info(ctx).
		Uint("book_id", count.BookID).
		Str("count_date", count.CountDate).
		Int("system_count", count.SystemCount).
		Int("manual_count", *count.ManualCount).
		Str("status", string(count.Status)).
		Str("operator", cmd.Operator).
		Msg("Inventory count saved")

	h.publish(ctx, count, nil, false)
	return &SubmitCountResult{Count: count}, nil
}

func (h *SubmitCountHandler) confirm(ctx context.Context, cmd SubmitCountCommand, book *domain.Book, count *domain.InventoryCount) (*SubmitCountResult, error) {
	if count == nil {
		return nil, fmt.Errorf("no count saved for book %d on %s: %w", cmd.BookID, cmd.CountDate, domain.ErrNotFound)
	}
	if count.ManualCount == nil || *count.ManualCount != cmd.ManualCount {
		return nil, fmt.Errorf("%w: manual count changed since it was saved, reload and retry", domain.ErrConflict)
	}
	if err := count.Confirm(cmd.Operator, h.now()); err != nil {
		return nil, err
	}

	delivered, err := h.txs.DeliveredByBook(ctx, book.ProgramID, []uint{book.ID}, count.CountDate)
	if err != nil {
		return nil, fmt.Errorf("failed to sum approved deliveries: %w", err)
	}

	before := book.Stock
	book.CommitCount(*count.ManualCount, delivered[book.ID])
	adj := &domain.StockAdjustment{
		BookID:         book.ID,
		CountDate:      count.CountDate,
		QuantityBefore: before,
		QuantityAfter:  book.Stock,
		Reason:         fmt.Sprintf("confirmed discrepancy of %d", count.Discrepancy),
		CreatedBy:      cmd.Operator,
	}
	if err := h.counts.Confirm(ctx, count, book, adj); err != nil {
		return nil, fmt.Errorf("failed to confirm count: %w", err)
	}

	logger.Info(ctx).
		Uint("book_id", book.ID).
		Str("count_date", count.CountDate).
		Int("discrepancy", count.Discrepancy).
		Int("stock_before", before).
		Int("stock_after", book.Stock).
		Str("operator", cmd.Operator).
		Msg("Inventory discrepancy confirmed")

	h.publish(ctx, count, book, true)
	return &SubmitCountResult{Count: count, Book: book}, nil
}

// publish is best effort: the count is already stored
func (h *SubmitCountHandler) publish(ctx context.Context, count *domain.InventoryCount, book *domain.Book, confirmed bool) {
	if h.events == nil {
		return
	}
	event := kafka.CountEvent{
		CountID:     count.ID,
		ProgramID:   count.ProgramID,
		BookID:      count.BookID,
		CountDate:   count.CountDate,
		SystemCount: count.SystemCount,
		ManualCount: *count.ManualCount,
		Discrepancy: count.Discrepancy,
		Status:      string(count.Status),
		Operator:    count.UpdatedBy,
	}

	var err error
	if confirmed {
		stock := book.Stock
		event.Stock = &stock
		err = h.events.PublishCountConfirmed(ctx, event)
	} else {
		err = h.events.PublishCountSaved(ctx, event)
	}
	if err != nil {
		logger.Warn(ctx).Err(err).Uint("book_id", count.BookID).Msg("Failed to publish count event")
	}
}
