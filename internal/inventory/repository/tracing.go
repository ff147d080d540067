package repository

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/colporter/internal/inventory/domain"
)

var tracer = otel.Tracer("inventory-repository")

// BookRepositoryWithTracing wraps a BookRepository with spans
type BookRepositoryWithTracing struct {
	next domain.BookRepository
}

func NewBookRepositoryWithTracing(next domain.BookRepository) *BookRepositoryWithTracing {
	return &BookRepositoryWithTracing{next: next}
}

func (r *BookRepositoryWithTracing) FindByID(ctx context.Context, id uint) (*domain.Book, error) {
	ctx, span := tracer.Start(ctx, "repository.Book.FindByID",
		trace.WithAttributes(attribute.Int("book.id", int(id))),
	)
	defer span.End()

	book, err := r.next.FindByID(ctx, id)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("book.program_id", int(book.ProgramID)),
		attribute.Int("book.stock", book.Stock),
	)
	return book, nil
}

func (r *BookRepositoryWithTracing) FindByProgram(ctx context.Context, programID uint, activeOnly bool) ([]domain.Book, error) {
	ctx, span := tracer.Start(ctx, "repository.Book.FindByProgram",
		trace.WithAttributes(
			attribute.Int("book.program_id", int(programID)),
			attribute.Bool("query.active_only", activeOnly),
		),
	)
	defer span.End()

	books, err := r.next.FindByProgram(ctx, programID, activeOnly)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(books)))
	return books, nil
}

func (r *BookRepositoryWithTracing) BackfillSizes(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "repository.Book.BackfillSizes")
	defer span.End()

	n, err := r.next.BackfillSizes(ctx)
	if err != nil {
		recordError(span, err)
		return 0, err
	}

	span.SetAttributes(attribute.Int("result.updated", n))
	return n, nil
}

// TransactionRepositoryWithTracing wraps a TransactionRepository with spans
type TransactionRepositoryWithTracing struct {
	next domain.TransactionRepository
}

func NewTransactionRepositoryWithTracing(next domain.TransactionRepository) *TransactionRepositoryWithTracing {
	return &TransactionRepositoryWithTracing{next: next}
}

func (r *TransactionRepositoryWithTracing) Create(ctx context.Context, tx *domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "repository.Transaction.Create",
		trace.WithAttributes(
			attribute.String("transaction.external_id", tx.ExternalID),
			attribute.Int("transaction.program_id", int(tx.ProgramID)),
			attribute.Int("transaction.items", len(tx.Items)),
		),
	)
	defer span.End()

	if err := r.next.Create(ctx, tx); err != nil {
		recordError(span, err)
		return err
	}

	span.SetAttributes(attribute.Int("transaction.id", int(tx.ID)))
	return nil
}

func (r *TransactionRepositoryWithTracing) FindByExternalID(ctx context.Context, externalID string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "repository.Transaction.FindByExternalID",
		trace.WithAttributes(attribute.String("transaction.external_id", externalID)),
	)
	defer span.End()

	tx, err := r.next.FindByExternalID(ctx, externalID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepositoryWithTracing) List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "repository.Transaction.List",
		trace.WithAttributes(
			attribute.Int("query.program_id", int(filter.ProgramID)),
			attribute.String("query.status", string(filter.Status)),
			attribute.String("query.up_to", filter.UpTo),
		),
	)
	defer span.End()

	txs, err := r.next.List(ctx, filter)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(txs)))
	return txs, nil
}

func (r *TransactionRepositoryWithTracing) Review(ctx context.Context, externalID string, status domain.TransactionStatus, reviewer string, at time.Time) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "repository.Transaction.Review",
		trace.WithAttributes(
			attribute.String("transaction.external_id", externalID),
			attribute.String("transaction.status", string(status)),
		),
	)
	defer span.End()

	tx, err := r.next.Review(ctx, externalID, status, reviewer, at)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepositoryWithTracing) DeliveredByBook(ctx context.Context, programID uint, bookIDs []uint, upTo string) (map[uint]int, error) {
	ctx, span := tracer.Start(ctx, "repository.Transaction.DeliveredByBook",
		trace.WithAttributes(
			attribute.Int("query.program_id", int(programID)),
			attribute.Int("query.books", len(bookIDs)),
			attribute.String("query.up_to", upTo),
		),
	)
	defer span.End()

	delivered, err := r.next.DeliveredByBook(ctx, programID, bookIDs, upTo)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return delivered, nil
}

// CountRepositoryWithTracing wraps a CountRepository with spans
type CountRepositoryWithTracing struct {
	next domain.CountRepository
}

func NewCountRepositoryWithTracing(next domain.CountRepository) *CountRepositoryWithTracing {
	return &CountRepositoryWithTracing{next: next}
}

func (r *CountRepositoryWithTracing) Find(ctx context.Context, programID, bookID uint, date string) (*domain.InventoryCount, error) {
	ctx, span := tracer.Start(ctx, "repository.Count.Find",
		trace.WithAttributes(
			attribute.Int("count.program_id", int(programID)),
			attribute.Int("count.book_id", int(bookID)),
			attribute.String("count.date", date),
		),
	)
	defer span.End()

	count, err := r.next.Find(ctx, programID, bookID, date)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("count.status", string(count.Status)))
	return count, nil
}

func (r *CountRepositoryWithTracing) ListByDate(ctx context.Context, programID uint, date string) ([]domain.InventoryCount, error) {
	ctx, span := tracer.Start(ctx, "repository.Count.ListByDate",
		trace.WithAttributes(
			attribute.Int("count.program_id", int(programID)),
			attribute.String("count.date", date),
		),
	)
	defer span.End()

	counts, err := r.next.ListByDate(ctx, programID, date)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(counts)))
	return counts, nil
}

func (r *CountRepositoryWithTracing) Save(ctx context.Context, count *domain.InventoryCount) error {
	ctx, span := tracer.Start(ctx, "repository.Count.Save", trace.WithAttributes(countAttributes(count)...))
	defer span.End()

	if err := r.next.Save(ctx, count); err != nil {
		recordError(span, err)
		return err
	}

	span.SetAttributes(attribute.Int("count.id", int(count.ID)))
	return nil
}

func (r *CountRepositoryWithTracing) Confirm(ctx context.Context, count *domain.InventoryCount, book *domain.Book, adj *domain.StockAdjustment) error {
	ctx, span := tracer.Start(ctx, "repository.Count.Confirm",
		trace.WithAttributes(append(countAttributes(count),
			attribute.Int("stock.before", adj.QuantityBefore),
			attribute.Int("stock.after", adj.QuantityAfter),
		)...),
	)
	defer span.End()

	if err := r.next.Confirm(ctx, count, book, adj); err != nil {
		recordError(span, err)
		return err
	}
	return nil
}

func countAttributes(count *domain.InventoryCount) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int("count.book_id", int(count.BookID)),
		attribute.String("count.date", count.CountDate),
		attribute.Int("count.system", count.SystemCount),
		attribute.String("count.status", string(count.Status)),
	}
	if count.ManualCount != nil {
		attrs = append(attrs, attribute.Int("count.manual", *count.ManualCount))
	}
	return attrs
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
