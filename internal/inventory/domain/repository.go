package domain

import (
	"context"
	"time"
)

// BookRepository defines persistence for books
type BookRepository interface {
	FindByID(ctx context.Context, id uint) (*Book, error)
	FindByProgram(ctx context.Context, programID uint, activeOnly bool) ([]Book, error)
	// BackfillSizes assigns a size to rows created before sizes existed and
	// returns the number of rows changed.
	BackfillSizes(ctx context.Context) (int, error)
}

// TransactionFilter narrows a transaction listing. UpTo is an inclusive
// upper bound on the transaction date.
type TransactionFilter struct {
	ProgramID uint
	Status    TransactionStatus
	UpTo      string
}

// TransactionRepository defines persistence for sales transactions
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	FindByExternalID(ctx context.Context, externalID string) (*Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	// Review stores the new status and, for approvals, applies the sale to
	// every referenced book in the same unit of work.
	Review(ctx context.Context, externalID string, status TransactionStatus, reviewer string, at time.Time) (*Transaction, error)
	// DeliveredByBook sums approved quantities per book up to and including upTo.
	DeliveredByBook(ctx context.Context, programID uint, bookIDs []uint, upTo string) (map[uint]int, error)
}

// CountRepository defines persistence for inventory counts
type CountRepository interface {
	Find(ctx context.Context, programID, bookID uint, date string) (*InventoryCount, error)
	ListByDate(ctx context.Context, programID uint, date string) ([]InventoryCount, error)
	// Save inserts or replaces the record for (program, book, date).
	Save(ctx context.Context, count *InventoryCount) error
	// Confirm stores the confirmed count, the book's new stock and the audit
	// row atomically.
	Confirm(ctx context.Context, count *InventoryCount, book *Book, adj *StockAdjustment) error
}

// RowLocker serialises writers of the same key
type RowLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
