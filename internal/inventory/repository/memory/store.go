// Package memory holds in-process implementations of the inventory
// repositories. They back STORAGE=memory and the package tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tair/colporter/internal/inventory/domain"
)

type countKey struct {
	programID uint
	bookID    uint
	date      string
}

// Store keeps every inventory table in maps guarded by one mutex, so
// multi-entity writes are atomic the way a database transaction is.
type Store struct {
	mu          sync.RWMutex
	books       map[uint]domain.Book
	txs         map[string]domain.Transaction
	counts      map[countKey]domain.InventoryCount
	adjustments []domain.StockAdjustment
	nextTxID    uint
	nextCountID uint
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		books:  make(map[uint]domain.Book),
		txs:    make(map[string]domain.Transaction),
		counts: make(map[countKey]domain.InventoryCount),
		now:    time.Now,
	}
}

// PutBook inserts or replaces a book
func (s *Store) PutBook(book domain.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = s.now()
	}
	book.UpdatedAt = s.now()
	s.books[book.ID] = book
}

// Adjustments returns a copy of the stock adjustment audit trail
func (s *Store) Adjustments() []domain.StockAdjustment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.StockAdjustment(nil), s.adjustments...)
}

func (s *Store) Books() *BookRepository { return &BookRepository{s} }
func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{s} }
func (s *Store) Counts() *CountRepository { return &CountRepository{s} }

type BookRepository struct{ s *Store }

func (r *BookRepository) FindByID(_ context.Context, id uint) (*domain.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	book, ok := r.s.books[id]
	if !ok {
		return nil, fmt.Errorf("book %d: %w", id, domain.ErrNotFound)
	}
	return &book, nil
}

func (r *BookRepository) FindByProgram(_ context.Context, programID uint, activeOnly bool) ([]domain.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	books := make([]domain.Book, 0, len(r.s.books))
	for _, b := range r.s.books {
		if b.ProgramID != programID || (activeOnly && !b.IsActive) {
			continue
		}
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

func (r *BookRepository) BackfillSizes(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for id, b := range r.s.books {
		if b.Size != "" {
			continue
		}
		b.Size = domain.LegacySizeFromPrice(b.Price)
		r.s.books[id] = b
		n++
	}
	return n, nil
}

type TransactionRepository struct{ s *Store }

func (r *TransactionRepository) Create(_ context.Context, tx *domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.txs[tx.ExternalID]; exists {
		return fmt.Errorf("transaction %s: %w", tx.ExternalID, domain.ErrConflict)
	}
	r.s.nextTxID++
	tx.ID = r.s.nextTxID
	tx.CreatedAt = r.s.now()
	tx.UpdatedAt = tx.CreatedAt
	r.s.txs[tx.ExternalID] = cloneTx(*tx)
	return nil
}

func (r *TransactionRepository) FindByExternalID(_ context.Context, externalID string) (*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tx, ok := r.s.txs[externalID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", externalID, domain.ErrNotFound)
	}
	tx = cloneTx(tx)
	return &tx, nil
}

func (r *TransactionRepository) List(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	txs := make([]domain.Transaction, 0)
	for _, tx := range r.s.txs {
		if filter.ProgramID != 0 && tx.ProgramID != filter.ProgramID {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if filter.UpTo != "" && tx.Date > filter.UpTo {
			continue
		}
		txs = append(txs, cloneTx(tx))
	}
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Date != txs[j].Date {
			return txs[i].Date < txs[j].Date
		}
		return txs[i].ID < txs[j].ID
	})
	return txs, nil
}

func (r *TransactionRepository) Review(_ context.Context, externalID string, status domain.TransactionStatus, reviewer string, at time.Time) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.txs[externalID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", externalID, domain.ErrNotFound)
	}
	tx = cloneTx(tx)
	if err := tx.Review(status, reviewer, at); err != nil {
		return nil, err
	}

	updated := make(map[uint]domain.Book)
	if status == domain.TransactionApproved {
		for bookID, qty := range tx.QuantityByBook() {
			book, ok := r.s.books[bookID]
			if !ok {
				return nil, fmt.Errorf("book %d: %w", bookID, domain.ErrNotFound)
			}
			book.ApplySale(qty)
			book.UpdatedAt = r.s.now()
			updated[bookID] = book
		}
	}

	for id, book := range updated {
		r.s.books[id] = book
	}
	tx.UpdatedAt = r.s.now()
	r.s.txs[externalID] = tx
	out := cloneTx(tx)
	return &out, nil
}

func (r *TransactionRepository) DeliveredByBook(_ context.Context, programID uint, bookIDs []uint, upTo string) (map[uint]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	wanted := make(map[uint]bool, len(bookIDs))
	for _, id := range bookIDs {
		wanted[id] = true
	}
	delivered := make(map[uint]int, len(bookIDs))
	for _, tx := range r.s.txs {
		if tx.Status != domain.TransactionApproved || tx.ProgramID != programID || tx.Date > upTo {
			continue
		}
		for _, item := range tx.Items {
			if wanted[item.BookID] {
				delivered[item.BookID] += item.Quantity
			}
		}
	}
	return delivered, nil
}

type CountRepository struct{ s *Store }

func (r *CountRepository) Find(_ context.Context, programID, bookID uint, date string) (*domain.InventoryCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count, ok := r.s.counts[countKey{programID, bookID, date}]
	if !ok {
		return nil, fmt.Errorf("count for book %d on %s: %w", bookID, date, domain.ErrNotFound)
	}
	count = cloneCount(count)
	return &count, nil
}

func (r *CountRepository) ListByDate(_ context.Context, programID uint, date string) ([]domain.InventoryCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make([]domain.InventoryCount, 0)
	for key, c := range r.s.counts {
		if key.programID == programID && key.date == date {
			counts = append(counts, cloneCount(c))
		}
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].BookID < counts[j].BookID })
	return counts, nil
}

func (r *CountRepository) Save(_ context.Context, count *domain.InventoryCount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.saveCount(count)
	return nil
}

func (r *CountRepository) Confirm(_ context.Context, count *domain.InventoryCount, book *domain.Book, adj *domain.StockAdjustment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.books[book.ID]
	if !ok {
		return fmt.Errorf("book %d: %w", book.ID, domain.ErrNotFound)
	}
	r.s.saveCount(count)

	stored.Stock = book.Stock
	stored.InitialStock = book.InitialStock
	stored.UpdatedAt = r.s.now()
	r.s.books[book.ID] = stored
	book.UpdatedAt = stored.UpdatedAt

	adj.ID = uint(len(r.s.adjustments) + 1)
	adj.CountID = count.ID
	adj.CreatedAt = r.s.now()
	r.s.adjustments = append(r.s.adjustments, *adj)
	return nil
}

// saveCount upserts by (program, book, date); callers hold the write lock
func (s *Store) saveCount(count *domain.InventoryCount) {
	key := countKey{count.ProgramID, count.BookID, count.CountDate}
	now := s.now()
	if existing, ok := s.counts[key]; ok {
		count.ID = existing.ID
		count.CreatedAt = existing.CreatedAt
	} else {
		s.nextCountID++
		count.ID = s.nextCountID
		count.CreatedAt = now
	}
	count.UpdatedAt = now
	s.counts[key] = cloneCount(*count)
}

func cloneTx(tx domain.Transaction) domain.Transaction {
	tx.Items = append([]domain.TransactionItem(nil), tx.Items...)
	return tx
}

func cloneCount(c domain.InventoryCount) domain.InventoryCount {
	if c.ManualCount != nil {
		manual := *c.ManualCount
		c.ManualCount = &manual
	}
	return c
}
