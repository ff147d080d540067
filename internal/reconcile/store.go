package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/pkg/logger"
)

// SubmitRequest is the payload of a count submission
type SubmitRequest struct {
	ProgramID          uint
	CountDate          string
	ManualCount        int
	SystemCount        int
	ConfirmDiscrepancy bool
	SetVerified        bool
}

// Backend is the inventory service as seen by the workflow
type Backend interface {
	ListBooks(ctx context.Context, programID uint) ([]domain.Book, error)
	ListApprovedTransactions(ctx context.Context, programID uint, upTo string) ([]domain.Transaction, error)
	ListCounts(ctx context.Context, programID uint, date string) ([]domain.InventoryCount, error)
	SubmitCount(ctx context.Context, bookID uint, req SubmitRequest) (*domain.InventoryCount, *domain.Book, error)
}

// Store holds the reconciliation state of one program on one date. All
// mutations go through its methods and only successful backend responses
// change the cached data. Safe for concurrent use.
type Store struct {
	backend    Backend
	programID  uint
	capability Capability

	mu         sync.RWMutex
	date       string
	generation uint64
	loaded     bool
	books      []domain.Book
	txs        []domain.Transaction
	counts     []domain.InventoryCount
	busy       map[Key]bool
	confirming map[Key]bool
	// records merged since the current Load started
	mergedCounts map[Key]domain.InventoryCount
	mergedBooks  map[uint]domain.Book
}

// NewStore creates an empty store. Call Load before anything else.
func NewStore(backend Backend, programID uint, capability Capability) *Store {
	return &Store{
		backend:    backend,
		programID:  programID,
		capability: capability,
		busy:         make(map[Key]bool),
		confirming:   make(map[Key]bool),
		mergedCounts: make(map[Key]domain.InventoryCount),
		mergedBooks:  make(map[uint]domain.Book),
	}
}

// Capability returns the operator capability the store was created with
func (s *Store) Capability() Capability {
	return s.capability
}

// Date returns the selected reconciliation date
func (s *Store) Date() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.date
}

// Load selects date and fetches books, approved transactions up to the date
// and the date's counts concurrently. State is replaced only when all three
// succeed and no later Load has started in the meantime. Rows with a save
// or confirmation in flight stay busy across reloads, and records merged
// while the fetch runs are kept over the fetched ones.
func (s *Store) Load(ctx context.Context, date string) error {
	date, err := domain.ParseCountDate(date)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.date != date {
		s.confirming = make(map[Key]bool)
	}
	s.date = date
	s.loaded = false
	s.books, s.txs, s.counts = nil, nil, nil
	s.mergedCounts = make(map[Key]domain.InventoryCount)
	s.mergedBooks = make(map[uint]domain.Book)
	s.mu.Unlock()

	var (
		books  []domain.Book
		txs    []domain.Transaction
		counts []domain.InventoryCount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		books, err = s.backend.ListBooks(gctx, s.programID)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.backend.ListApprovedTransactions(gctx, s.programID, date)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.backend.ListCounts(gctx, s.programID, date)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error(ctx).Err(err).Str("date", date).Uint("program_id", s.programID).Msg("Failed to load inventory")
		return fmt.Errorf("failed to load inventory for %s: %w", date, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		logger.Debug(ctx).Str("date", date).Msg("Discarding superseded inventory load")
		return nil
	}
	s.books, s.txs, s.counts = books, txs, counts
	for _, b := range s.mergedBooks {
		s.mergeBookLocked(b)
	}
	for _, c := range s.mergedCounts {
		s.mergeCountLocked(c)
	}
	s.loaded = true

	logger.Info(ctx).
		Str("date", date).
		Int("books", len(books)).
		Int("transactions", len(txs)).
		Int("counts", len(counts)).
		Msg("Inventory loaded")
	return nil
}

// Lines returns one line per active book ordered by book id
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linesLocked()
}

// Rows returns the count rows of Lines
func (s *Store) Rows() []Row {
	lines := s.Lines()
	rows := make([]Row, len(lines))
	for i, l := range lines {
		rows[i] = l.Row
	}
	return rows
}

// Summary aggregates the current rows
func (s *Store) Summary() Summary {
	return Summarize(s.Rows())
}

// Book returns the cached book
func (s *Store) Book(bookID uint) (domain.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.books {
		if b.ID == bookID {
			return b, true
		}
	}
	return domain.Book{}, false
}

// Busy reports whether a save or confirmation is in flight for the book
func (s *Store) Busy(bookID uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy[Key{BookID: bookID, Date: s.date}]
}

// Confirming reports whether a confirmation has been started for the book
func (s *Store) Confirming(bookID uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.confirming[Key{BookID: bookID, Date: s.date}]
}

// SaveManualCount persists a physical count for the selected date. The
// system count sent is the one currently shown for the row. Equal counts
// are saved as verified.
func (s *Store) SaveManualCount(ctx context.Context, bookID uint, manual int) (*domain.InventoryCount, error) {
	if !s.capability.CanEdit() {
		return nil, fmt.Errorf("%w: role cannot enter manual counts", domain.ErrForbidden)
	}
	if manual < 0 {
		return nil, fmt.Errorf("%w: manual count must be non-negative", domain.ErrValidation)
	}

	s.mu.Lock()
	line, err := s.lineLocked(bookID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if line.Busy {
		s.mu.Unlock()
		return nil, ErrRowBusy
	}
	if line.Row.Status() == domain.CountVerified {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: count for book %d is already verified", ErrNotEditable, bookID)
	}
	key := line.Row.Key()
	system := line.Row.System()
	s.busy[key] = true
	s.mu.Unlock()

	count, _, err := s.backend.SubmitCount(ctx, bookID, SubmitRequest{
		ProgramID:   s.programID,
		CountDate:   key.Date,
		ManualCount: manual,
		SystemCount: system,
		SetVerified: manual == system,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, key)
	if err != nil {
		logger.Warn(ctx).Err(err).Uint("book_id", bookID).Str("date", key.Date).Msg("Failed to save manual count")
		return nil, err
	}
	if s.date != key.Date {
		logger.Debug(ctx).Uint("book_id", bookID).Str("date", key.Date).Msg("Discarding count for a date no longer selected")
		return count, nil
	}
	delete(s.confirming, key)
	s.mergeCountLocked(*count)
	return count, nil
}

// BeginConfirm marks a discrepancy as awaiting confirmation
func (s *Store) BeginConfirm(bookID uint) error {
	if !s.capability.CanEdit() {
		return fmt.Errorf("%w: role cannot confirm discrepancies", domain.ErrForbidden)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	line, err := s.lineLocked(bookID)
	if err != nil {
		return err
	}
	if line.Busy {
		return ErrRowBusy
	}
	if !line.Confirmable {
		return fmt.Errorf("%w: book %d has no discrepancy to confirm", ErrNotEditable, bookID)
	}
	s.confirming[line.Row.Key()] = true
	return nil
}

// CancelConfirm abandons a pending confirmation. It never calls the backend.
func (s *Store) CancelConfirm(bookID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.confirming, Key{BookID: bookID, Date: s.date})
}

// ConfirmDiscrepancy commits the stored manual count as the book's stock.
// The original system count is sent unchanged. The returned count and book
// replace the cached ones together, then the date's counts are fetched again.
func (s *Store) ConfirmDiscrepancy(ctx context.Context, bookID uint) (*domain.InventoryCount, *domain.Book, error) {
	if !s.capability.CanEdit() {
		return nil, nil, fmt.Errorf("%w: role cannot confirm discrepancies", domain.ErrForbidden)
	}

	s.mu.Lock()
	line, err := s.lineLocked(bookID)
	if err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	if line.Busy {
		s.mu.Unlock()
		return nil, nil, ErrRowBusy
	}
	persisted, ok := line.Row.(Persisted)
	if !ok || persisted.Count.Status != domain.CountDiscrepancy || persisted.Count.ManualCount == nil {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: book %d has no discrepancy to confirm", ErrNotEditable, bookID)
	}
	key := persisted.Key()
	s.busy[key] = true
	s.mu.Unlock()

	count, book, err := s.backend.SubmitCount(ctx, bookID, SubmitRequest{
		ProgramID:          s.programID,
		CountDate:          key.Date,
		ManualCount:        *persisted.Count.ManualCount,
		SystemCount:        persisted.Count.SystemCount,
		ConfirmDiscrepancy: true,
		SetVerified:        true,
	})

	s.mu.Lock()
	delete(s.busy, key)
	if err != nil {
		s.mu.Unlock()
		logger.Warn(ctx).Err(err).Uint("book_id", bookID).Str("date", key.Date).Msg("Failed to confirm discrepancy")
		return nil, nil, err
	}
	if s.date != key.Date {
		s.mu.Unlock()
		return count, book, nil
	}
	delete(s.confirming, key)
	s.mergeCountLocked(*count)
	if book != nil {
		s.mergeBookLocked(*book)
	}
	gen := s.generation
	s.mu.Unlock()

	logger.Info(ctx).
		Uint("book_id", bookID).
		Str("date", key.Date).
		Int("discrepancy", count.Discrepancy).
		Msg("Discrepancy confirmed")

	s.refreshCounts(ctx, key.Date, gen)
	return count, book, nil
}

// refreshCounts re-fetches the date's counts after a stock commit. The
// commit already succeeded, so a failed refresh only leaves the cache as is.
func (s *Store) refreshCounts(ctx context.Context, date string, gen uint64) {
	counts, err := s.backend.ListCounts(ctx, s.programID, date)
	if err != nil {
		logger.Warn(ctx).Err(err).Str("date", date).Msg("Failed to refresh counts after confirmation")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.date != date {
		return
	}
	s.counts = counts
}

func (s *Store) linesLocked() []Line {
	if !s.loaded {
		return nil
	}
	byBook := make(map[uint]domain.InventoryCount, len(s.counts))
	for _, c := range s.counts {
		if c.CountDate == s.date {
			byBook[c.BookID] = c
		}
	}

	lines := make([]Line, 0, len(s.books))
	for _, b := range s.books {
		if !b.IsActive {
			continue
		}
		var row Row
		if c, ok := byBook[b.ID]; ok {
			row = Persisted{Count: c}
		} else {
			row = Derived{BookID: b.ID, Date: s.date, SystemCount: domain.DeriveSystemCount(b, s.txs)}
		}
		key := row.Key()
		busy := s.busy[key]
		edit := s.capability.CanEdit() && !busy
		_, persisted := row.(Persisted)
		lines = append(lines, Line{
			Book:        b,
			Row:         row,
			Busy:        busy,
			Confirming:  s.confirming[key],
			Editable:    edit && row.Status() != domain.CountVerified,
			Confirmable: edit && persisted && row.Status() == domain.CountDiscrepancy && row.Manual() != nil,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Book.ID < lines[j].Book.ID })
	return lines
}

func (s *Store) lineLocked(bookID uint) (Line, error) {
	if !s.loaded {
		return Line{}, ErrNotLoaded
	}
	for _, l := range s.linesLocked() {
		if l.Book.ID == bookID {
			return l, nil
		}
	}
	return Line{}, fmt.Errorf("%w: active book %d", domain.ErrNotFound, bookID)
}

// mergeCountLocked replaces the record with the same book and date or
// appends it
func (s *Store) mergeCountLocked(count domain.InventoryCount) {
	s.mergedCounts[Key{BookID: count.BookID, Date: count.CountDate}] = count
	for i, c := range s.counts {
		if c.BookID == count.BookID && c.CountDate == count.CountDate {
			s.counts[i] = count
			return
		}
	}
	s.counts = append(s.counts, count)
}

func (s *Store) mergeBookLocked(book domain.Book) {
	s.mergedBooks[book.ID] = book
	for i, b := range s.books {
		if b.ID == book.ID {
			s.books[i] = book
			return
		}
	}
	s.books = append(s.books, book)
}
