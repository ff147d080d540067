package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/internal/inventory/repository"
	"github.com/tair/colporter/internal/inventory/repository/memory"
	"github.com/tair/colporter/kafka"
	"github.com/tair/colporter/pkg/auth"
)

const (
	program = uint(7)
	day     = "2026-03-01"
)

type recordedEvents struct {
	mu        sync.Mutex
	saved     []kafka.CountEvent
	confirmed []kafka.CountEvent
}

func (r *recordedEvents) PublishCountSaved(_ context.Context, e kafka.CountEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, e)
	return nil
}

func (r *recordedEvents) PublishCountConfirmed(_ context.Context, e kafka.CountEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, e)
	return nil
}

type fixture struct {
	store   *memory.Store
	events  *recordedEvents
	submit  *SubmitCountHandler
	record  *RecordTransactionHandler
	review  *ReviewTransactionHandler
	ctx     context.Context
	confirm time.Time
}

func newFixture(t *testing.T, books ...domain.Book) *fixture {
	t.Helper()
	store := memory.NewStore()
	for _, b := range books {
		store.PutBook(b)
	}
	events := &recordedEvents{}
	f := &fixture{
		store:   store,
		events:  events,
		submit:  NewSubmitCountHandler(store.Books(), store.Transactions(), store.Counts(), repository.NewLocalLocker(), events),
		record:  NewRecordTransactionHandler(store.Books(), store.Transactions()),
		review:  NewReviewTransactionHandler(store.Transactions()),
		ctx:     context.Background(),
		confirm: time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC),
	}
	f.submit.now = func() time.Time { return f.confirm }
	return f
}

func (f *fixture) approvedSale(t *testing.T, id string, bookID uint, qty int) {
	t.Helper()
	_, err := f.record.Handle(f.ctx, RecordTransactionCommand{
		ExternalID: id, ProgramID: program, Date: day,
		Items: []domain.TransactionItem{{BookID: bookID, Quantity: qty}},
	})
	require.NoError(t, err)
	_, err = f.review.Handle(f.ctx, ReviewTransactionCommand{ExternalID: id, Status: domain.TransactionApproved, ReviewedBy: "leader"})
	require.NoError(t, err)
}

func saveCmd(bookID uint, manual, system int) SubmitCountCommand {
	return SubmitCountCommand{
		ProgramID: program, BookID: bookID, CountDate: day,
		ManualCount: manual, SystemCount: system,
		SetVerified: manual == system,
		Operator:    "sup", Role: auth.RoleSupervisor,
	}
}

func confirmCmd(bookID uint, manual, system int) SubmitCountCommand {
	cmd := saveCmd(bookID, manual, system)
	cmd.ConfirmDiscrepancy = true
	cmd.SetVerified = true
	cmd.Operator = "admin"
	cmd.Role = auth.RoleAdmin
	return cmd
}

func TestDiscrepancyThenConfirmCommitsStock(t *testing.T) {
	f := newFixture(t, domain.Book{ID: 1, ProgramID: program, InitialStock: 100, Stock: 100, IsActive: true})
	f.approvedSale(t, "tx-1", 1, 30)

	res, err := f.submit.Handle(f.ctx, saveCmd(1, 65, 70))
	require.NoError(t, err)
	assert.Equal(t, domain.CountDiscrepancy, res.Count.Status)
	assert.Equal(t, -5, res.Count.Discrepancy)
	assert.Nil(t, res.Book, "a save must not touch the book")

	book, _ := f.store.Books().FindByID(f.ctx, 1)
	assert.Equal(t, 70, book.Stock)

	res, err = f.submit.Handle(f.ctx, confirmCmd(1, 65, 70))
	require.NoError(t, err)
	assert.Equal(t, domain.CountVerified, res.Count.Status)
	assert.Equal(t, 70, res.Count.SystemCount)
	assert.Equal(t, -5, res.Count.Discrepancy)
	assert.True(t, res.Count.Confirmed)
	assert.Equal(t, "admin", res.Count.ConfirmedBy)
	require.NotNil(t, res.Book)
	assert.Equal(t, 65, res.Book.Stock)
	assert.Equal(t, 95, res.Book.InitialStock)

	book, _ = f.store.Books().FindByID(f.ctx, 1)
	assert.Equal(t, 65, book.Stock)

	adjustments := f.store.Adjustments()
	require.Len(t, adjustments, 1)
	assert.Equal(t, 70, adjustments[0].QuantityBefore)
	assert.Equal(t, 65, adjustments[0].QuantityAfter)
	assert.Equal(t, res.Count.ID, adjustments[0].CountID)

	require.Len(t, f.events.saved, 1)
	require.Len(t, f.events.confirmed, 1)
	assert.Equal(t, 65, *f.events.confirmed[0].Stock)
}

func TestMatchingCountVerifiesWithoutConfirmation(t *testing.T) {
	f := newFixture(t, domain.Book{ID: 2, ProgramID: program, InitialStock: 50, Stock: 50, IsActive: true})

	res, err := f.submit.Handle(f.ctx, saveCmd(2, 50, 50))
	require.NoError(t, err)
	assert.Equal(t, domain.CountVerified, res.Count.Status)
	assert.Zero(t, res.Count.Discrepancy)

	_, err = f.submit.Handle(f.ctx, confirmCmd(2, 50, 50))
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.submit.Handle(f.ctx, saveCmd(2, 49, 50))
	assert.ErrorIs(t, err, domain.ErrConflict, "verified records are not reopened")
}

func TestResaveReevaluatesDiscrepancy(t *testing.T) {
	f := newFixture(t, domain.Book{ID: 1, ProgramID: program, InitialStock: 10, Stock: 10, IsActive: true})

	_, err := f.submit.Handle(f.ctx, saveCmd(1, 8, 10))
	require.NoError(t, err)

	res, err := f.submit.Handle(f.ctx, saveCmd(1, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, domain.CountVerified, res.Count.Status)

	counts, err := f.store.Counts().ListByDate(f.ctx, program, day)
	require.NoError(t, err)
	assert.Len(t, counts, 1)
}

func TestSubmitCountValidation(t *testing.T) {
	f := newFixture(t,
		domain.Book{ID: 1, ProgramID: program, InitialStock: 10, Stock: 10, IsActive: true},
		domain.Book{ID: 2, ProgramID: program, IsActive: false},
		domain.Book{ID: 3, ProgramID: 99, IsActive: true},
	)

	tests := []struct {
		name string
		cmd  func() SubmitCountCommand
		want error
	}{
		{"colporter role", func() SubmitCountCommand { c := saveCmd(1, 1, 1); c.Role = auth.RoleColporter; return c }, domain.ErrForbidden},
		{"leader role", func() SubmitCountCommand { c := saveCmd(1, 1, 1); c.Role = auth.RoleLeader; return c }, domain.ErrForbidden},
		{"negative manual", func() SubmitCountCommand { return saveCmd(1, -1, 1) }, domain.ErrValidation},
		{"negative system", func() SubmitCountCommand { return saveCmd(1, 1, -1) }, domain.ErrValidation},
		{"bad date", func() SubmitCountCommand { c := saveCmd(1, 1, 1); c.CountDate = "03/01/2026"; return c }, domain.ErrValidation},
		{"missing program", func() SubmitCountCommand { c := saveCmd(1, 1, 1); c.ProgramID = 0; return c }, domain.ErrValidation},
		{"verified with mismatch", func() SubmitCountCommand { c := saveCmd(1, 1, 2); c.SetVerified = true; return c }, domain.ErrValidation},
		{"inactive book", func() SubmitCountCommand { return saveCmd(2, 1, 1) }, domain.ErrValidation},
		{"other program", func() SubmitCountCommand { return saveCmd(3, 1, 1) }, domain.ErrNotFound},
		{"unknown book", func() SubmitCountCommand { return saveCmd(42, 1, 1) }, domain.ErrNotFound},
		{"confirm without save", func() SubmitCountCommand { return confirmCmd(1, 1, 10) }, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.submit.Handle(f.ctx, tt.cmd())
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Empty(t, f.events.saved)
}

func TestConfirmRejectsChangedManualCount(t *testing.T) {
	f := newFixture(t, domain.Book{ID: 1, ProgramID: program, InitialStock: 10, Stock: 10, IsActive: true})

	_, err := f.submit.Handle(f.ctx, saveCmd(1, 8, 10))
	require.NoError(t, err)

	_, err = f.submit.Handle(f.ctx, confirmCmd(1, 7, 10))
	assert.ErrorIs(t, err, domain.ErrConflict)

	book, _ := f.store.Books().FindByID(f.ctx, 1)
	assert.Equal(t, 10, book.Stock)
	assert.Empty(t, f.store.Adjustments())
}

func TestConfirmKeepsStoredSystemCount(t *testing.T) {
	f := newFixture(t, domain.Book{ID: 1, ProgramID: program, InitialStock: 10, Stock: 10, IsActive: true})

	_, err := f.submit.Handle(f.ctx, saveCmd(1, 8, 10))
	require.NoError(t, err)

	res, err := f.submit.Handle(f.ctx, confirmCmd(1, 8, 3))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Count.SystemCount)
	assert.Equal(t, -2, res.Count.Discrepancy)
}

func TestOversoldStockStaysAtZero(t *testing.T) {
	f := newFixture(t, domain.Book{ID: 1, ProgramID: program, InitialStock: 10, Stock: 10, IsActive: true})
	f.approvedSale(t, "tx-1", 1, 15)

	book, err := f.store.Books().FindByID(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, book.Stock)
	assert.Equal(t, 15, book.Sold)
}
