package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/colporter/internal/inventory/domain"
)

func TestRecordTransactionIsIdempotent(t *testing.T) {
	f := newFixture(t, domain.Book{ID: 1, ProgramID: program, InitialStock: 10, Stock: 10, IsActive: true})
	cmd := RecordTransactionCommand{
		ExternalID: "tx-1", ProgramID: program, Date: day, CreatedBy: "colporter",
		Items: []domain.TransactionItem{{BookID: 1, Quantity: 2}},
	}

	first, err := f.record.Handle(f.ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionPending, first.Status)

	again, err := f.record.Handle(f.ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	all, err := f.store.Transactions().List(f.ctx, domain.TransactionFilter{ProgramID: program})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecordTransactionValidation(t *testing.T) {
	f := newFixture(t,
		domain.Book{ID: 1, ProgramID: program, IsActive: true},
		domain.Book{ID: 2, ProgramID: 99, IsActive: true},
	)
	valid := func() RecordTransactionCommand {
		return RecordTransactionCommand{
			ExternalID: "tx", ProgramID: program, Date: day,
			Items: []domain.TransactionItem{{BookID: 1, Quantity: 1}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*RecordTransactionCommand)
		want   error
	}{
		{"missing external id", func(c *RecordTransactionCommand) { c.ExternalID = "" }, domain.ErrValidation},
		{"bad date", func(c *RecordTransactionCommand) { c.Date = "yesterday" }, domain.ErrValidation},
		{"no items", func(c *RecordTransactionCommand) { c.Items = nil }, domain.ErrValidation},
		{"zero quantity", func(c *RecordTransactionCommand) { c.Items[0].Quantity = 0 }, domain.ErrValidation},
		{"foreign book", func(c *RecordTransactionCommand) { c.Items[0].BookID = 2 }, domain.ErrNotFound},
		{"unknown book", func(c *RecordTransactionCommand) { c.Items[0].BookID = 9 }, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := valid()
			tt.mutate(&cmd)
			_, err := f.record.Handle(f.ctx, cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReviewTransactionExactlyOnce(t *testing.T) {
	f := newFixture(t, domain.Book{ID: 1, ProgramID: program, InitialStock: 10, Stock: 10, IsActive: true})
	_, err := f.record.Handle(f.ctx, RecordTransactionCommand{
		ExternalID: "tx-1", ProgramID: program, Date: day,
		Items: []domain.TransactionItem{{BookID: 1, Quantity: 4}},
	})
	require.NoError(t, err)

	approve := ReviewTransactionCommand{ExternalID: "tx-1", Status: domain.TransactionApproved, ReviewedBy: "leader"}
	tx, err := f.review.Handle(f.ctx, approve)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionApproved, tx.Status)

	_, err = f.review.Handle(f.ctx, approve)
	require.NoError(t, err, "redelivery of the same review is a no-op")

	book, _ := f.store.Books().FindByID(f.ctx, 1)
	assert.Equal(t, 4, book.Sold, "sale applied once")
	assert.Equal(t, 6, book.Stock)

	_, err = f.review.Handle(f.ctx, ReviewTransactionCommand{ExternalID: "tx-1", Status: domain.TransactionRejected})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.review.Handle(f.ctx, ReviewTransactionCommand{ExternalID: "nope", Status: domain.TransactionApproved})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRejectedTransactionLeavesStock(t *testing.T) {
	f := newFixture(t, domain.Book{ID: 1, ProgramID: program, InitialStock: 10, Stock: 10, IsActive: true})
	_, err := f.record.Handle(f.ctx, RecordTransactionCommand{
		ExternalID: "tx-1", ProgramID: program, Date: day,
		Items: []domain.TransactionItem{{BookID: 1, Quantity: 4}},
	})
	require.NoError(t, err)

	_, err = f.review.Handle(f.ctx, ReviewTransactionCommand{ExternalID: "tx-1", Status: domain.TransactionRejected})
	require.NoError(t, err)

	book, _ := f.store.Books().FindByID(f.ctx, 1)
	assert.Equal(t, 10, book.Stock)
	assert.Zero(t, book.Sold)
}

func TestBackfillBookSizes(t *testing.T) {
	f := newFixture(t, domain.Book{ID: 1, ProgramID: program})
	n, err := NewBackfillBookSizesHandler(f.store.Books()).Handle(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
