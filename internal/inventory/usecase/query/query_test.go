package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/internal/inventory/repository/memory"
)

func TestListBooks(t *testing.T) {
	store := memory.NewStore()
	store.PutBook(domain.Book{ID: 2, ProgramID: 1, IsActive: true})
	store.PutBook(domain.Book{ID: 1, ProgramID: 1, IsActive: false})
	store.PutBook(domain.Book{ID: 3, ProgramID: 2, IsActive: true})
	h := NewListBooksHandler(store.Books())
	ctx := context.Background()

	all, err := h.Handle(ctx, ListBooksQuery{ProgramID: 1})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint(1), all[0].ID)

	active, err := h.Handle(ctx, ListBooksQuery{ProgramID: 1, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, uint(2), active[0].ID)

	_, err = h.Handle(ctx, ListBooksQuery{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListTransactionsFilters(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, tx := range []domain.Transaction{
		{ExternalID: "a", ProgramID: 1, Date: "2026-03-01", Status: domain.TransactionPending},
		{ExternalID: "b", ProgramID: 1, Date: "2026-03-03", Status: domain.TransactionPending},
	} {
		require.NoError(t, store.Transactions().Create(ctx, &tx))
	}
	h := NewListTransactionsHandler(store.Transactions())

	txs, err := h.Handle(ctx, ListTransactionsQuery{ProgramID: 1, Status: "pending", Date: "2026-03-01"})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "a", txs[0].ExternalID)

	txs, err = h.Handle(ctx, ListTransactionsQuery{ProgramID: 1, Status: "APPROVED"})
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = h.Handle(ctx, ListTransactionsQuery{Status: "LOST"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = h.Handle(ctx, ListTransactionsQuery{Date: "1.3.2026"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListCountsRequiresDate(t *testing.T) {
	h := NewListCountsHandler(memory.NewStore().Counts())
	ctx := context.Background()

	counts, err := h.Handle(ctx, ListCountsQuery{ProgramID: 1, Date: "2026-03-01"})
	require.NoError(t, err)
	assert.Empty(t, counts)

	_, err = h.Handle(ctx, ListCountsQuery{ProgramID: 1, Date: ""})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = h.Handle(ctx, ListCountsQuery{Date: "2026-03-01"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
