package reconcile_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/colporter/internal/inventory"
	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/internal/inventory/repository/memory"
	"github.com/tair/colporter/internal/reconcile"
	"github.com/tair/colporter/internal/reconcile/client"
	"github.com/tair/colporter/pkg/auth"
)

const (
	programID = 7
	countDate = "2026-03-01"
)

type env struct {
	backend *memory.Store
	tokens  *auth.Manager
	url     string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	backend := memory.NewStore()
	backend.PutBook(domain.Book{ID: 1, ProgramID: programID, Title: "Steps to Christ", Size: domain.SizeSmall, InitialStock: 100, Stock: 100, IsActive: true})
	backend.PutBook(domain.Book{ID: 2, ProgramID: programID, Title: "The Great Controversy", Size: domain.SizeLarge, InitialStock: 50, Stock: 50, IsActive: true})
	backend.PutBook(domain.Book{ID: 3, ProgramID: programID, Title: "Health", Size: domain.SizeSmall, InitialStock: 10, Stock: 10, IsActive: true})
	backend.PutBook(domain.Book{ID: 4, ProgramID: programID, Title: "Retired", Size: domain.SizeSmall, InitialStock: 5, Stock: 5, IsActive: false})

	txs := backend.Transactions()
	for _, tx := range []domain.Transaction{
		{ExternalID: "t1", ProgramID: programID, Date: "2026-02-20", Status: domain.TransactionPending, Items: []domain.TransactionItem{{BookID: 1, Quantity: 30}}},
		{ExternalID: "t2", ProgramID: programID, Date: "2026-02-21", Status: domain.TransactionPending, Items: []domain.TransactionItem{{BookID: 3, Quantity: 15}}},
		{ExternalID: "t3", ProgramID: programID, Date: "2026-02-22", Status: domain.TransactionPending, Items: []domain.TransactionItem{{BookID: 2, Quantity: 8}}},
	} {
		tx := tx
		require.NoError(t, txs.Create(ctx, &tx))
	}
	_, err := txs.Review(ctx, "t1", domain.TransactionApproved, "leader", time.Now())
	require.NoError(t, err)
	_, err = txs.Review(ctx, "t2", domain.TransactionApproved, "leader", time.Now())
	require.NoError(t, err)

	tokens := auth.NewManager("test-secret", time.Hour)
	svc, err := inventory.InitializeMemoryService(backend, nil, tokens, prometheus.NewRegistry())
	require.NoError(t, err)

	router := mux.NewRouter()
	svc.HTTP.RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &env{backend: backend, tokens: tokens, url: srv.URL}
}

func (e *env) store(t *testing.T, role auth.Role) *reconcile.Store {
	t.Helper()
	token, err := e.tokens.GenerateToken(1, "maria", role)
	require.NoError(t, err)
	return reconcile.NewStore(client.NewInventoryClient(e.url, token), programID, reconcile.CapabilityFor(role))
}

func lineFor(t *testing.T, s *reconcile.Store, bookID uint) reconcile.Line {
	t.Helper()
	for _, l := range s.Lines() {
		if l.Book.ID == bookID {
			return l
		}
	}
	t.Fatalf("no line for book %d", bookID)
	return reconcile.Line{}
}

func TestLoadDerivesSystemCounts(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, auth.RoleSupervisor)
	require.NoError(t, s.Load(context.Background(), countDate))

	lines := s.Lines()
	require.Len(t, lines, 3, "inactive books are not listed")

	assert.Equal(t, reconcile.Derived{BookID: 1, Date: countDate, SystemCount: 70}, lines[0].Row)
	assert.Equal(t, 50, lines[1].Row.System(), "pending transactions are not delivered")
	assert.Equal(t, 0, lines[2].Row.System(), "oversold stock is clamped")
	for _, l := range lines {
		assert.Equal(t, domain.CountPending, l.Row.Status())
		assert.True(t, l.Editable)
		assert.False(t, l.Confirmable)
	}

	assert.Equal(t, reconcile.Summary{TotalBooks: 3, Pending: 3}, s.Summary())
}

func TestLoadRespectsDateBound(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, auth.RoleAdmin)
	require.NoError(t, s.Load(context.Background(), "2026-02-20"))

	assert.Equal(t, 70, lineFor(t, s, 1).Row.System())
	assert.Equal(t, 10, lineFor(t, s, 3).Row.System(), "approved after the date")
}

func TestSaveThenConfirmDiscrepancy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.store(t, auth.RoleSupervisor)
	require.NoError(t, s.Load(ctx, countDate))

	count, err := s.SaveManualCount(ctx, 1, 65)
	require.NoError(t, err)
	assert.Equal(t, domain.CountDiscrepancy, count.Status)
	assert.Equal(t, -5, count.Discrepancy)

	line := lineFor(t, s, 1)
	require.IsType(t, reconcile.Persisted{}, line.Row)
	assert.True(t, line.Confirmable)
	book, _ := s.Book(1)
	assert.Equal(t, 70, book.Stock, "saving does not touch stock")

	require.NoError(t, s.BeginConfirm(1))
	assert.True(t, s.Confirming(1))

	count, book2, err := s.ConfirmDiscrepancy(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, book2)
	assert.Equal(t, domain.CountVerified, count.Status)
	assert.Equal(t, 70, count.SystemCount, "system count is preserved")
	assert.Equal(t, 65, book2.Stock)
	assert.False(t, s.Confirming(1))

	line = lineFor(t, s, 1)
	assert.Equal(t, domain.CountVerified, line.Row.Status())
	assert.Equal(t, 65, line.Book.Stock)
	assert.False(t, line.Editable)
	assert.False(t, line.Confirmable)

	assert.Equal(t, reconcile.Summary{TotalBooks: 3, Verified: 1, Pending: 2, TotalLostFound: 5}, s.Summary())
	assert.Len(t, e.backend.Adjustments(), 1)

	_, err = s.SaveManualCount(ctx, 1, 64)
	assert.ErrorIs(t, err, reconcile.ErrNotEditable)
}

func TestSaveMatchingCountVerifies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.store(t, auth.RoleAdmin)
	require.NoError(t, s.Load(ctx, countDate))

	count, err := s.SaveManualCount(ctx, 2, 50)
	require.NoError(t, err)
	assert.Equal(t, domain.CountVerified, count.Status)
	assert.False(t, lineFor(t, s, 2).Confirmable)

	_, _, err = s.ConfirmDiscrepancy(ctx, 2)
	assert.ErrorIs(t, err, reconcile.ErrNotEditable)
}

func TestResaveReplacesRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.store(t, auth.RoleAdmin)
	require.NoError(t, s.Load(ctx, countDate))

	_, err := s.SaveManualCount(ctx, 1, 60)
	require.NoError(t, err)
	count, err := s.SaveManualCount(ctx, 1, 72)
	require.NoError(t, err)
	assert.Equal(t, 2, count.Discrepancy)

	require.NoError(t, s.Load(ctx, countDate))
	persisted := lineFor(t, s, 1).Row.(reconcile.Persisted)
	assert.Equal(t, 72, *persisted.Count.ManualCount)
	assert.Equal(t, reconcile.Summary{TotalBooks: 3, Discrepancies: 1, Pending: 2, TotalLostFound: 2}, s.Summary())
}

func TestReadOnlyRoles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, role := range []auth.Role{auth.RoleLeader, auth.RoleColporter} {
		s := e.store(t, role)
		require.NoError(t, s.Load(ctx, countDate))
		assert.False(t, lineFor(t, s, 1).Editable)

		_, err := s.SaveManualCount(ctx, 1, 65)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.ErrorIs(t, s.BeginConfirm(1), domain.ErrForbidden)
	}
}

func TestSaveErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.store(t, auth.RoleAdmin)

	_, err := s.SaveManualCount(ctx, 1, 5)
	assert.ErrorIs(t, err, reconcile.ErrNotLoaded)

	require.NoError(t, s.Load(ctx, countDate))
	_, err = s.SaveManualCount(ctx, 1, -1)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.SaveManualCount(ctx, 4, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.BeginConfirm(1), reconcile.ErrNotEditable)

	assert.ErrorIs(t, s.Load(ctx, "03/01/2026"), domain.ErrValidation)
}

func TestServerRejectionLeavesCacheUntouched(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	token, err := e.tokens.GenerateToken(1, "maria", auth.RoleLeader)
	require.NoError(t, err)

	// Client-side capability says yes, the server says no.
	s := reconcile.NewStore(client.NewInventoryClient(e.url, token), programID, reconcile.CapabilityFor(auth.RoleAdmin))
	require.NoError(t, s.Load(ctx, countDate))

	_, err = s.SaveManualCount(ctx, 1, 65)
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.IsType(t, reconcile.Derived{}, lineFor(t, s, 1).Row)
	assert.False(t, s.Busy(1))
}
