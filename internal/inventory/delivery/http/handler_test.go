package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/internal/inventory/repository"
	"github.com/tair/colporter/internal/inventory/repository/memory"
	"github.com/tair/colporter/internal/inventory/usecase/command"
	"github.com/tair/colporter/internal/inventory/usecase/query"
	"github.com/tair/colporter/pkg/auth"
)

type testServer struct {
	router  *mux.Router
	store   *memory.Store
	tokens  *auth.Manager
	metrics *Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	store.PutBook(domain.Book{ID: 1, ProgramID: 7, Title: "Steps", Size: domain.SizeSmall, InitialStock: 100, Stock: 70, Sold: 30, IsActive: true})
	store.PutBook(domain.Book{ID: 2, ProgramID: 7, Title: "Old", Size: domain.SizeLarge, IsActive: false})

	tokens := auth.NewManager("test-secret", time.Hour)
	metrics := NewMetrics(prometheus.NewRegistry())
	h := NewInventoryHandler(
		command.NewSubmitCountHandler(store.Books(), store.Transactions(), store.Counts(), repository.NewLocalLocker(), nil),
		query.NewListBooksHandler(store.Books()),
		query.NewListTransactionsHandler(store.Transactions()),
		query.NewListCountsHandler(store.Counts()),
		tokens,
		metrics,
	)

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	h.RegisterHealthCheck(router, nil)
	return &testServer{router: router, store: store, tokens: tokens, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path string, role auth.Role, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if role != "" {
		token, err := s.tokens.GenerateToken(1, "maria", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func intPtr(n int) *int { return &n }

func TestRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodGet, "/api/books?programId=7", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListBooks(t *testing.T) {
	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodGet, "/api/books?programId=7", auth.RoleColporter, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 2)

	rec, resp = s.do(t, http.MethodGet, "/api/books?programId=7&active=true", auth.RoleColporter, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 1)

	rec, _ = s.do(t, http.MethodGet, "/api/books", auth.RoleColporter, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitCountRequiresReconcilerRole(t *testing.T) {
	s := newTestServer(t)
	body := SubmitCountRequest{ManualCount: intPtr(65), SystemCount: intPtr(70), CountDate: "2026-03-01", ProgramID: 7}

	for _, role := range []auth.Role{auth.RoleColporter, auth.RoleLeader} {
		rec, _ := s.do(t, http.MethodPost, "/api/books/1/counts", role, body)
		assert.Equal(t, http.StatusForbidden, rec.Code, role)
	}
}

func TestSubmitCountSaveAndConfirm(t *testing.T) {
	s := newTestServer(t)

	save := SubmitCountRequest{ManualCount: intPtr(65), SystemCount: intPtr(70), CountDate: "2026-03-01", ProgramID: 7}
	rec, resp := s.do(t, http.MethodPost, "/api/books/1/counts", auth.RoleSupervisor, save)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := resp.Data.(map[string]any)
	count := data["count"].(map[string]any)
	assert.Equal(t, "DISCREPANCY", count["status"])
	assert.EqualValues(t, -5, count["discrepancy"])
	assert.NotContains(t, data, "book")
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.countsSaved.WithLabelValues("DISCREPANCY")))

	confirm := save
	confirm.ConfirmDiscrepancy = true
	confirm.SetVerified = true
	rec, resp = s.do(t, http.MethodPost, "/api/books/1/counts", auth.RoleAdmin, confirm)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data = resp.Data.(map[string]any)
	count = data["count"].(map[string]any)
	book := data["book"].(map[string]any)
	assert.Equal(t, "VERIFIED", count["status"])
	assert.EqualValues(t, 70, count["system_count"])
	assert.EqualValues(t, 65, book["stock"])
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.confirmations))

	rec, resp = s.do(t, http.MethodGet, "/api/books/counts/2026-03-01?programId=7", auth.RoleLeader, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 1)
}

func TestSubmitCountErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"missing manual count", "/api/books/1/counts", SubmitCountRequest{SystemCount: intPtr(1), CountDate: "2026-03-01", ProgramID: 7}, http.StatusBadRequest},
		{"bad body", "/api/books/1/counts", "not an object", http.StatusBadRequest},
		{"negative", "/api/books/1/counts", SubmitCountRequest{ManualCount: intPtr(-1), SystemCount: intPtr(1), CountDate: "2026-03-01", ProgramID: 7}, http.StatusBadRequest},
		{"inactive book", "/api/books/2/counts", SubmitCountRequest{ManualCount: intPtr(1), SystemCount: intPtr(1), CountDate: "2026-03-01", ProgramID: 7}, http.StatusBadRequest},
		{"unknown book", "/api/books/9/counts", SubmitCountRequest{ManualCount: intPtr(1), SystemCount: intPtr(1), CountDate: "2026-03-01", ProgramID: 7}, http.StatusNotFound},
		{"confirm without save", "/api/books/1/counts", SubmitCountRequest{ManualCount: intPtr(1), SystemCount: intPtr(2), CountDate: "2026-03-01", ProgramID: 7, ConfirmDiscrepancy: true}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := s.do(t, http.MethodPost, tt.path, auth.RoleAdmin, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrConflict))
	assert.Equal(t, http.StatusForbidden, statusFor(domain.ErrForbidden))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("db down")))
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("down") }

func TestHealthReportsDatabase(t *testing.T) {
	router := mux.NewRouter()
	(&InventoryHandler{}).RegisterHealthCheck(router, failingPinger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
