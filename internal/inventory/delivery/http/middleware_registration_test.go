package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestWrapPropagatesRequestID(t *testing.T) {
	router := mux.NewRouter()
	var seen string
	router.HandleFunc("/api/books/{bookId}/counts", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
		respondJSON(w, http.StatusOK, Response{Success: true})
	}).Methods(http.MethodPost)
	h := Wrap(router, ServerOptions{})

	req := httptest.NewRequest(http.MethodPost, "/api/books/3/counts", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/books/3/counts", nil))
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
	assert.NotEqual(t, "req-42", rec.Header().Get(headerRequestID))
}

func TestWrapRecoversPanics(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := Wrap(router, ServerOptions{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Server Error")
}

func TestRouteTemplateFallsBackToPath(t *testing.T) {
	assert.Equal(t, "/unrouted", routeTemplate(httptest.NewRequest(http.MethodGet, "/unrouted", nil)))
}
