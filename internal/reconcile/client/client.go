package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/internal/reconcile"
	"github.com/tair/colporter/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// envelope mirrors the inventory service response body
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type submitBody struct {
	ManualCount        int    `json:"manualCount"`
	CountDate          string `json:"countDate"`
	SystemCount        int    `json:"systemCount"`
	ConfirmDiscrepancy bool   `json:"confirmDiscrepancy"`
	SetVerified        bool   `json:"setVerified"`
	ProgramID          uint   `json:"programId"`
}

type submitResult struct {
	Count *domain.InventoryCount `json:"count"`
	Book  *domain.Book           `json:"book"`
}

// InventoryClient talks to the inventory REST API with a bearer token
type InventoryClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures the client
type Option func(*InventoryClient)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(ic *InventoryClient) { ic.http = c }
}

// NewInventoryClient creates a client for the service at baseURL
func NewInventoryClient(baseURL, token string, opts ...Option) *InventoryClient {
	c := &InventoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ reconcile.Backend = (*InventoryClient)(nil)

// ListBooks fetches the books of a program
func (c *InventoryClient) ListBooks(ctx context.Context, programID uint) ([]domain.Book, error) {
	q := url.Values{"programId": {strconv.FormatUint(uint64(programID), 10)}}

	var books []domain.Book
	if err := c.do(ctx, http.MethodGet, "/api/books", q, nil, &books); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// ListApprovedTransactions fetches approved transactions dated up to upTo
func (c *InventoryClient) ListApprovedTransactions(ctx context.Context, programID uint, upTo string) ([]domain.Transaction, error) {
	q := url.Values{
		"status":    {string(domain.TransactionApproved)},
		"date":      {upTo},
		"programId": {strconv.FormatUint(uint64(programID), 10)},
	}

	var txs []domain.Transaction
	if err := c.do(ctx, http.MethodGet, "/api/transactions", q, nil, &txs); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// ListCounts fetches the counts of a program on date
func (c *InventoryClient) ListCounts(ctx context.Context, programID uint, date string) ([]domain.InventoryCount, error) {
	q := url.Values{"programId": {strconv.FormatUint(uint64(programID), 10)}}

	var counts []domain.InventoryCount
	if err := c.do(ctx, http.MethodGet, "/api/books/counts/"+url.PathEscape(date), q, nil, &counts); err != nil {
		return nil, fmt.Errorf("failed to list counts: %w", err)
	}
	return counts, nil
}

// SubmitCount saves a manual count or confirms a discrepancy. The book is
// only returned for confirmations.
func (c *InventoryClient) SubmitCount(ctx context.Context, bookID uint, req reconcile.SubmitRequest) (*domain.InventoryCount, *domain.Book, error) {
	body := submitBody{
		ManualCount:        req.ManualCount,
		CountDate:          req.CountDate,
		SystemCount:        req.SystemCount,
		ConfirmDiscrepancy: req.ConfirmDiscrepancy,
		SetVerified:        req.SetVerified,
		ProgramID:          req.ProgramID,
	}

	var result submitResult
	path := fmt.Sprintf("/api/books/%d/counts", bookID)
	if err := c.do(ctx, http.MethodPost, path, nil, body, &result); err != nil {
		return nil, nil, fmt.Errorf("failed to submit count: %w", err)
	}
	if result.Count == nil {
		return nil, nil, fmt.Errorf("failed to submit count: response has no count")
	}
	return result.Count, result.Book, nil
}

func (c *InventoryClient) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	logger.Debug(ctx).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Inventory API call")

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("unexpected response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return statusError(resp.StatusCode, env.Error)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// statusError maps the service's status codes back to domain sentinels
func statusError(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrValidation, message)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, message)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrConflict, message)
	default:
		return fmt.Errorf("inventory service error (HTTP %d): %s", status, message)
	}
}
