// Package remote is a store.Store that talks to a dedupe API server.
package remote

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

	"github.com/cleared-dev/dedupe/internal/model"
	"github.com/cleared-dev/dedupe/internal/store"
)

// HTTPError is a non-2xx reply from the server.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("remote store: %d %s", e.Code, e.Message)
}

// Unwrap maps 404 to store.ErrNotFound.
func (e *HTTPError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return store.ErrNotFound
	}
	return nil
}

// Store calls the /api/transactions endpoints of a server.
type Store struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ store.Store = (*Store)(nil)

// New returns a Store for the server at baseURL, e.g. "http://localhost:8080".
// An empty token sends no Authorization header.
func New(baseURL, token string, timeout time.Duration) *Store {
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// List fetches transactions ordered and limited per opts.
func (s *Store) List(ctx context.Context, opts store.ListOptions) ([]model.Transaction, error) {
	params := url.Values{}
	sort := opts.Sort
	if sort == "" {
		sort = store.SortDateDesc
	}
	params.Set("sort", string(sort))
	params.Set("limit", strconv.Itoa(opts.EffectiveLimit()))

	var txs []model.Transaction
	if err := s.do(ctx, http.MethodGet, "/api/transactions", params, nil, &txs); err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return txs, nil
}

// Create posts tx. The server assigns the ID.
func (s *Store) Create(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	tx.ID = ""
	var out model.Transaction
	if err := s.do(ctx, http.MethodPost, "/api/transactions", nil, tx, &out); err != nil {
		return model.Transaction{}, fmt.Errorf("creating transaction: %w", err)
	}
	return out, nil
}

// Update sends patch for txID.
func (s *Store) Update(ctx context.Context, txID string, patch model.Patch) (model.Transaction, error) {
	var out model.Transaction
	if err := s.do(ctx, http.MethodPatch, "/api/transactions/"+url.PathEscape(txID), nil, patch, &out); err != nil {
		return model.Transaction{}, fmt.Errorf("updating %s: %w", txID, err)
	}
	return out, nil
}

// Delete removes txID.
func (s *Store) Delete(ctx context.Context, txID string) error {
	if err := s.do(ctx, http.MethodDelete, "/api/transactions/"+url.PathEscape(txID), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting %s: %w", txID, err)
	}
	return nil
}

// do sends a JSON request and decodes the "data" field of the reply into out.
func (s *Store) do(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	endpoint := s.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	if resp.StatusCode >= 300 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &HTTPError{Code: resp.StatusCode, Message: msg}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding data: %w", err)
	}
	return nil
}
