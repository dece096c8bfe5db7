package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/dedupe/internal/duplicates"
	"github.com/cleared-dev/dedupe/internal/logging"
	"github.com/cleared-dev/dedupe/internal/model"
	"github.com/cleared-dev/dedupe/internal/resolve"
	"github.com/cleared-dev/dedupe/internal/store"
	"github.com/cleared-dev/dedupe/internal/store/csvstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	store store.Store
	srv   *Server
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	s := csvstore.New(filepath.Join(t.TempDir(), "transactions.csv"))
	return newFixtureWith(s, opts)
}

func newFixtureWith(s store.Store, opts Options) *fixture {
	return &fixture{
		store: s,
		srv:   New(s, duplicates.NewDetector(), resolve.New(s), logging.Discard(), opts),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seed(t *testing.T, name, amount string, date time.Time) model.Transaction {
	t.Helper()
	tx, err := f.store.Create(context.Background(), model.Transaction{
		BusinessName:  name,
		BillingAmount: decimal.RequireFromString(amount),
		Date:          date,
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) seedCoffee(t *testing.T) (model.Transaction, model.Transaction, model.Transaction) {
	t.Helper()
	a := f.seed(t, "Coffee Shop", "4.50", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	b := f.seed(t, "Coffee Shop", "4.50", time.Date(2024, 1, 1, 8, 5, 0, 0, time.UTC))
	c := f.seed(t, "Book Store", "20.00", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	return a, b, c
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type dataBody[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error"`
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Options{Token: "x"})
	rec := f.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestTransactionsCRUD(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(t, http.MethodPost, "/api/transactions", map[string]interface{}{
		"business_name":  "Coffee Shop",
		"billing_amount": "4.50",
		"date":           "2024-01-01T08:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dataBody[model.Transaction]](t, rec).Data
	require.NotEmpty(t, created.ID)

	rec = f.do(t, http.MethodGet, "/api/transactions?sort=-date&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[dataBody[[]model.Transaction]](t, rec).Data
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	rec = f.do(t, http.MethodPatch, "/api/transactions/"+created.ID, map[string]bool{"is_reviewed_duplicate": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[dataBody[model.Transaction]](t, rec).Data.IsReviewedDuplicate)

	rec = f.do(t, http.MethodDelete, "/api/transactions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/transactions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactions_BadRequests(t *testing.T) {
	f := newFixture(t, Options{})
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"bad sort", http.MethodGet, "/api/transactions?sort=amount", nil, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/transactions?limit=ten", nil, http.StatusBadRequest},
		{"negative limit", http.MethodGet, "/api/transactions?limit=-1", nil, http.StatusBadRequest},
		{"invalid id", http.MethodPatch, "/api/transactions/not-a-uuid", map[string]bool{"is_reviewed_duplicate": true}, http.StatusBadRequest},
		{"invalid transaction", http.MethodPost, "/api/transactions", map[string]string{"billing_amount": "1.00", "date": "2024-01-01T00:00:00Z"}, http.StatusBadRequest},
		{"unknown id", http.MethodPatch, "/api/transactions/00000000-0000-0000-0000-000000000000", map[string]bool{"is_reviewed_duplicate": true}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestScanDuplicates(t *testing.T) {
	f := newFixture(t, Options{})
	a, b, _ := f.seedCoffee(t)

	rec := f.do(t, http.MethodGet, "/api/duplicates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ScanResponse](t, rec)
	require.Equal(t, 1, resp.Count)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, resp.Groups[0].IDs)
	assert.Equal(t, "9.00", resp.Groups[0].Total.StringFixed(2))
}

func TestResolveDuplicates(t *testing.T) {
	f := newFixture(t, Options{})
	a, b, _ := f.seedCoffee(t)

	rec := f.do(t, http.MethodPost, "/api/duplicates/resolve", ResolveRequest{DeleteIDs: []string{a.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[ResultResponse](t, rec)
	assert.Equal(t, []string{a.ID}, res.Deleted)
	assert.Equal(t, []string{b.ID}, res.Marked)

	rec = f.do(t, http.MethodGet, "/api/duplicates", nil)
	assert.Equal(t, 0, decode[ScanResponse](t, rec).Count)
}

func TestResolveDuplicates_EmptySelection(t *testing.T) {
	f := newFixture(t, Options{})
	f.seedCoffee(t)

	rec := f.do(t, http.MethodPost, "/api/duplicates/resolve", ResolveRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "nothing selected")

	txs, err := f.store.List(context.Background(), store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}

func TestResolveDuplicates_UnknownID(t *testing.T) {
	f := newFixture(t, Options{})
	f.seedCoffee(t)

	rec := f.do(t, http.MethodPost, "/api/duplicates/resolve", ResolveRequest{DeleteIDs: []string{"00000000-0000-0000-0000-000000000000"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	res := decode[ResultResponse](t, rec)
	assert.Empty(t, res.Deleted)
	assert.NotEmpty(t, res.Error)
}

func TestIgnoreDuplicates(t *testing.T) {
	f := newFixture(t, Options{})
	a, b, c := f.seedCoffee(t)

	rec := f.do(t, http.MethodPost, "/api/duplicates/ignore", IgnoreRequest{IDs: []string{c.ID}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "book store is not in a group")

	rec = f.do(t, http.MethodPost, "/api/duplicates/ignore", IgnoreRequest{IDs: []string{a.ID, b.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[ResultResponse](t, rec)
	assert.Empty(t, res.Deleted)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, res.Marked)

	rec = f.do(t, http.MethodGet, "/api/duplicates", nil)
	assert.Equal(t, 0, decode[ScanResponse](t, rec).Count)
}

// blockingStore pauses inside Delete until released.
type blockingStore struct {
	store.Store
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Delete(ctx context.Context, id string) error {
	close(b.entered)
	<-b.release
	return b.Store.Delete(ctx, id)
}

func TestResolveDuplicates_Busy(t *testing.T) {
	inner := csvstore.New(filepath.Join(t.TempDir(), "transactions.csv"))
	bs := &blockingStore{Store: inner, entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixtureWith(bs, Options{})
	a, b, _ := f.seedCoffee(t)

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- f.do(t, http.MethodPost, "/api/duplicates/resolve", ResolveRequest{DeleteIDs: []string{a.ID}})
	}()
	<-bs.entered

	rec := f.do(t, http.MethodPost, "/api/duplicates/ignore", IgnoreRequest{IDs: []string{b.ID}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(bs.release)
	first := <-done
	assert.Equal(t, http.StatusOK, first.Code, first.Body.String())
}

type failingStore struct {
	store.Store
}

func (failingStore) List(context.Context, store.ListOptions) ([]model.Transaction, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestStoreFailureIsGeneric(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := failingStore{}
	srv := New(s, duplicates.NewDetector(), resolve.New(s), log, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/duplicates", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, `{"error":"store operation failed"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "connection refused")

	var logged bool
	for _, e := range hook.AllEntries() {
		if err, ok := e.Data["error"].(error); ok && err != nil {
			logged = true
		}
	}
	assert.True(t, logged, "cause is logged")
}

func TestToken(t *testing.T) {
	f := newFixture(t, Options{Token: "s3cret"})

	rec := f.do(t, http.MethodGet, "/api/transactions", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	f := newFixture(t, Options{AllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- f.srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
