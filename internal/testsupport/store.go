package testsupport

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"scrutin/internal/access"
	"scrutin/internal/auth"
	"scrutin/internal/logging"
	"scrutin/internal/schema"
	"scrutin/internal/sheets"
	"scrutin/internal/tablestore"
)

const (
	testSecret        = "scrutin-test-secret-0123456789"
	testSpreadsheetID = "test-sheet"
)

// MustOpenStore opens a seeded tablestore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB) *tablestore.Store {
	t.Helper()

	store, err := tablestore.Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("tablestore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if err := store.Seed(context.Background()); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

// Backend is an in-process table store served over HTTP.
type Backend struct {
	t     testing.TB
	Store *tablestore.Store
	URL   string
}

// NewBackend starts a seeded table store behind httptest.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	store := MustOpenStore(t)
	server := httptest.NewServer(tablestore.NewServer(store, testSecret, testSpreadsheetID, logging.NewNop()).Handler())
	t.Cleanup(server.Close)
	return &Backend{t: t, Store: store, URL: server.URL + "/v4"}
}

// Token issues a bearer token accepted by the backend.
func (b *Backend) Token(subject string) string {
	b.t.Helper()
	token, err := auth.Issue(testSecret, subject, "", "", time.Hour, time.Now())
	if err != nil {
		b.t.Fatalf("issue token: %v", err)
	}
	return token
}

// Client builds a store client for the backend with caching disabled and
// retries collapsed so tests observe every write immediately.
func (b *Backend) Client(opts ...sheets.Option) *sheets.Client {
	b.t.Helper()
	base := []sheets.Option{
		sheets.WithSleeper(func(time.Duration) {}),
		sheets.WithRetryMaxAttempts(1),
	}
	return sheets.New(sheets.Config{
		BaseURL:       b.URL,
		SpreadsheetID: testSpreadsheetID,
		CacheTTL:      0,
	}, auth.StaticToken(b.Token("test")), append(base, opts...)...)
}

// Guard wraps a fresh client for principal.
func (b *Backend) Guard(principal access.Principal) *access.Guard {
	b.t.Helper()
	guard, err := access.NewGuard(b.Client(), principal, logging.NewNop())
	if err != nil {
		b.t.Fatalf("NewGuard: %v", err)
	}
	return guard
}

// Seed appends raw rows directly to the store, bypassing any guard.
func (b *Backend) Seed(table schema.Table, rows ...schema.Row) {
	b.t.Helper()
	values := make([][]string, len(rows))
	for i, row := range rows {
		values[i] = row
	}
	rng := tablestore.Range{Sheet: string(table), LastCol: -1, FirstRow: 1}
	if _, err := b.Store.Append(context.Background(), rng, values); err != nil {
		b.t.Fatalf("seed %s: %v", table, err)
	}
}

// Rows returns the raw data rows of table, including blank ones.
func (b *Backend) Rows(table schema.Table) []schema.Row {
	b.t.Helper()
	rng := tablestore.Range{Sheet: string(table), LastCol: -1, FirstRow: 2}
	values, err := b.Store.Get(context.Background(), rng)
	if err != nil {
		b.t.Fatalf("read %s: %v", table, err)
	}
	rows := make([]schema.Row, len(values))
	for i, v := range values {
		rows[i] = v
	}
	return rows
}
