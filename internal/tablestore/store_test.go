package tablestore

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "db", "store.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSeedCreatesHeaders(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := store.Seed(ctx); err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	names, err := store.Sheets(ctx)
	if err != nil {
		t.Fatalf("Sheets: %v", err)
	}
	if len(names) != 7 {
		t.Fatalf("expected 7 sheets, got %v", names)
	}
	header, err := store.Get(ctx, Range{Sheet: "State", LastCol: -1, FirstRow: 1, LastRow: 1})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(header, [][]string{{"key", "value", "updated_at"}}) {
		t.Fatalf("unexpected header %v", header)
	}
}

func TestPutGetKeepsGapsAndTrims(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.EnsureSheet(ctx, "S", []string{"a", "b", "c"}); err != nil {
		t.Fatalf("EnsureSheet: %v", err)
	}
	if _, err := store.Put(ctx, Range{Sheet: "S", LastCol: 2, FirstRow: 2, LastRow: 2}, [][]string{{"x", "", ""}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(ctx, Range{Sheet: "S", LastCol: 2, FirstRow: 4, LastRow: 4}, [][]string{{"y", "z"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, Range{Sheet: "S", LastCol: 2, FirstRow: 2})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := [][]string{{"x"}, {}, {"y", "z"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	narrow, err := store.Get(ctx, Range{Sheet: "S", FirstCol: 1, LastCol: 1, FirstRow: 2})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(narrow, [][]string{{}, {}, {"z"}}) {
		t.Fatalf("unexpected column slice %v", narrow)
	}
}

func TestAppendNeverReusesClearedRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.EnsureSheet(ctx, "S", []string{"h"}); err != nil {
		t.Fatalf("EnsureSheet: %v", err)
	}
	first, err := store.Append(ctx, Range{Sheet: "S", LastCol: -1}, [][]string{{"one"}, {"two"}})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.String() != "S!A2:A3" {
		t.Fatalf("unexpected append range %s", first)
	}
	if err := store.BatchClear(ctx, []Range{{Sheet: "S", LastCol: -1, FirstRow: 3, LastRow: 3}}); err != nil {
		t.Fatalf("BatchClear: %v", err)
	}
	second, err := store.Append(ctx, Range{Sheet: "S", LastCol: -1}, [][]string{{"three", "extra"}})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second.String() != "S!A4:B4" {
		t.Fatalf("append must follow cleared rows, got %s", second)
	}
	rows, err := store.Get(ctx, Range{Sheet: "S", LastCol: -1, FirstRow: 2})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(rows, [][]string{{"one"}, {}, {"three", "extra"}}) {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestBatchPutIsAtomic(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.EnsureSheet(ctx, "S", []string{"h"}); err != nil {
		t.Fatalf("EnsureSheet: %v", err)
	}
	err := store.BatchPut(ctx, []ValueRange{
		{Range: Range{Sheet: "S", LastCol: 0, FirstRow: 2, LastRow: 2}, Values: [][]string{{"ok"}}},
		{Range: Range{Sheet: "Missing", LastCol: 0, FirstRow: 2, LastRow: 2}, Values: [][]string{{"no"}}},
	})
	if !errors.Is(err, ErrUnknownSheet) {
		t.Fatalf("expected unknown sheet error, got %v", err)
	}
	rows, err := store.Get(ctx, Range{Sheet: "S", LastCol: -1, FirstRow: 2})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("failed batch must not write, got %v", rows)
	}
}

func TestPutRejectsOverflow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.EnsureSheet(ctx, "S", nil); err != nil {
		t.Fatalf("EnsureSheet: %v", err)
	}
	_, err := store.Put(ctx, Range{Sheet: "S", LastCol: 1, FirstRow: 2, LastRow: 2}, [][]string{{"a", "b", "c"}})
	if !errors.Is(err, ErrBadRange) {
		t.Fatalf("expected ErrBadRange for wide row, got %v", err)
	}
	_, err = store.Put(ctx, Range{Sheet: "S", LastCol: 1, FirstRow: 2, LastRow: 2}, [][]string{{"a"}, {"b"}})
	if !errors.Is(err, ErrBadRange) {
		t.Fatalf("expected ErrBadRange for tall write, got %v", err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = store.Close()

	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
