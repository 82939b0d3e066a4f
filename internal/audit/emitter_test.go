package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scrutin/internal/schema"
	"scrutin/internal/sheets"
)

type fakeSink struct {
	mu      sync.Mutex
	rows    []schema.Row
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSink) Append(_ context.Context, table schema.Table, rows []schema.Row) ([]sheets.Handle, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if table != schema.TableAudit {
		return nil, errors.New("unexpected table " + string(table))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.rows = append(f.rows, rows...)
	return nil, nil
}

func (f *fakeSink) snapshot() []schema.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.Row(nil), f.rows...)
}

func TestEmitterWritesEntriesOnClose(t *testing.T) {
	sink := &fakeSink{}
	now := time.Date(2026, 3, 15, 20, 5, 0, 0, time.UTC)
	ids := 0
	emitter := NewEmitter(sink, "alice", nil,
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { ids++; return "id-" + string(rune('0'+ids)) }),
	)

	emitter.Record(ActionSubmitResult, schema.TableResults, "B01", nil, map[string]int{"turnout": 800})
	emitter.Record(ActionLockRound1, schema.TableState, "round1_locked", "FALSE", "TRUE")
	if err := emitter.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows := sink.snapshot()
	if len(rows) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(rows))
	}
	entry, ok, err := schema.Audit.Decode(rows[0])
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if entry.ID != "id-1" || entry.Actor != "alice" || entry.Action != "submit_result" || entry.EntityID != "B01" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Before != "" || entry.After != `{"turnout":800}` || !entry.Timestamp.Equal(now) {
		t.Fatalf("unexpected snapshots %+v", entry)
	}
	second, _, _ := schema.Audit.Decode(rows[1])
	if second.Before != `"FALSE"` || second.After != `"TRUE"` {
		t.Fatalf("unexpected state snapshots %+v", second)
	}
	if emitter.Written() != 2 || emitter.Dropped() != 0 {
		t.Fatalf("unexpected counters written=%d dropped=%d", emitter.Written(), emitter.Dropped())
	}
}

func TestEmitterSwallowsSinkErrors(t *testing.T) {
	sink := &fakeSink{err: errors.New("no credential")}
	emitter := NewEmitter(sink, "bob", nil)
	emitter.Record(ActionValidateResult, schema.TableResults, "B02", nil, nil)
	if err := emitter.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if emitter.Dropped() != 1 || emitter.Written() != 0 {
		t.Fatalf("expected failed write to count as dropped, got dropped=%d", emitter.Dropped())
	}
}

func TestRecordNeverBlocksWhenQueueIsFull(t *testing.T) {
	sink := &fakeSink{entered: make(chan struct{}, 1), release: make(chan struct{})}
	emitter := NewEmitter(sink, "carol", nil, WithBufferSize(1))

	emitter.Record(ActionMergeState, schema.TableState, "a", nil, nil)
	<-sink.entered

	done := make(chan struct{})
	go func() {
		emitter.Record(ActionMergeState, schema.TableState, "b", nil, nil)
		emitter.Record(ActionMergeState, schema.TableState, "c", nil, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}
	if emitter.Dropped() != 1 {
		t.Fatalf("expected one dropped entry, got %d", emitter.Dropped())
	}

	close(sink.release)
	if err := emitter.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(sink.snapshot()) != 2 {
		t.Fatalf("expected 2 written rows, got %d", len(sink.snapshot()))
	}
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	emitter := NewEmitter(&fakeSink{}, "dave", nil)
	if err := emitter.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	emitter.Record(ActionSaveSeats, schema.TableSeats, "municipal", nil, nil)
	if emitter.Dropped() != 1 {
		t.Fatalf("expected dropped entry after close, got %d", emitter.Dropped())
	}
	if err := emitter.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestActionKindNames(t *testing.T) {
	for kind, name := range actionNames {
		parsed, ok := ParseActionKind(name)
		if !ok || parsed != kind || kind.String() != name {
			t.Fatalf("kind %d <-> %q mismatch", kind, name)
		}
	}
	if ActionUnknown.String() != "unknown" {
		t.Fatalf("unexpected unknown name %q", ActionUnknown.String())
	}
	if _, ok := ParseActionKind("delete_everything"); ok {
		t.Fatal("unexpected parse of unknown action")
	}
}
