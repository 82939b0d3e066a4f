package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"scrutin/internal/logging"
	"scrutin/internal/schema"
	"scrutin/internal/sheets"
)

const (
	defaultBufferSize   = 256
	defaultWriteTimeout = 30 * time.Second
)

// Recorder is implemented by anything that accepts audit events.
type Recorder interface {
	Record(kind ActionKind, entity schema.Table, entityID string, before, after any)
}

// Nop discards every event.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(ActionKind, schema.Table, string, any, any) {}

// Appender writes rows to a table. The access guard satisfies it.
type Appender interface {
	Append(ctx context.Context, table schema.Table, rows []schema.Row) ([]sheets.Handle, error)
}

// Emitter queues audit entries and writes them in the background.
type Emitter struct {
	sink    Appender
	actor   string
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan schema.AuditEntry
	done   chan struct{}

	dropped atomic.Int64
	written atomic.Int64
}

// Option customizes the emitter.
type Option func(*Emitter)

// WithBufferSize sets how many entries may wait for the worker.
func WithBufferSize(n int) Option {
	return func(e *Emitter) {
		if n > 0 {
			e.queue = make(chan schema.AuditEntry, n)
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(newID func() string) Option {
	return func(e *Emitter) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// NewEmitter starts the background worker. Call Close to drain it.
func NewEmitter(sink Appender, actor string, logger *slog.Logger, opts ...Option) *Emitter {
	e := &Emitter{
		sink:    sink,
		actor:   actor,
		logger:  logging.NewComponentLogger(logger, "audit"),
		now:     time.Now,
		newID:   uuid.NewString,
		timeout: defaultWriteTimeout,
		queue:   make(chan schema.AuditEntry, defaultBufferSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.run()
	return e
}

// Record queues an entry. It never blocks: when the queue is full or the
// emitter is closed the entry is dropped with a warning.
func (e *Emitter) Record(kind ActionKind, entity schema.Table, entityID string, before, after any) {
	entry := schema.AuditEntry{
		ID:        e.newID(),
		Timestamp: e.now().UTC(),
		Actor:     e.actor,
		Action:    kind.String(),
		Entity:    string(entity),
		EntityID:  entityID,
		Before:    e.snapshot(before),
		After:     e.snapshot(after),
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.drop(entry, "emitter closed")
		return
	}
	select {
	case e.queue <- entry:
	default:
		e.drop(entry, "queue full")
	}
}

// Close stops accepting entries and waits for queued ones to be written or
// for ctx to end.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many entries were discarded without being written.
func (e *Emitter) Dropped() int64 { return e.dropped.Load() }

// Written returns how many entries reached the store.
func (e *Emitter) Written() int64 { return e.written.Load() }

func (e *Emitter) run() {
	defer close(e.done)
	for entry := range e.queue {
		e.write(entry)
	}
}

func (e *Emitter) write(entry schema.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	if e.sink == nil {
		e.drop(entry, "no audit sink")
		return
	}
	if _, err := e.sink.Append(ctx, schema.TableAudit, []schema.Row{schema.Audit.Encode(entry)}); err != nil {
		e.dropped.Add(1)
		logging.WarnWithContext(e.logger, "audit entry not recorded", "audit_write_failed",
			logging.String("action", entry.Action),
			logging.String("entity", entry.Entity),
			logging.String("entity_id", entry.EntityID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check store credentials and connectivity"),
			logging.String(logging.FieldImpact, "audit trail is missing this change"),
		)
		return
	}
	e.written.Add(1)
}

func (e *Emitter) drop(entry schema.AuditEntry, reason string) {
	e.dropped.Add(1)
	logging.WarnWithContext(e.logger, "audit entry dropped", "audit_dropped",
		logging.String("action", entry.Action),
		logging.String("entity_id", entry.EntityID),
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "audit trail is missing this change"),
	)
}

func (e *Emitter) snapshot(value any) string {
	if value == nil {
		return ""
	}
	if raw, ok := value.(json.RawMessage); ok {
		return string(raw)
	}
	data, err := json.Marshal(value)
	if err != nil {
		e.logger.Debug("audit snapshot not serializable", logging.Error(err))
		return ""
	}
	return string(data)
}
