// Package records is the typed repository over the access guard. Every read
// and write goes through the guard so role scope is applied uniformly.
package records

import (
	"context"
	"log/slog"
	"time"

	"scrutin/internal/access"
	"scrutin/internal/audit"
	"scrutin/internal/logging"
	"scrutin/internal/schema"
	"scrutin/internal/sheets"
)

// Guard is the access-filtered store the repository reads and writes.
type Guard interface {
	Principal() access.Principal
	Read(ctx context.Context, table schema.Table) ([]sheets.Row, error)
	Append(ctx context.Context, table schema.Table, rows []schema.Row) ([]sheets.Handle, error)
	Update(ctx context.Context, h sheets.Handle, values schema.Row) error
	BatchUpdate(ctx context.Context, updates []sheets.Update) error
	Clear(ctx context.Context, handles []sheets.Handle) error
}

// Repository reads and writes election entities.
type Repository struct {
	guard  Guard
	audit  audit.Recorder
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes a Repository.
type Option func(*Repository)

// WithClock overrides the timestamp source for written records.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a repository. A nil recorder disables auditing.
func New(guard Guard, recorder audit.Recorder, logger *slog.Logger, opts ...Option) *Repository {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	r := &Repository{
		guard:  guard,
		audit:  recorder,
		logger: logging.NewComponentLogger(logger, "records"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Principal returns the session principal of the underlying guard.
func (r *Repository) Principal() access.Principal { return r.guard.Principal() }

// stored pairs a decoded entity with the handle of its row.
type stored[T any] struct {
	handle sheets.Handle
	value  T
}

// readAll decodes every non-blank row of codec's table. Malformed rows are
// skipped with a warning so one bad precinct cannot block the others.
func readAll[T any](ctx context.Context, r *Repository, codec schema.Codec[T]) ([]stored[T], error) {
	rows, err := r.guard.Read(ctx, codec.Table())
	if err != nil {
		return nil, err
	}
	out := make([]stored[T], 0, len(rows))
	for _, row := range rows {
		value, ok, err := codec.Decode(row.Values)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "skipping malformed row", "malformed_row",
				logging.Table(codec.Table()),
				logging.String("row", row.Handle.String()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "correct the row in the store"),
				logging.String(logging.FieldImpact, "row excluded from totals"),
			)
			continue
		}
		if !ok {
			continue
		}
		out = append(out, stored[T]{handle: row.Handle, value: value})
	}
	return out, nil
}

func values[T any](items []stored[T]) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = item.value
	}
	return out
}

// Precincts returns the precinct reference table.
func (r *Repository) Precincts(ctx context.Context) ([]schema.Precinct, error) {
	items, err := readAll(ctx, r, schema.Precincts)
	if err != nil {
		return nil, err
	}
	return values(items), nil
}

// Lists returns the candidate list reference table.
func (r *Repository) Lists(ctx context.Context) ([]schema.CandidateList, error) {
	items, err := readAll(ctx, r, schema.Lists)
	if err != nil {
		return nil, err
	}
	return values(items), nil
}

// Participation returns the visible participation records of round, in row
// order.
func (r *Repository) Participation(ctx context.Context, round int) ([]schema.ParticipationRecord, error) {
	items, err := readAll(ctx, r, schema.Participation)
	if err != nil {
		return nil, err
	}
	var out []schema.ParticipationRecord
	for _, item := range items {
		if item.value.Round == round {
			out = append(out, item.value)
		}
	}
	return out, nil
}

// Seats returns the persisted seat rows.
func (r *Repository) Seats(ctx context.Context) ([]schema.SeatRow, error) {
	items, err := readAll(ctx, r, schema.Seats)
	if err != nil {
		return nil, err
	}
	return values(items), nil
}

// AuditTrail returns audit entries in append order. ActionUnknown selects
// every entry; any other kind keeps only entries recorded with that action.
func (r *Repository) AuditTrail(ctx context.Context, kind audit.ActionKind) ([]schema.AuditEntry, error) {
	items, err := readAll(ctx, r, schema.Audit)
	if err != nil {
		return nil, err
	}
	entries := values(items)
	if kind == audit.ActionUnknown {
		return entries, nil
	}
	kept := entries[:0]
	for _, e := range entries {
		if parsed, ok := audit.ParseActionKind(e.Action); ok && parsed == kind {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

func (r *Repository) registered(ctx context.Context, precinctID string) (int64, error) {
	precincts, err := r.Precincts(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range precincts {
		if p.ID == precinctID {
			return p.Registered, nil
		}
	}
	return 0, nil
}
