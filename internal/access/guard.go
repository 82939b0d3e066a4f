package access

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scrutin/internal/logging"
	"scrutin/internal/schema"
	"scrutin/internal/services"
	"scrutin/internal/sheets"
)

// ownerScope keys the unfiltered reads used to check row ownership.
const ownerScope = "owners"

// Store is the subset of the store client the Guard wraps.
type Store interface {
	Read(ctx context.Context, req sheets.ReadRequest) ([]sheets.Row, error)
	Append(ctx context.Context, table schema.Table, rows []schema.Row) ([]sheets.Handle, error)
	Update(ctx context.Context, h sheets.Handle, values schema.Row) error
	BatchUpdate(ctx context.Context, updates []sheets.Update) error
	Clear(ctx context.Context, handles []sheets.Handle) error
}

// Guard enforces per-role row visibility and mutation scope on a Store.
// It is not a security boundary; see the package documentation.
type Guard struct {
	store     Store
	principal Principal
	logger    *slog.Logger
}

// NewGuard wraps store for principal.
func NewGuard(store Store, principal Principal, logger *slog.Logger) (*Guard, error) {
	if store == nil {
		return nil, fmt.Errorf("access guard: store is required")
	}
	principal.Precinct = strings.TrimSpace(principal.Precinct)
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	return &Guard{
		store:     store,
		principal: principal,
		logger: logging.NewComponentLogger(logger, "access").With(
			logging.String(logging.FieldActor, principal.Actor),
			logging.Role(principal.Role),
		),
	}, nil
}

// Principal returns the session principal.
func (g *Guard) Principal() Principal { return g.principal }

// Read returns the rows of table visible to the principal. Reference tables
// are returned in full to every role; precinct-scoped tables are restricted
// to the bound precinct for operators.
func (g *Guard) Read(ctx context.Context, table schema.Table) ([]sheets.Row, error) {
	req := sheets.ReadRequest{Table: table, Scope: g.principal.ScopeKey()}
	if g.filtersRows(table) {
		bound := g.principal.Precinct
		req.Keep = func(row schema.Row) bool {
			id, ok := schema.PrecinctOf(table, row)
			return ok && id == bound
		}
	}
	return g.store.Read(ctx, req)
}

// Append adds rows after checking the principal may write each of them.
func (g *Guard) Append(ctx context.Context, table schema.Table, rows []schema.Row) ([]sheets.Handle, error) {
	for _, row := range rows {
		if err := g.checkWrite(table, row, "append"); err != nil {
			return nil, err
		}
	}
	return g.store.Append(ctx, table, rows)
}

// Update replaces one row after the same checks as Append. Operators must
// also own the row currently at the handle.
func (g *Guard) Update(ctx context.Context, h sheets.Handle, values schema.Row) error {
	if err := g.checkWrite(h.Table(), values, "update"); err != nil {
		return err
	}
	if err := g.checkTargets(ctx, "update", h); err != nil {
		return err
	}
	return g.store.Update(ctx, h, values)
}

// BatchUpdate is rejected as a whole if any target is outside the
// principal's scope.
func (g *Guard) BatchUpdate(ctx context.Context, updates []sheets.Update) error {
	for _, u := range updates {
		if err := g.checkWrite(u.Handle.Table(), u.Values, "batch update"); err != nil {
			return err
		}
	}
	handles := make([]sheets.Handle, len(updates))
	for i, u := range updates {
		handles[i] = u.Handle
	}
	if err := g.checkTargets(ctx, "batch update", handles...); err != nil {
		return err
	}
	return g.store.BatchUpdate(ctx, updates)
}

// Clear blanks rows. Operators may never clear precinct-scoped rows.
func (g *Guard) Clear(ctx context.Context, handles []sheets.Handle) error {
	for _, h := range handles {
		table := h.Table()
		switch {
		case table == schema.TableAudit:
			return g.deny(table, "clear", "audit entries are append-only")
		case isScoped(table):
			if g.principal.Role == PrecinctOperator {
				return g.deny(table, "clear", "precinct operators cannot delete precinct records")
			}
		default:
			if !g.principal.IsAdministrator() {
				return g.deny(table, "clear", "only administrators may modify "+string(table))
			}
		}
	}
	return g.store.Clear(ctx, handles)
}

func (g *Guard) filtersRows(table schema.Table) bool {
	return g.principal.Role == PrecinctOperator && isScoped(table)
}

func (g *Guard) checkWrite(table schema.Table, row schema.Row, op string) error {
	switch {
	case table == schema.TableAudit:
		if op != "append" {
			return g.deny(table, op, "audit entries are append-only")
		}
		return nil
	case isScoped(table):
		if g.principal.Role != PrecinctOperator {
			return nil
		}
		id, _ := schema.PrecinctOf(table, row)
		if id != g.principal.Precinct {
			return g.deny(table, op, fmt.Sprintf("precinct %q is outside bound precinct %q", id, g.principal.Precinct))
		}
		return nil
	default:
		if !g.principal.IsAdministrator() {
			return g.deny(table, op, "only administrators may modify "+string(table))
		}
		return nil
	}
}

// checkTargets rejects operator writes to scoped rows that currently belong
// to another precinct. Handles are not bound to the read that produced them,
// so the rows are re-read without the operator filter. Blank rows and offsets
// past the end have no owner.
func (g *Guard) checkTargets(ctx context.Context, op string, handles ...sheets.Handle) error {
	if g.principal.Role != PrecinctOperator {
		return nil
	}
	owners := make(map[schema.Table]map[int]string)
	for _, h := range handles {
		table := h.Table()
		if !isScoped(table) {
			continue
		}
		current, ok := owners[table]
		if !ok {
			rows, err := g.store.Read(ctx, sheets.ReadRequest{Table: table, Scope: ownerScope})
			if err != nil {
				return err
			}
			current = make(map[int]string, len(rows))
			for _, row := range rows {
				if id, ok := schema.PrecinctOf(table, row.Values); ok && id != "" {
					current[row.Handle.Offset()] = id
				}
			}
			owners[table] = current
		}
		if id, ok := current[h.Offset()]; ok && id != g.principal.Precinct {
			return g.deny(table, op, fmt.Sprintf("row %s belongs to precinct %q, outside bound precinct %q", h, id, g.principal.Precinct))
		}
	}
	return nil
}

func (g *Guard) deny(table schema.Table, op, reason string) error {
	logging.WarnWithContext(g.logger, "write rejected by access guard", "permission_denied",
		logging.Table(table),
		logging.Precinct(g.principal.Precinct),
		logging.String("op", op),
		logging.String("reason", reason),
		logging.String(logging.FieldErrorHint, "sign in with a role allowed to perform this change"),
		logging.String(logging.FieldImpact, "no data was written"),
	)
	return services.Wrap(services.ErrPermissionDenied, "access", op+" "+string(table), reason, nil)
}

func isScoped(table schema.Table) bool {
	s, ok := schema.Lookup(table)
	return ok && s.Scoped()
}
