package access_test

import (
	"context"
	"errors"
	"testing"

	"scrutin/internal/access"
	"scrutin/internal/schema"
	"scrutin/internal/services"
	"scrutin/internal/sheets"
	"scrutin/internal/testsupport"
)

func seedResults(b *testsupport.Backend) {
	b.Seed(schema.TableResults,
		schema.Row{"7", "1", "100", "2", "3", "95", `{"L1":95}`},
		schema.Row{"3", "1", "80", "0", "0", "80", `{"L1":80}`},
		schema.Row{"7", "2", "90", "0", "0", "90", `{"L1":90}`},
	)
	b.Seed(schema.TablePrecincts,
		schema.Row{"3", "Gare", "100", "TRUE"},
		schema.Row{"7", "Mairie", "120", "TRUE"},
	)
}

func operator(precinct string) access.Principal {
	return access.Principal{Actor: "op", Role: access.PrecinctOperator, Precinct: precinct}
}

func TestOperatorSeesOnlyBoundPrecinct(t *testing.T) {
	backend := testsupport.NewBackend(t)
	seedResults(backend)
	guard := backend.Guard(operator("7"))

	rows, err := guard.Read(context.Background(), schema.TableResults)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows for precinct 7, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Values[0] != "7" {
			t.Fatalf("operator received foreign row %v", row.Values)
		}
	}
	if rows[0].Handle.Offset() != 0 || rows[1].Handle.Offset() != 2 {
		t.Fatalf("filtering must keep physical offsets, got %d and %d", rows[0].Handle.Offset(), rows[1].Handle.Offset())
	}
}

func TestReferenceTablesAreNeverFiltered(t *testing.T) {
	backend := testsupport.NewBackend(t)
	seedResults(backend)
	guard := backend.Guard(operator("7"))

	rows, err := guard.Read(context.Background(), schema.TablePrecincts)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("operators must see every precinct, got %d", len(rows))
	}
}

func TestSupervisorSeesEverything(t *testing.T) {
	backend := testsupport.NewBackend(t)
	seedResults(backend)
	guard := backend.Guard(access.Principal{Actor: "sup", Role: access.Supervisor})

	rows, err := guard.Read(context.Background(), schema.TableResults)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
}

func TestOperatorWritesOutsidePrecinctAreDenied(t *testing.T) {
	backend := testsupport.NewBackend(t)
	seedResults(backend)
	guard := backend.Guard(operator("7"))
	ctx := context.Background()

	_, err := guard.Append(ctx, schema.TableResults, []schema.Row{{"3", "1", "10"}})
	if !errors.Is(err, services.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	rows, err := guard.Read(ctx, schema.TableResults)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	err = guard.BatchUpdate(ctx, []sheets.Update{
		{Handle: rows[0].Handle, Values: schema.Row{"7", "1", "101"}},
		{Handle: rows[1].Handle, Values: schema.Row{"3", "2", "90"}},
	})
	if !errors.Is(err, services.ErrPermissionDenied) {
		t.Fatalf("expected batch to be denied, got %v", err)
	}
	if got := backend.Rows(schema.TableResults)[0][2]; got != "100" {
		t.Fatalf("denied batch must not write, turnout is %s", got)
	}

	if err := guard.Update(ctx, rows[0].Handle, schema.Row{"7", "1", "101"}); err != nil {
		t.Fatalf("own precinct update: %v", err)
	}
	if got := backend.Rows(schema.TableResults)[0][2]; got != "101" {
		t.Fatalf("expected update to land, turnout is %s", got)
	}
}

func TestOperatorCannotRelabelForeignRow(t *testing.T) {
	backend := testsupport.NewBackend(t)
	seedResults(backend)
	ctx := context.Background()

	admin := backend.Guard(access.Principal{Actor: "admin", Role: access.Administrator})
	rows, err := admin.Read(ctx, schema.TableResults)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	foreign := rows[1].Handle
	if rows[1].Values[0] != "3" {
		t.Fatalf("expected precinct 3 at offset 1, got %v", rows[1].Values)
	}

	guard := backend.Guard(operator("7"))
	err = guard.Update(ctx, foreign, schema.Row{"7", "1", "0", "0", "0", "0", "{}"})
	if !errors.Is(err, services.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	err = guard.BatchUpdate(ctx, []sheets.Update{
		{Handle: rows[0].Handle, Values: schema.Row{"7", "1", "101"}},
		{Handle: foreign, Values: schema.Row{"7", "1", "0"}},
	})
	if !errors.Is(err, services.ErrPermissionDenied) {
		t.Fatalf("expected batch to be denied, got %v", err)
	}

	stored := backend.Rows(schema.TableResults)
	if stored[1][0] != "3" || stored[1][2] != "80" {
		t.Fatalf("precinct 3 row was overwritten: %v", stored[1])
	}
	if stored[0][2] != "100" {
		t.Fatalf("denied batch must not write, turnout is %s", stored[0][2])
	}

	sup := backend.Guard(access.Principal{Actor: "sup", Role: access.Supervisor})
	if err := sup.Update(ctx, foreign, schema.Row{"3", "1", "81"}); err != nil {
		t.Fatalf("supervisor update: %v", err)
	}
}

func TestOperatorCannotClearScopedRows(t *testing.T) {
	backend := testsupport.NewBackend(t)
	seedResults(backend)
	guard := backend.Guard(operator("7"))
	ctx := context.Background()

	rows, err := guard.Read(ctx, schema.TableResults)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := guard.Clear(ctx, []sheets.Handle{rows[0].Handle}); !errors.Is(err, services.ErrPermissionDenied) {
		t.Fatalf("expected permission denied for own row clear, got %v", err)
	}
}

func TestReferenceAndStateWritesNeedAdministrator(t *testing.T) {
	backend := testsupport.NewBackend(t)
	seedResults(backend)
	ctx := context.Background()

	for _, principal := range []access.Principal{operator("7"), {Actor: "sup", Role: access.Supervisor}} {
		guard := backend.Guard(principal)
		for _, table := range []schema.Table{schema.TablePrecincts, schema.TableLists, schema.TableState, schema.TableSeats} {
			if _, err := guard.Append(ctx, table, []schema.Row{{"x"}}); !errors.Is(err, services.ErrPermissionDenied) {
				t.Fatalf("%s append to %s: expected permission denied, got %v", principal.Role, table, err)
			}
		}
	}

	admin := backend.Guard(access.Principal{Actor: "admin", Role: access.Administrator})
	if _, err := admin.Append(ctx, schema.TableState, []schema.Row{{"current_round", "1"}}); err != nil {
		t.Fatalf("administrator append: %v", err)
	}
}

func TestAuditIsAppendOnly(t *testing.T) {
	backend := testsupport.NewBackend(t)
	ctx := context.Background()
	op := backend.Guard(operator("7"))
	handles, err := op.Append(ctx, schema.TableAudit, []schema.Row{{"a1", "", "op", "submit_result"}})
	if err != nil {
		t.Fatalf("audit append: %v", err)
	}

	admin := backend.Guard(access.Principal{Actor: "admin", Role: access.Administrator})
	if err := admin.Update(ctx, handles[0], schema.Row{"a1"}); !errors.Is(err, services.ErrPermissionDenied) {
		t.Fatalf("expected audit update to be denied, got %v", err)
	}
	if err := admin.Clear(ctx, handles); !errors.Is(err, services.ErrPermissionDenied) {
		t.Fatalf("expected audit clear to be denied, got %v", err)
	}
}

func TestNewGuardValidatesPrincipal(t *testing.T) {
	backend := testsupport.NewBackend(t)
	tests := []access.Principal{
		{Actor: "op", Role: access.PrecinctOperator},
		{Actor: "", Role: access.Supervisor},
		{Actor: "x", Role: "mayor"},
	}
	for _, p := range tests {
		if _, err := access.NewGuard(backend.Client(), p, nil); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("principal %+v: expected validation error, got %v", p, err)
		}
	}
}

func TestParseRoleAndScopeKey(t *testing.T) {
	role, err := access.ParseRole(" Precinct-Operator ")
	if err != nil || role != access.PrecinctOperator {
		t.Fatalf("ParseRole: %v %v", role, err)
	}
	if _, err := access.ParseRole("mayor"); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if key := operator("7").ScopeKey(); key != "precinct_operator:7" {
		t.Fatalf("unexpected scope key %q", key)
	}
	if key := (access.Principal{Role: access.Administrator}).ScopeKey(); key != "administrator" {
		t.Fatalf("unexpected scope key %q", key)
	}
}
