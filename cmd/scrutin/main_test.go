package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scrutin/internal/schema"
	"scrutin/internal/services"
	"scrutin/internal/testsupport"
)

type cliTestEnv struct {
	backend    *testsupport.Backend
	configPath string
}

func setupCLITestEnv(t *testing.T, role, precinct string) *cliTestEnv {
	t.Helper()

	backend := testsupport.NewBackend(t)
	backend.Seed(schema.TablePrecincts,
		schema.Precincts.Encode(schema.Precinct{ID: "1", Name: "Mairie", Registered: 1000, Active: true}),
		schema.Precincts.Encode(schema.Precinct{ID: "2", Name: "Ecole Jaurès", Registered: 800, Active: true}),
	)
	backend.Seed(schema.TableLists,
		schema.Lists.Encode(schema.CandidateList{ID: "A", Name: "Ensemble", Order: 1, ActiveRound1: true}),
		schema.Lists.Encode(schema.CandidateList{ID: "B", Name: "Élan Citoyen", Order: 2, ActiveRound1: true}),
		schema.Lists.Encode(schema.CandidateList{ID: "C", Name: "Renouveau", Order: 3, ActiveRound1: true}),
	)
	cfg := testsupport.NewConfig(t,
		testsupport.WithSession("alice", role, precinct),
		testsupport.WithBackend(backend),
	)
	cfg.Logging.Level = "error"
	cfg.Election.Commune = "saint  ouen"
	return &cliTestEnv{backend: backend, configPath: testsupport.WriteConfig(t, cfg)}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, "supervisor", "")

	out, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "alice as supervisor")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = runCLI(t, env.configPath, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, err := runCLI(t, env.configPath, "config", "init", "--path", target); err == nil {
		t.Fatalf("config init should refuse to overwrite without --overwrite")
	}
}

func TestSubmitAndConsolidate(t *testing.T) {
	env := setupCLITestEnv(t, "administrator", "")

	out, err := runCLI(t, env.configPath, "submit", "result", "--precinct", "1", "--round", "1",
		"--blank", "10", "--null", "5", "--vote", "A=300", "--vote", "elan citoyen=250", "--vote", "C=100")
	if err != nil {
		t.Fatalf("submit result: %v", err)
	}
	requireContains(t, out, "Result recorded for precinct 1 round 1")

	out, err = runCLI(t, env.configPath, "submit", "result", "--precinct", "2", "--round", "1",
		"--turnout", "420", "--vote", "A=200", "--vote", "B=150", "--vote", "C=50")
	if err != nil {
		t.Fatalf("submit flagged result: %v", err)
	}
	requireContains(t, out, "turnout_mismatch")

	out, err = runCLI(t, env.configPath, "--json", "results", "--round", "1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	var view resultsView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode results: %v\n%s", err, out)
	}
	if view.Reporting != 2 || view.Expressed != 1050 || len(view.Lists) != 3 {
		t.Fatalf("results = %+v", view)
	}
	if view.Lists[0].ListID != "A" || view.Lists[0].Votes != 500 || view.Lists[1].ListID != "B" {
		t.Fatalf("ranking = %+v", view.Lists)
	}
	if len(view.Flags) != 1 || view.Flags[0].Kind != "turnout_mismatch" {
		t.Fatalf("flags = %+v", view.Flags)
	}

	out, err = runCLI(t, env.configPath, "results", "--round", "1")
	if err != nil {
		t.Fatalf("results table: %v", err)
	}
	requireContains(t, out, "Saint Ouen")
	requireContains(t, out, "2 of 2 precincts reporting")
	requireContains(t, out, "Ensemble")

	if len(env.backend.Rows(schema.TableAudit)) < 2 {
		t.Fatalf("submissions were not audited")
	}

	out, err = runCLI(t, env.configPath, "--json", "audit", "--action", "submit_result")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	var entries []auditView
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode audit: %v\n%s", err, out)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 submit_result entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Action != "submit_result" || e.Actor != "alice" || e.Entity != string(schema.TableResults) {
			t.Fatalf("unexpected audit entry %+v", e)
		}
	}
	if _, err := runCLI(t, env.configPath, "audit", "--action", "delete_everything"); err == nil {
		t.Fatal("expected unknown action to be rejected")
	}
}

func TestRoundTransitions(t *testing.T) {
	env := setupCLITestEnv(t, "administrator", "")
	env.backend.Seed(schema.TableResults,
		schema.Results.Encode(schema.ResultRecord{PrecinctID: "1", Round: 1, Turnout: 600, Expressed: 600, Votes: map[string]int64{"A": 270, "B": 210, "C": 120}}),
		schema.Results.Encode(schema.ResultRecord{PrecinctID: "2", Round: 1, Turnout: 400, Expressed: 400, Votes: map[string]int64{"A": 180, "B": 140, "C": 80}}),
	)

	out, err := runCLI(t, env.configPath, "qualify")
	if err != nil {
		t.Fatalf("qualify: %v", err)
	}
	requireContains(t, out, "Qualified: A, B")

	out, err = runCLI(t, env.configPath, "state", "lock-round1")
	if err != nil {
		t.Fatalf("lock-round1: %v", err)
	}
	requireContains(t, out, "round1_open to round1_locked")

	if _, err := runCLI(t, env.configPath, "state", "open-round2"); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("open-round2 without gate: err = %v", err)
	}
	if _, err := runCLI(t, env.configPath, "state", "gate", "on"); err != nil {
		t.Fatalf("gate on: %v", err)
	}
	out, err = runCLI(t, env.configPath, "state", "open-round2")
	if err != nil {
		t.Fatalf("open-round2: %v", err)
	}
	requireContains(t, out, "round1_locked to round2_open")

	for _, row := range env.backend.Rows(schema.TableLists) {
		list, ok, err := schema.Lists.Decode(row)
		if err != nil || !ok {
			t.Fatalf("decode list %v: %v", row, err)
		}
		if want := list.ID != "C"; list.ActiveRound2 != want {
			t.Fatalf("list %s active_round2 = %v", list.ID, list.ActiveRound2)
		}
	}

	out, err = runCLI(t, env.configPath, "--json", "state", "show")
	if err != nil {
		t.Fatalf("state show: %v", err)
	}
	var state stateView
	if err := json.Unmarshal([]byte(out), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Phase != "round2_open" || state.State["qualified_lists"] != "A,B" {
		t.Fatalf("state = %+v", state)
	}
}

func TestSeatsPersist(t *testing.T) {
	env := setupCLITestEnv(t, "administrator", "")
	env.backend.Seed(schema.TableResults,
		schema.Results.Encode(schema.ResultRecord{PrecinctID: "1", Round: 1, Turnout: 1000, Expressed: 1000, Votes: map[string]int64{"A": 520, "B": 300, "C": 180}}),
	)

	out, err := runCLI(t, env.configPath, "--json", "seats", "--round", "1", "--persist")
	if err != nil {
		t.Fatalf("seats: %v", err)
	}
	var views []seatsView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode seats: %v\n%s", err, out)
	}
	if len(views) != 2 {
		t.Fatalf("expected municipal and community allocations, got %d", len(views))
	}
	for _, v := range views {
		total := 0
		for _, a := range v.Allocations {
			total += a.Total
		}
		if total != v.TotalSeats {
			t.Fatalf("%s seats sum to %d, want %d", v.Kind, total, v.TotalSeats)
		}
	}
	if views[0].Premium != 18 || views[0].TotalSeats != 35 {
		t.Fatalf("municipal = %+v", views[0])
	}

	rows := env.backend.Rows(schema.TableSeats)
	if len(rows) != 6 {
		t.Fatalf("persisted %d seat rows, want 6", len(rows))
	}

	out, err = runCLI(t, env.configPath, "seats", "--stored", "--round", "1")
	if err != nil {
		t.Fatalf("seats --stored: %v", err)
	}
	requireContains(t, out, "Municipal")
	requireContains(t, out, "Community")

	out, err = runCLI(t, env.configPath, "seats", "--stored", "--round", "2")
	if err != nil {
		t.Fatalf("seats --stored round 2: %v", err)
	}
	requireContains(t, out, "No seat allocation saved")
}

func TestOperatorScope(t *testing.T) {
	env := setupCLITestEnv(t, "precinct_operator", "2")

	_, err := runCLI(t, env.configPath, "submit", "result", "--precinct", "1", "--round", "1", "--vote", "A=10")
	if !errors.Is(err, services.ErrPermissionDenied) {
		t.Fatalf("foreign precinct err = %v, want ErrPermissionDenied", err)
	}

	out, err := runCLI(t, env.configPath, "submit", "participation", "--round", "1", "--sample", "9=80", "--sample", "10h=150")
	if err != nil {
		t.Fatalf("submit participation: %v", err)
	}
	requireContains(t, out, "Participation recorded for precinct 2 round 1")

	out, err = runCLI(t, env.configPath, "participation", "--round", "1", "--hour", "11")
	if err != nil {
		t.Fatalf("participation: %v", err)
	}
	requireContains(t, out, "Turnout at 11h: 150 of 800 registered")

	if _, err := runCLI(t, env.configPath, "state", "lock-round1"); !errors.Is(err, services.ErrPermissionDenied) {
		t.Fatalf("operator lock err = %v, want ErrPermissionDenied", err)
	}
	if _, err := runCLI(t, env.configPath, "validate", "result", "--precinct", "2", "--round", "1"); !errors.Is(err, services.ErrPermissionDenied) {
		t.Fatalf("operator validate err = %v, want ErrPermissionDenied", err)
	}
}

func TestParseVotes(t *testing.T) {
	lists := []schema.CandidateList{
		{ID: "A", Name: "Ensemble"},
		{ID: "B", Name: "Élan Citoyen"},
	}
	votes, err := parseVotes([]string{"A=10", " elan  citoyen = 7"}, lists)
	if err != nil {
		t.Fatalf("parseVotes: %v", err)
	}
	if votes["A"] != 10 || votes["B"] != 7 {
		t.Fatalf("votes = %v", votes)
	}
	for _, bad := range [][]string{{"A"}, {"A=-1"}, {"Z=1"}, {"A=1", "Ensemble=2"}} {
		if _, err := parseVotes(bad, lists); err == nil {
			t.Errorf("parseVotes(%v) should fail", bad)
		}
	}
}
