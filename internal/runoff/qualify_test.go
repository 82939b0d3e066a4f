package runoff

import (
	"errors"
	"testing"

	"scrutin/internal/seats"
	"scrutin/internal/services"
)

func ranked(votes ...int64) seats.Ranked {
	ids := []string{"A", "B", "C", "D", "E"}
	var r seats.Ranked
	for i, v := range votes {
		r.Lists = append(r.Lists, seats.ListVotes{ListID: ids[i], Votes: v, Order: i + 1})
	}
	return r
}

func TestQualifyAbsoluteMajority(t *testing.T) {
	q, err := Qualify(ranked(510, 300, 190), Options{})
	if err != nil {
		t.Fatalf("Qualify: %v", err)
	}
	if q.RunoffRequired || q.Winner != "A" || len(q.Qualified) != 0 {
		t.Fatalf("qualification = %+v", q)
	}
}

func TestQualifyExactlyHalfNeedsRunoff(t *testing.T) {
	q, err := Qualify(ranked(500, 300, 200), Options{})
	if err != nil {
		t.Fatalf("Qualify: %v", err)
	}
	if !q.RunoffRequired || q.Winner != "" {
		t.Fatalf("50%% is not an absolute majority: %+v", q)
	}
	if len(q.Qualified) != 2 || q.Qualified[0] != "A" || q.Qualified[1] != "B" {
		t.Fatalf("qualified = %v", q.Qualified)
	}
}

func TestQualifyTopTwoWithAlert(t *testing.T) {
	q, err := Qualify(ranked(150, 400, 250, 200), Options{})
	if err != nil {
		t.Fatalf("Qualify: %v", err)
	}
	if len(q.Qualified) != 2 || q.Qualified[0] != "B" || q.Qualified[1] != "C" {
		t.Fatalf("qualified = %v", q.Qualified)
	}
	if len(q.Admitted) != 4 {
		t.Fatalf("admitted = %v", q.Admitted)
	}
	if len(q.Alerts) != 1 {
		t.Fatalf("alerts = %v", q.Alerts)
	}
}

func TestQualifyTieForSecond(t *testing.T) {
	q, err := Qualify(ranked(600, 300, 300), Options{})
	if !errors.Is(err, services.ErrManualDecisionRequired) {
		t.Fatalf("err = %v, want ErrManualDecisionRequired", err)
	}
	if len(q.Qualified) != 0 || len(q.Alerts) == 0 {
		t.Fatalf("tie must not qualify automatically: %+v", q)
	}
}

func TestQualifyTieForFirstIsFine(t *testing.T) {
	q, err := Qualify(ranked(400, 400, 200), Options{})
	if err != nil {
		t.Fatalf("Qualify: %v", err)
	}
	if len(q.Qualified) != 2 || q.Qualified[0] != "A" || q.Qualified[1] != "B" {
		t.Fatalf("qualified = %v", q.Qualified)
	}
}

func TestQualifyExpressedIncludesUnlistedVotes(t *testing.T) {
	r := ranked(450, 100)
	r.Expressed = 1000
	q, err := Qualify(r, Options{AdmissionPct: 12.5})
	if err != nil {
		t.Fatalf("Qualify: %v", err)
	}
	if !q.RunoffRequired || len(q.Admitted) != 1 {
		t.Fatalf("qualification = %+v", q)
	}
	if len(q.Alerts) != 1 {
		t.Fatalf("expected a below-threshold alert, got %v", q.Alerts)
	}
}

func TestQualifyRejectsEmptyInput(t *testing.T) {
	for name, r := range map[string]seats.Ranked{
		"no lists": {},
		"no votes": ranked(0, 0),
	} {
		if _, err := Qualify(r, Options{}); !errors.Is(err, services.ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", name, err)
		}
	}
}
