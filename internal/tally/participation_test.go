package tally

import (
	"testing"

	"scrutin/internal/schema"
)

func sampled(precinct string, registered int64, samples map[int]int64) schema.ParticipationRecord {
	rec := schema.ParticipationRecord{PrecinctID: precinct, Round: 1, Registered: registered}
	for hour, v := range samples {
		rec.SetSample(hour, v)
	}
	return rec
}

func TestTurnoutAt(t *testing.T) {
	rec := sampled("1", 1000, map[int]int64{9: 50, 10: 120, 12: 300})
	tests := []struct {
		hour int
		want int64
	}{
		{8, 0},
		{9, 50},
		{10, 120},
		{11, 120},
		{12, 300},
		{20, 300},
		{23, 300},
	}
	for _, tt := range tests {
		if got := TurnoutAt(rec, tt.hour); got != tt.want {
			t.Errorf("TurnoutAt(%d) = %d, want %d", tt.hour, got, tt.want)
		}
	}
}

func TestConsolidateParticipation(t *testing.T) {
	records := []schema.ParticipationRecord{
		sampled("1", 1000, map[int]int64{10: 100, 12: 250}),
		sampled("2", 1000, map[int]int64{11: 150}),
		sampled("1", 1000, map[int]int64{10: 110, 12: 260}),
	}
	p := ConsolidateParticipation(records, 12)
	if p.Turnout != 410 || p.Registered != 2000 || p.Reporting != 2 {
		t.Fatalf("point = %+v", p)
	}
	if p.Percent != 20.5 {
		t.Fatalf("percent = %f, want 20.5", p.Percent)
	}

	timeline := ParticipationTimeline(records, []int{10, 11, 12})
	want := []int64{110, 260, 410}
	for i, pt := range timeline {
		if pt.Turnout != want[i] {
			t.Errorf("timeline[%d] = %d, want %d", i, pt.Turnout, want[i])
		}
	}
}

func TestConsolidateParticipationEmpty(t *testing.T) {
	p := ConsolidateParticipation(nil, 12)
	if p.Turnout != 0 || p.Percent != 0 {
		t.Fatalf("point = %+v", p)
	}
}

func TestCheckParticipation(t *testing.T) {
	rec := sampled("4", 200, map[int]int64{9: 50, 10: 40, 11: 0, 12: 210})
	flags := CheckParticipation(rec)
	if len(flags) != 2 {
		t.Fatalf("flags = %v, want 2", flags)
	}
	if flags[0].Kind != FlagDecreasingSample || flags[0].Expected != 50 || flags[0].Actual != 40 {
		t.Fatalf("flags[0] = %+v", flags[0])
	}
	if flags[1].Kind != FlagSampleExceedsRegistered || flags[1].Actual != 210 {
		t.Fatalf("flags[1] = %+v", flags[1])
	}
}

func TestSummarizeParticipation(t *testing.T) {
	records := []schema.ParticipationRecord{
		sampled("1", 100, map[int]int64{9: 20}),
		sampled("2", 100, map[int]int64{9: 30, 10: 25}),
	}
	s := SummarizeParticipation(records, 10)
	if s.ByPrecinct["1"] != 20 || s.ByPrecinct["2"] != 25 {
		t.Fatalf("by precinct = %v", s.ByPrecinct)
	}
	if len(s.Flags) != 1 || s.Flags[0].PrecinctID != "2" {
		t.Fatalf("flags = %v", s.Flags)
	}
}
