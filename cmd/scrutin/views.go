package main

import (
	"time"

	"scrutin/internal/records"
	"scrutin/internal/runoff"
	"scrutin/internal/schema"
	"scrutin/internal/seats"
	"scrutin/internal/tally"
)

type flagView struct {
	PrecinctID string `json:"precinct_id"`
	Kind       string `json:"kind"`
	Expected   int64  `json:"expected"`
	Actual     int64  `json:"actual"`
	Detail     string `json:"detail,omitempty"`
}

func newFlagViews(flags []tally.Flag) []flagView {
	views := make([]flagView, 0, len(flags))
	for _, f := range flags {
		views = append(views, flagView{
			PrecinctID: f.PrecinctID,
			Kind:       f.Kind.String(),
			Expected:   f.Expected,
			Actual:     f.Actual,
			Detail:     f.Detail,
		})
	}
	return views
}

type listResultView struct {
	Rank          int     `json:"rank"`
	ListID        string  `json:"list_id"`
	Name          string  `json:"name"`
	Votes         int64   `json:"votes"`
	PctExpressed  float64 `json:"pct_expressed"`
	PctRegistered float64 `json:"pct_registered"`
}

type resultsView struct {
	Round      int              `json:"round"`
	Reporting  int              `json:"reporting"`
	Precincts  int              `json:"precincts"`
	Registered int64            `json:"registered"`
	Turnout    int64            `json:"turnout"`
	Blank      int64            `json:"blank"`
	Null       int64            `json:"null"`
	Expressed  int64            `json:"expressed"`
	Lists      []listResultView `json:"lists"`
	Flags      []flagView       `json:"flags"`
}

func newResultsView(c tally.Consolidation) resultsView {
	view := resultsView{
		Round:      c.Round,
		Reporting:  c.Reporting,
		Precincts:  c.Precincts,
		Registered: c.Totals.Registered,
		Turnout:    c.Totals.Turnout,
		Blank:      c.Totals.Blank,
		Null:       c.Totals.Null,
		Expressed:  c.Totals.Expressed,
		Lists:      make([]listResultView, 0, len(c.Lists)),
		Flags:      newFlagViews(c.Flags),
	}
	for _, l := range c.Lists {
		view.Lists = append(view.Lists, listResultView{
			Rank:          l.Rank,
			ListID:        l.ListID,
			Name:          l.Name,
			Votes:         l.Votes,
			PctExpressed:  l.PctExpressed,
			PctRegistered: l.PctRegistered,
		})
	}
	return view
}

type participationPointView struct {
	Hour       int     `json:"hour"`
	Turnout    int64   `json:"turnout"`
	Registered int64   `json:"registered"`
	Percent    float64 `json:"percent"`
	Reporting  int     `json:"reporting"`
}

func newPointView(p tally.ParticipationPoint) participationPointView {
	return participationPointView{
		Hour:       p.Hour,
		Turnout:    p.Turnout,
		Registered: p.Registered,
		Percent:    p.Percent,
		Reporting:  p.Reporting,
	}
}

type timelineView struct {
	Round  int                      `json:"round"`
	Points []participationPointView `json:"points"`
}

func newTimelineView(round int, points []tally.ParticipationPoint) timelineView {
	view := timelineView{Round: round, Points: make([]participationPointView, 0, len(points))}
	for _, p := range points {
		view.Points = append(view.Points, newPointView(p))
	}
	return view
}

type participationView struct {
	Round      int                    `json:"round"`
	Point      participationPointView `json:"point"`
	ByPrecinct map[string]int64       `json:"by_precinct"`
	Flags      []flagView             `json:"flags"`
}

func newParticipationView(round int, s tally.ParticipationSummary) participationView {
	return participationView{
		Round:      round,
		Point:      newPointView(s.Point),
		ByPrecinct: s.ByPrecinct,
		Flags:      newFlagViews(s.Flags),
	}
}

type allocationView struct {
	ListID       string  `json:"list_id"`
	Name         string  `json:"name"`
	Votes        int64   `json:"votes"`
	Percent      float64 `json:"percent"`
	Eligible     bool    `json:"eligible"`
	Majority     int     `json:"majority_seats"`
	Proportional int     `json:"proportional_seats"`
	Total        int     `json:"total_seats"`
}

type seatsView struct {
	Kind         string           `json:"kind"`
	Round        int              `json:"round"`
	TotalSeats   int              `json:"total_seats"`
	ThresholdPct float64          `json:"threshold_pct"`
	Premium      int              `json:"premium"`
	Allocations  []allocationView `json:"allocations"`
}

func newSeatsView(round int, r seats.Result) seatsView {
	view := seatsView{
		Kind:         string(r.Kind),
		Round:        round,
		TotalSeats:   r.TotalSeats,
		ThresholdPct: r.ThresholdPct,
		Premium:      r.Premium,
		Allocations:  make([]allocationView, 0, len(r.Allocations)),
	}
	for _, a := range r.Allocations {
		view.Allocations = append(view.Allocations, allocationView{
			ListID:       a.ListID,
			Name:         a.Name,
			Votes:        a.Votes,
			Percent:      a.Percent,
			Eligible:     a.Eligible,
			Majority:     a.Majority,
			Proportional: a.Proportional,
			Total:        a.Total,
		})
	}
	return view
}

type qualificationView struct {
	RunoffRequired bool     `json:"runoff_required"`
	Winner         string   `json:"winner,omitempty"`
	LeaderPct      float64  `json:"leader_pct"`
	Qualified      []string `json:"qualified"`
	Admitted       []string `json:"admitted"`
	Alerts         []string `json:"alerts"`
	Error          string   `json:"error,omitempty"`
}

func newQualificationView(q runoff.Qualification, err error) qualificationView {
	view := qualificationView{
		RunoffRequired: q.RunoffRequired,
		Winner:         q.Winner,
		LeaderPct:      q.LeaderPct,
		Qualified:      q.Qualified,
		Admitted:       q.Admitted,
		Alerts:         q.Alerts,
	}
	if err != nil {
		view.Error = err.Error()
	}
	return view
}

type stateView struct {
	Phase string            `json:"phase"`
	State map[string]string `json:"state"`
}

type outcomeView struct {
	From           string             `json:"from"`
	To             string             `json:"to"`
	Changes        records.State      `json:"changes"`
	Qualification  *qualificationView `json:"qualification,omitempty"`
	PropagationErr string             `json:"propagation_error,omitempty"`
}

func newOutcomeView(o runoff.Outcome) outcomeView {
	view := outcomeView{From: o.From.String(), To: o.To.String(), Changes: o.Changes}
	if o.Qualification != nil {
		q := newQualificationView(*o.Qualification, o.QualifyErr)
		view.Qualification = &q
	}
	if o.PropagationErr != nil {
		view.PropagationErr = o.PropagationErr.Error()
	}
	return view
}

type submitView struct {
	Created bool       `json:"created"`
	Row     int        `json:"row"`
	Flags   []flagView `json:"flags"`
}

func newSubmitView(o records.Outcome) submitView {
	return submitView{Created: o.Created, Row: o.Handle.Offset(), Flags: newFlagViews(o.Flags)}
}

type storedSeatView struct {
	Kind         string    `json:"kind"`
	Round        int       `json:"round"`
	ListID       string    `json:"list_id"`
	Votes        int64     `json:"votes"`
	Percent      float64   `json:"percent"`
	Majority     int       `json:"majority_seats"`
	Proportional int       `json:"proportional_seats"`
	Total        int       `json:"total_seats"`
	ComputedAt   time.Time `json:"computed_at"`
}

func newStoredSeatView(row schema.SeatRow) storedSeatView {
	return storedSeatView{
		Kind:         row.Kind,
		Round:        row.Round,
		ListID:       row.ListID,
		Votes:        row.Votes,
		Percent:      row.Percent,
		Majority:     row.Majority,
		Proportional: row.Proportional,
		Total:        row.Total,
		ComputedAt:   row.ComputedAt,
	}
}

type auditView struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Before    string    `json:"before,omitempty"`
	After     string    `json:"after,omitempty"`
}

func newAuditViews(entries []schema.AuditEntry) []auditView {
	views := make([]auditView, 0, len(entries))
	for _, e := range entries {
		views = append(views, auditView(e))
	}
	return views
}
