package schema

import (
	"fmt"
	"sort"
	"time"
)

// Precinct is a polling location with its own voter roll.
type Precinct struct {
	ID         string
	Name       string
	Registered int64
	Active     bool
}

// CandidateList is a list contesting the election.
type CandidateList struct {
	ID           string
	Name         string
	Color        string
	Order        int
	ActiveRound1 bool
	ActiveRound2 bool
}

// ActiveIn reports whether the list contests the given round.
func (l CandidateList) ActiveIn(round int) bool {
	if round == 2 {
		return l.ActiveRound2
	}
	return l.ActiveRound1
}

// ParticipationRecord carries the hourly cumulative turnout of one precinct
// for one round. Samples[i] is the count at hour FirstSampleHour+i; zero
// means not yet reported.
type ParticipationRecord struct {
	PrecinctID string
	Round      int
	Registered int64
	Samples    [SampleCount]int64
	UpdatedBy  string
	UpdatedAt  time.Time
}

// SampleAt returns the stored sample for hour, or 0 outside the window.
func (p ParticipationRecord) SampleAt(hour int) int64 {
	if hour < FirstSampleHour || hour > LastSampleHour {
		return 0
	}
	return p.Samples[hour-FirstSampleHour]
}

// SetSample stores a sample for hour. Hours outside the window are ignored
// and reported as false.
func (p *ParticipationRecord) SetSample(hour int, value int64) bool {
	if hour < FirstSampleHour || hour > LastSampleHour {
		return false
	}
	p.Samples[hour-FirstSampleHour] = value
	return true
}

// ResultRecord is the tally sheet of one precinct for one round.
type ResultRecord struct {
	PrecinctID  string
	Round       int
	Turnout     int64
	Blank       int64
	Null        int64
	Expressed   int64
	Votes       map[string]int64
	SubmittedBy string
	ValidatedBy string
	Timestamp   time.Time
}

// VoteSum returns the total of all list votes.
func (r ResultRecord) VoteSum() int64 {
	var sum int64
	for _, v := range r.Votes {
		sum += v
	}
	return sum
}

// StateEntry is one key/value/timestamp triple of the election state table.
type StateEntry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// AuditEntry is an append-only audit row. Before and After hold JSON snapshots.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Actor     string
	Action    string
	Entity    string
	EntityID  string
	Before    string
	After     string
}

// SeatRow is a persisted seat allocation line for one list.
type SeatRow struct {
	Kind         string
	Round        int
	ListID       string
	Votes        int64
	Percent      float64
	Majority     int
	Proportional int
	Total        int
	ComputedAt   time.Time
}

var Precincts = Codec[Precinct]{
	table: TablePrecincts,
	decode: func(r *reader) Precinct {
		p := Precinct{
			ID:         r.str(0),
			Name:       r.str(1),
			Registered: r.count(2),
			Active:     r.bool(3),
		}
		if p.ID == "" {
			r.fail(0, "precinct id is required", nil)
		}
		return p
	},
	encode: func(w *writer, p Precinct) {
		w.str(0, p.ID)
		w.str(1, p.Name)
		w.int(2, p.Registered)
		w.bool(3, p.Active)
	},
}

var Lists = Codec[CandidateList]{
	table: TableLists,
	decode: func(r *reader) CandidateList {
		l := CandidateList{
			ID:           r.str(0),
			Name:         r.str(1),
			Color:        r.str(2),
			Order:        int(r.int(3)),
			ActiveRound1: r.bool(4),
			ActiveRound2: r.bool(5),
		}
		if l.ID == "" {
			r.fail(0, "list id is required", nil)
		}
		return l
	},
	encode: func(w *writer, l CandidateList) {
		w.str(0, l.ID)
		w.str(1, l.Name)
		w.str(2, l.Color)
		w.int(3, int64(l.Order))
		w.bool(4, l.ActiveRound1)
		w.bool(5, l.ActiveRound2)
	},
}

const participationSampleOffset = 3

var Participation = Codec[ParticipationRecord]{
	table: TableParticipation,
	decode: func(r *reader) ParticipationRecord {
		p := ParticipationRecord{
			PrecinctID: r.str(0),
			Round:      decodeRound(r, 1),
			Registered: r.count(2),
		}
		for i := 0; i < SampleCount; i++ {
			p.Samples[i] = r.count(participationSampleOffset + i)
		}
		p.UpdatedBy = r.str(participationSampleOffset + SampleCount)
		p.UpdatedAt = r.time(participationSampleOffset + SampleCount + 1)
		if p.PrecinctID == "" {
			r.fail(0, "precinct id is required", nil)
		}
		return p
	},
	encode: func(w *writer, p ParticipationRecord) {
		w.str(0, p.PrecinctID)
		w.int(1, int64(p.Round))
		w.int(2, p.Registered)
		for i := 0; i < SampleCount; i++ {
			w.int(participationSampleOffset+i, p.Samples[i])
		}
		w.str(participationSampleOffset+SampleCount, p.UpdatedBy)
		w.time(participationSampleOffset+SampleCount+1, p.UpdatedAt)
	},
}

var Results = Codec[ResultRecord]{
	table: TableResults,
	decode: func(r *reader) ResultRecord {
		rec := ResultRecord{
			PrecinctID: r.str(0),
			Round:      decodeRound(r, 1),
			Turnout:    r.count(2),
			Blank:      r.count(3),
			Null:       r.count(4),
			Expressed:  r.count(5),
			Votes:      map[string]int64{},
		}
		r.json(6, &rec.Votes)
		if rec.Votes == nil {
			rec.Votes = map[string]int64{}
		}
		for _, id := range sortedKeys(rec.Votes) {
			if rec.Votes[id] < 0 {
				r.fail(6, fmt.Sprintf("negative votes for list %s", id), nil)
			}
		}
		rec.SubmittedBy = r.str(7)
		rec.ValidatedBy = r.str(8)
		rec.Timestamp = r.time(9)
		if rec.PrecinctID == "" {
			r.fail(0, "precinct id is required", nil)
		}
		return rec
	},
	encode: func(w *writer, rec ResultRecord) {
		votes := rec.Votes
		if votes == nil {
			votes = map[string]int64{}
		}
		w.str(0, rec.PrecinctID)
		w.int(1, int64(rec.Round))
		w.int(2, rec.Turnout)
		w.int(3, rec.Blank)
		w.int(4, rec.Null)
		w.int(5, rec.Expressed)
		w.json(6, votes)
		w.str(7, rec.SubmittedBy)
		w.str(8, rec.ValidatedBy)
		w.time(9, rec.Timestamp)
	},
}

var State = Codec[StateEntry]{
	table: TableState,
	decode: func(r *reader) StateEntry {
		e := StateEntry{Key: r.str(0), Value: r.str(1), UpdatedAt: r.time(2)}
		if e.Key == "" {
			r.fail(0, "state key is required", nil)
		}
		return e
	},
	encode: func(w *writer, e StateEntry) {
		w.str(0, e.Key)
		w.str(1, e.Value)
		w.time(2, e.UpdatedAt)
	},
}

var Audit = Codec[AuditEntry]{
	table: TableAudit,
	decode: func(r *reader) AuditEntry {
		return AuditEntry{
			ID:        r.str(0),
			Timestamp: r.time(1),
			Actor:     r.str(2),
			Action:    r.str(3),
			Entity:    r.str(4),
			EntityID:  r.str(5),
			Before:    r.str(6),
			After:     r.str(7),
		}
	},
	encode: func(w *writer, e AuditEntry) {
		w.str(0, e.ID)
		w.time(1, e.Timestamp)
		w.str(2, e.Actor)
		w.str(3, e.Action)
		w.str(4, e.Entity)
		w.str(5, e.EntityID)
		w.str(6, e.Before)
		w.str(7, e.After)
	},
}

var Seats = Codec[SeatRow]{
	table: TableSeats,
	decode: func(r *reader) SeatRow {
		return SeatRow{
			Kind:         r.str(0),
			Round:        decodeRound(r, 1),
			ListID:       r.str(2),
			Votes:        r.count(3),
			Percent:      r.float(4),
			Majority:     int(r.count(5)),
			Proportional: int(r.count(6)),
			Total:        int(r.count(7)),
			ComputedAt:   r.time(8),
		}
	},
	encode: func(w *writer, s SeatRow) {
		w.str(0, s.Kind)
		w.int(1, int64(s.Round))
		w.str(2, s.ListID)
		w.int(3, s.Votes)
		w.float(4, s.Percent)
		w.int(5, int64(s.Majority))
		w.int(6, int64(s.Proportional))
		w.int(7, int64(s.Total))
		w.time(8, s.ComputedAt)
	},
}

func decodeRound(r *reader, i int) int {
	round := r.int(i)
	if round != 1 && round != 2 {
		r.fail(i, fmt.Sprintf("round must be 1 or 2, got %d", round), nil)
		return 0
	}
	return int(round)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
