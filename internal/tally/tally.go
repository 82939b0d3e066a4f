package tally

import (
	"fmt"
	"math"
	"sort"

	"scrutin/internal/schema"
	"scrutin/internal/seats"
	"scrutin/internal/services"
)

// Submission is a stored result record with its physical row offset.
type Submission struct {
	Offset int
	Record schema.ResultRecord
}

// Totals are communal sums over resolved records.
type Totals struct {
	Registered int64
	Turnout    int64
	Blank      int64
	Null       int64
	Expressed  int64
}

// ListTotal is one list's communal result.
type ListTotal struct {
	Rank          int
	ListID        string
	Name          string
	Order         int
	Votes         int64
	PctExpressed  float64
	PctRegistered float64
}

// Consolidation is the complete result of one round.
type Consolidation struct {
	Round int
	// Resolved holds one submission per reporting precinct, by precinct id.
	Resolved []Submission
	Totals   Totals
	Lists    []ListTotal
	Flags    []Flag
	// Reporting is the number of precincts with a resolved record;
	// Precincts is the number of active precincts.
	Reporting int
	Precincts int
}

// Ranked converts the list totals into apportionment input.
func (c Consolidation) Ranked() seats.Ranked {
	lists := make([]seats.ListVotes, len(c.Lists))
	for i, l := range c.Lists {
		lists[i] = seats.ListVotes{ListID: l.ListID, Name: l.Name, Votes: l.Votes, Order: l.Order}
	}
	return seats.Ranked{Lists: lists, Expressed: c.Totals.Expressed}
}

// Resolve keeps one submission per precinct: the highest expressed count,
// then the highest row offset. Submissions for other rounds are ignored.
func Resolve(subs []Submission, round int) (resolved []Submission, duplicates map[string]int) {
	best := make(map[string]Submission)
	counts := make(map[string]int)
	for _, sub := range subs {
		if sub.Record.Round != round {
			continue
		}
		id := sub.Record.PrecinctID
		counts[id]++
		current, ok := best[id]
		if !ok || prefer(sub, current) {
			best[id] = sub
		}
	}
	resolved = make([]Submission, 0, len(best))
	for _, sub := range best {
		resolved = append(resolved, sub)
	}
	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].Record.PrecinctID < resolved[j].Record.PrecinctID
	})
	duplicates = make(map[string]int)
	for id, n := range counts {
		if n > 1 {
			duplicates[id] = n
		}
	}
	return resolved, duplicates
}

func prefer(candidate, current Submission) bool {
	if candidate.Record.Expressed != current.Record.Expressed {
		return candidate.Record.Expressed > current.Record.Expressed
	}
	return candidate.Offset > current.Offset
}

// Consolidate resolves duplicates, sums totals and ranks lists for round.
// It fails only on invalid input; inconsistent records produce flags.
func Consolidate(precincts []schema.Precinct, lists []schema.CandidateList, subs []Submission, round int) (Consolidation, error) {
	if round != 1 && round != 2 {
		return Consolidation{}, services.Wrap(services.ErrValidation, "tally", "consolidate", fmt.Sprintf("round must be 1 or 2, got %d", round), nil)
	}
	registered := make(map[string]int64, len(precincts))
	out := Consolidation{Round: round}
	for _, p := range precincts {
		registered[p.ID] = p.Registered
		if p.Active {
			out.Precincts++
		}
	}

	resolved, duplicates := Resolve(subs, round)
	out.Resolved = resolved
	out.Reporting = len(resolved)

	votes := make(map[string]int64)
	for _, sub := range resolved {
		rec := sub.Record
		reg, known := registered[rec.PrecinctID]
		if !known {
			out.Flags = append(out.Flags, Flag{
				PrecinctID: rec.PrecinctID,
				Kind:       FlagUnknownPrecinct,
				Detail:     "precinct is not in the reference table",
			})
		}
		if n := duplicates[rec.PrecinctID]; n > 1 {
			out.Flags = append(out.Flags, Flag{
				PrecinctID: rec.PrecinctID,
				Kind:       FlagDuplicateSubmission,
				Actual:     int64(n),
				Detail:     fmt.Sprintf("%d submissions, kept row %d", n, sub.Offset),
			})
		}
		out.Flags = append(out.Flags, CheckResult(rec, reg)...)

		out.Totals.Registered += reg
		out.Totals.Turnout += rec.Turnout
		out.Totals.Blank += rec.Blank
		out.Totals.Null += rec.Null
		out.Totals.Expressed += rec.Expressed
		for id, v := range rec.Votes {
			votes[id] += v
		}
	}

	totals := make(map[string]*ListTotal)
	for _, l := range lists {
		if !l.ActiveIn(round) {
			continue
		}
		totals[l.ID] = &ListTotal{ListID: l.ID, Name: l.Name, Order: l.Order}
	}
	for id, v := range votes {
		lt, ok := totals[id]
		if !ok {
			name, order := id, math.MaxInt32
			for _, l := range lists {
				if l.ID == id {
					name, order = l.Name, l.Order
				}
			}
			lt = &ListTotal{ListID: id, Name: name, Order: order}
			totals[id] = lt
			out.Flags = append(out.Flags, Flag{
				PrecinctID: "*",
				Kind:       FlagUnknownList,
				Actual:     v,
				Detail:     fmt.Sprintf("list %s received votes but is not active in round %d", id, round),
			})
		}
		lt.Votes = v
	}

	out.Lists = make([]ListTotal, 0, len(totals))
	for _, lt := range totals {
		lt.PctExpressed = percent(lt.Votes, out.Totals.Expressed)
		lt.PctRegistered = percent(lt.Votes, out.Totals.Registered)
		out.Lists = append(out.Lists, *lt)
	}
	sort.Slice(out.Lists, func(i, j int) bool {
		a, b := out.Lists[i], out.Lists[j]
		return seats.Less(
			seats.ListVotes{ListID: a.ListID, Votes: a.Votes, Order: a.Order},
			seats.ListVotes{ListID: b.ListID, Votes: b.Votes, Order: b.Order},
		)
	})
	for i := range out.Lists {
		out.Lists[i].Rank = i + 1
	}
	sort.SliceStable(out.Flags, func(i, j int) bool { return out.Flags[i].PrecinctID < out.Flags[j].PrecinctID })
	return out, nil
}

func percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
