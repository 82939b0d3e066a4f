package seats

import (
	"fmt"
	"math"
	"sort"

	"scrutin/internal/services"
)

// Kind names the council being apportioned.
type Kind string

const (
	Municipal Kind = "municipal"
	Community Kind = "community"
)

// ListVotes is one list's communal total.
type ListVotes struct {
	ListID string
	Name   string
	Votes  int64
	// Order is the configured list ordering used to break ties.
	Order int
}

// Ranked is the input to apportionment: list totals and the communal
// expressed vote count the threshold is measured against.
type Ranked struct {
	Lists []ListVotes
	// Expressed defaults to the sum of list votes when zero.
	Expressed int64
}

// Allocation is the outcome for one list.
type Allocation struct {
	ListID       string
	Name         string
	Votes        int64
	Percent      float64
	Eligible     bool
	Majority     int
	Proportional int
	Total        int
}

// Result is a complete apportionment.
type Result struct {
	Kind         Kind
	TotalSeats   int
	ThresholdPct float64
	Premium      int
	Expressed    int64
	Allocations  []Allocation
}

// Allocation returns the line for listID.
func (r Result) Allocation(listID string) (Allocation, bool) {
	for _, a := range r.Allocations {
		if a.ListID == listID {
			return a, true
		}
	}
	return Allocation{}, false
}

// AllocateMunicipal awards ceil(total/2) seats to the top list and the
// remainder by highest averages among lists meeting thresholdPct.
func AllocateMunicipal(ranked Ranked, totalSeats int, thresholdPct float64) (Result, error) {
	return allocate(Municipal, ranked, totalSeats, thresholdPct)
}

// AllocateCommunity distributes totalSeats by highest averages among lists
// meeting thresholdPct, with no premium.
func AllocateCommunity(ranked Ranked, totalSeats int, thresholdPct float64) (Result, error) {
	return allocate(Community, ranked, totalSeats, thresholdPct)
}

func allocate(kind Kind, ranked Ranked, totalSeats int, thresholdPct float64) (Result, error) {
	op := "allocate " + string(kind)
	if totalSeats <= 0 {
		return Result{}, services.Wrap(services.ErrValidation, "seats", op, fmt.Sprintf("total seats must be positive, got %d", totalSeats), nil)
	}
	if thresholdPct < 0 || thresholdPct > 100 || math.IsNaN(thresholdPct) {
		return Result{}, services.Wrap(services.ErrValidation, "seats", op, fmt.Sprintf("threshold %.2f%% out of range", thresholdPct), nil)
	}
	lists, err := normalize(ranked.Lists)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "seats", op, err.Error(), nil)
	}
	var sum int64
	for _, l := range lists {
		sum += l.Votes
	}
	if sum == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "seats", op, "no votes to apportion", nil)
	}
	expressed := ranked.Expressed
	if expressed <= 0 {
		expressed = sum
	}

	out := Result{Kind: kind, TotalSeats: totalSeats, ThresholdPct: thresholdPct, Expressed: expressed}
	out.Allocations = make([]Allocation, len(lists))
	for i, l := range lists {
		out.Allocations[i] = Allocation{
			ListID:   l.ListID,
			Name:     l.Name,
			Votes:    l.Votes,
			Percent:  float64(l.Votes) * 100 / float64(expressed),
			Eligible: l.Votes > 0 && meetsThreshold(l.Votes, expressed, thresholdPct),
		}
	}

	remaining := totalSeats
	if kind == Municipal {
		// lists is sorted, so index 0 is the leader after order tie-breaks.
		out.Premium = (totalSeats + 1) / 2
		out.Allocations[0].Majority = out.Premium
		remaining -= out.Premium
	}

	eligible := make([]int, 0, len(lists))
	for i, a := range out.Allocations {
		if a.Eligible {
			eligible = append(eligible, i)
		}
	}
	if remaining > 0 && len(eligible) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "seats", op,
			fmt.Sprintf("no list reaches the %.2f%% threshold", thresholdPct), nil)
	}
	for seat := 0; seat < remaining; seat++ {
		best := eligible[0]
		for _, idx := range eligible[1:] {
			if beats(lists[idx], out.Allocations[idx].Proportional, lists[best], out.Allocations[best].Proportional) {
				best = idx
			}
		}
		out.Allocations[best].Proportional++
	}

	assigned := 0
	for i := range out.Allocations {
		a := &out.Allocations[i]
		a.Total = a.Majority + a.Proportional
		assigned += a.Total
	}
	if assigned != totalSeats {
		return Result{}, fmt.Errorf("%s: assigned %d seats, expected %d", op, assigned, totalSeats)
	}
	return out, nil
}

// normalize copies and sorts lists by votes desc, order asc, id asc.
func normalize(in []ListVotes) ([]ListVotes, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("no lists")
	}
	seen := make(map[string]bool, len(in))
	lists := make([]ListVotes, len(in))
	for i, l := range in {
		if l.ListID == "" {
			return nil, fmt.Errorf("list %d has no id", i)
		}
		if seen[l.ListID] {
			return nil, fmt.Errorf("duplicate list %s", l.ListID)
		}
		if l.Votes < 0 {
			return nil, fmt.Errorf("list %s has negative votes", l.ListID)
		}
		seen[l.ListID] = true
		lists[i] = l
	}
	sort.SliceStable(lists, func(i, j int) bool { return Less(lists[i], lists[j]) })
	return lists, nil
}

// Less orders lists by votes descending, then configured order, then id.
func Less(a, b ListVotes) bool {
	if a.Votes != b.Votes {
		return a.Votes > b.Votes
	}
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.ListID < b.ListID
}

// meetsThreshold compares votes/expressed >= pct/100 without division.
func meetsThreshold(votes, expressed int64, pct float64) bool {
	return float64(votes)*100 >= pct*float64(expressed)
}

// beats reports whether candidate's next quotient beats current's, comparing
// votes/(seats+1) exactly by cross-multiplication. Ties go to more raw votes,
// then to the configured order.
func beats(candidate ListVotes, candidateSeats int, current ListVotes, currentSeats int) bool {
	lhs := candidate.Votes * int64(currentSeats+1)
	rhs := current.Votes * int64(candidateSeats+1)
	if lhs != rhs {
		return lhs > rhs
	}
	return Less(candidate, current)
}
