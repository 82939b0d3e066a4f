// Package runoff decides whether a second round is needed, which lists
// contest it, and drives the election through its rounds.
package runoff

import (
	"context"
	"fmt"
	"sort"

	"scrutin/internal/seats"
	"scrutin/internal/services"
	"scrutin/internal/tally"
)

// Default thresholds, in percent of expressed votes.
const (
	DefaultAbsoluteMajorityPct = 50
	DefaultAdmissionPct        = 10
)

// Options are the qualification thresholds.
type Options struct {
	AbsoluteMajorityPct float64
	AdmissionPct        float64
}

func (o Options) normalized() Options {
	if o.AbsoluteMajorityPct <= 0 {
		o.AbsoluteMajorityPct = DefaultAbsoluteMajorityPct
	}
	if o.AdmissionPct <= 0 {
		o.AdmissionPct = DefaultAdmissionPct
	}
	return o
}

// Qualification is the outcome of round-one qualification.
type Qualification struct {
	RunoffRequired bool
	// Winner is set when the leading list holds an absolute majority.
	Winner    string
	LeaderPct float64
	// Qualified holds the two lists contesting round two, in rank order.
	Qualified []string
	// Admitted holds every list at or above the admission threshold.
	Admitted []string
	Alerts   []string
	Standing []seats.ListVotes
}

// Qualify applies the round-one rules to ranked totals. A tie for the
// second qualifying position returns ErrManualDecisionRequired.
func Qualify(ranked seats.Ranked, opts Options) (Qualification, error) {
	opts = opts.normalized()
	lists := append([]seats.ListVotes(nil), ranked.Lists...)
	sort.SliceStable(lists, func(i, j int) bool { return seats.Less(lists[i], lists[j]) })

	expressed := ranked.Expressed
	if expressed == 0 {
		for _, l := range lists {
			expressed += l.Votes
		}
	}
	if len(lists) == 0 || expressed <= 0 {
		return Qualification{}, services.Wrap(services.ErrValidation, "runoff", "qualify", "no expressed votes", nil)
	}

	q := Qualification{Standing: lists}
	leader := lists[0]
	q.LeaderPct = float64(leader.Votes) * 100 / float64(expressed)
	if float64(leader.Votes)*100 > opts.AbsoluteMajorityPct*float64(expressed) {
		q.Winner = leader.ListID
		return q, nil
	}

	q.RunoffRequired = true
	for _, l := range lists {
		if float64(l.Votes)*100 >= opts.AdmissionPct*float64(expressed) {
			q.Admitted = append(q.Admitted, l.ListID)
		}
	}
	if len(lists) < 2 {
		return q, services.Wrap(services.ErrValidation, "runoff", "qualify", "a runoff needs at least two lists", nil)
	}
	if len(lists) > 2 && lists[1].Votes == lists[2].Votes {
		tied := []string{lists[1].ListID}
		for _, l := range lists[2:] {
			if l.Votes == lists[1].Votes {
				tied = append(tied, l.ListID)
			}
		}
		q.Alerts = append(q.Alerts, fmt.Sprintf("lists %v tie for second place with %d votes", tied, lists[1].Votes))
		return q, services.Wrap(services.ErrManualDecisionRequired, "runoff", "qualify",
			fmt.Sprintf("tie for second place between %v", tied), nil)
	}

	q.Qualified = []string{lists[0].ListID, lists[1].ListID}
	if len(q.Admitted) > 2 {
		q.Alerts = append(q.Alerts, fmt.Sprintf("%d lists reached %.0f%%; only the top two qualified, an administrator may override", len(q.Admitted), opts.AdmissionPct))
	}
	if len(q.Admitted) < 2 {
		q.Alerts = append(q.Alerts, fmt.Sprintf("fewer than two lists reached %.0f%%; the top two qualified", opts.AdmissionPct))
	}
	return q, nil
}

// Qualifier produces the round-one qualification when round one locks.
type Qualifier func(ctx context.Context) (Qualification, error)

// RoundOneQualifier consolidates round one through svc and qualifies it.
func RoundOneQualifier(svc *tally.Service, opts Options) Qualifier {
	return func(ctx context.Context) (Qualification, error) {
		c, err := svc.Consolidate(ctx, 1)
		if err != nil {
			return Qualification{}, err
		}
		return Qualify(c.Ranked(), opts)
	}
}
