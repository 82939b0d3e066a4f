package tally

import (
	"fmt"
	"sort"

	"scrutin/internal/schema"
)

// TurnoutAt returns the authoritative cumulative turnout of rec at hour:
// the last non-zero sample at or before hour.
func TurnoutAt(rec schema.ParticipationRecord, hour int) int64 {
	if hour > schema.LastSampleHour {
		hour = schema.LastSampleHour
	}
	for h := hour; h >= schema.FirstSampleHour; h-- {
		if v := rec.SampleAt(h); v != 0 {
			return v
		}
	}
	return 0
}

// ParticipationPoint is the communal turnout at one hour.
type ParticipationPoint struct {
	Hour       int
	Turnout    int64
	Registered int64
	Percent    float64
	Reporting  int
}

// ParticipationSummary is the communal participation at an hour with the
// advisory flags of the underlying records.
type ParticipationSummary struct {
	Point ParticipationPoint
	// ByPrecinct maps precinct id to its turnout at the hour.
	ByPrecinct map[string]int64
	Flags      []Flag
}

// latest keeps the last record per precinct in input order, which follows
// row offsets when records come from the store.
func latest(records []schema.ParticipationRecord) []schema.ParticipationRecord {
	index := make(map[string]int, len(records))
	var out []schema.ParticipationRecord
	for _, rec := range records {
		if i, ok := index[rec.PrecinctID]; ok {
			out[i] = rec
			continue
		}
		index[rec.PrecinctID] = len(out)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrecinctID < out[j].PrecinctID })
	return out
}

// ConsolidateParticipation sums per-precinct turnout at hour.
func ConsolidateParticipation(records []schema.ParticipationRecord, hour int) ParticipationPoint {
	point := ParticipationPoint{Hour: hour}
	for _, rec := range latest(records) {
		point.Registered += rec.Registered
		v := TurnoutAt(rec, hour)
		if v > 0 {
			point.Reporting++
		}
		point.Turnout += v
	}
	point.Percent = percent(point.Turnout, point.Registered)
	return point
}

// ParticipationTimeline returns one point per requested hour, in order.
func ParticipationTimeline(records []schema.ParticipationRecord, hours []int) []ParticipationPoint {
	points := make([]ParticipationPoint, 0, len(hours))
	for _, h := range hours {
		points = append(points, ConsolidateParticipation(records, h))
	}
	return points
}

// CheckParticipation returns the advisory flags of one record: cumulative
// samples that decrease and samples above the registered count.
func CheckParticipation(rec schema.ParticipationRecord) []Flag {
	var flags []Flag
	var prev int64
	prevHour := 0
	for i, v := range rec.Samples {
		if v == 0 {
			continue
		}
		hour := schema.FirstSampleHour + i
		if v < prev {
			flags = append(flags, Flag{
				PrecinctID: rec.PrecinctID,
				Kind:       FlagDecreasingSample,
				Expected:   prev,
				Actual:     v,
				Detail:     fmt.Sprintf("%02dh sample %d below %02dh sample %d", hour, v, prevHour, prev),
			})
		}
		if rec.Registered > 0 && v > rec.Registered {
			flags = append(flags, Flag{
				PrecinctID: rec.PrecinctID,
				Kind:       FlagSampleExceedsRegistered,
				Expected:   rec.Registered,
				Actual:     v,
				Detail:     fmt.Sprintf("%02dh sample %d exceeds %d registered", hour, v, rec.Registered),
			})
		}
		prev, prevHour = v, hour
	}
	return flags
}

// SummarizeParticipation consolidates records at hour and collects flags.
func SummarizeParticipation(records []schema.ParticipationRecord, hour int) ParticipationSummary {
	summary := ParticipationSummary{
		Point:      ConsolidateParticipation(records, hour),
		ByPrecinct: make(map[string]int64),
	}
	for _, rec := range latest(records) {
		summary.ByPrecinct[rec.PrecinctID] = TurnoutAt(rec, hour)
		summary.Flags = append(summary.Flags, CheckParticipation(rec)...)
	}
	return summary
}
