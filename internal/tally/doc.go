// Package tally consolidates precinct submissions into communal totals.
//
// Duplicate submissions for a precinct are resolved to a single record,
// totals are summed across resolved records, and lists are ranked. Record
// inconsistencies are reported as advisory flags alongside the totals and
// never stop consolidation.
package tally
