// Package main hosts the scrutin CLI used by precinct operators, supervisors
// and administrators on election night.
//
// Every command builds one session from the configuration: a store client,
// the access guard for the configured role, the audit emitter and the
// records repository. Commands then consolidate results, apportion seats,
// qualify lists for the runoff or move the election between rounds. Output
// is a table by default and JSON with --json.
package main
