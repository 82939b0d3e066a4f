// Package sheets is the client for the remote tabular store.
//
// A Client speaks a subset of the spreadsheet values API: ranged reads,
// single-row updates, appends, batch updates and batch clears. It owns the
// per-session read cache, coalesces identical in-flight reads, and retries
// rate-limited or failed requests with capped exponential backoff.
//
// Rows are addressed by opaque handles obtained from reads or appends. Data
// offset 0 is sheet row 2; row 1 holds the header.
package sheets
