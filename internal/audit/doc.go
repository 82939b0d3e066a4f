// Package audit records mutations to the append-only Audit table.
//
// Recording is fire-and-forget: entries are queued and written by a single
// background worker, and failures are logged and dropped rather than
// returned to the operation being audited.
package audit
