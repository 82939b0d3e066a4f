// Package tablestore is a local SQLite-backed implementation of the
// spreadsheet values API used by the store client.
//
// It backs offline and development deployments (scrutind) and integration
// tests. Sheets are keyed by name, rows by their 1-based sheet row number,
// and each row is stored as a JSON array of cell strings. Cleared rows keep
// their row number so appended rows never reuse an offset.
//
// When the schema changes, update schema.sql and bump schemaVersion.
package tablestore
