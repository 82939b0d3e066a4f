package tablestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUnknownSheet is returned when a range names a sheet that was never created.
var ErrUnknownSheet = errors.New("unknown sheet")

// Store persists sheets in SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("open table store: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn in one transaction, retrying the whole unit while the
// database is busy.
func (s *Store) inTx(ctx context.Context, fn func(q querier) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// EnsureSheet creates a sheet and writes its header row when missing. An
// existing header is left untouched.
func (s *Store) EnsureSheet(ctx context.Context, name string, header []string) error {
	return s.inTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO sheets (name, created_at) VALUES (?, ?)",
			name, s.timestamp(),
		); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		var present int
		if err := q.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM cells WHERE sheet = ? AND row = 1", name,
		).Scan(&present); err != nil {
			return fmt.Errorf("check header %s: %w", name, err)
		}
		if present > 0 || len(header) == 0 {
			return nil
		}
		return s.putRow(ctx, q, name, 1, header)
	})
}

// Sheets lists sheet names in creation order.
func (s *Store) Sheets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sheets ORDER BY created_at, name")
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Get returns the cells inside r. Rows absent from the store inside the
// range come back empty; trailing empty rows and cells are trimmed.
func (s *Store) Get(ctx context.Context, r Range) ([][]string, error) {
	var out [][]string
	err := retryOnBusy(ctx, func() error {
		stored, err := s.readRows(ctx, s.db, r)
		if err != nil {
			return err
		}
		out = stored
		return nil
	})
	return out, err
}

// Put writes rows starting at the top-left corner of r and returns the
// number of rows written.
func (s *Store) Put(ctx context.Context, r Range, values [][]string) (int, error) {
	err := s.inTx(ctx, func(q querier) error {
		return s.put(ctx, q, r, values)
	})
	if err != nil {
		return 0, err
	}
	return len(values), nil
}

// Append writes rows after the last row ever stored in the sheet and returns
// the range written.
func (s *Store) Append(ctx context.Context, r Range, values [][]string) (Range, error) {
	var written Range
	err := s.inTx(ctx, func(q querier) error {
		if err := s.checkSheet(ctx, q, r.Sheet); err != nil {
			return err
		}
		var last sql.NullInt64
		if err := q.QueryRowContext(ctx, "SELECT MAX(row) FROM cells WHERE sheet = ?", r.Sheet).Scan(&last); err != nil {
			return fmt.Errorf("find last row: %w", err)
		}
		first := int(last.Int64) + 1
		width := 0
		for _, row := range values {
			width = max(width, len(row))
		}
		written = Range{
			Sheet:    r.Sheet,
			FirstCol: r.FirstCol,
			LastCol:  r.FirstCol + max(width, 1) - 1,
			FirstRow: first,
			LastRow:  first + len(values) - 1,
		}
		target := Range{Sheet: r.Sheet, FirstCol: r.FirstCol, LastCol: -1, FirstRow: first}
		return s.put(ctx, q, target, values)
	})
	return written, err
}

// ValueRange pairs a range with the rows to write into it.
type ValueRange struct {
	Range  Range
	Values [][]string
}

// BatchPut applies every write in one transaction.
func (s *Store) BatchPut(ctx context.Context, data []ValueRange) error {
	return s.inTx(ctx, func(q querier) error {
		for _, vr := range data {
			if err := s.put(ctx, q, vr.Range, vr.Values); err != nil {
				return err
			}
		}
		return nil
	})
}

// BatchClear blanks the cells inside each range in one transaction. Row
// numbers are preserved.
func (s *Store) BatchClear(ctx context.Context, ranges []Range) error {
	return s.inTx(ctx, func(q querier) error {
		for _, r := range ranges {
			if err := s.clear(ctx, q, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) put(ctx context.Context, q querier, r Range, values [][]string) error {
	if err := s.checkSheet(ctx, q, r.Sheet); err != nil {
		return err
	}
	if r.LastRow > 0 && len(values) > r.LastRow-r.FirstRow+1 {
		return fmt.Errorf("%w: %d rows do not fit %s", ErrBadRange, len(values), r)
	}
	for i, cells := range values {
		if w := r.width(); w >= 0 && len(cells) > w {
			return fmt.Errorf("%w: %d cells do not fit %s", ErrBadRange, len(cells), r)
		}
		rowNumber := r.FirstRow + i
		existing, err := s.loadRow(ctx, q, r.Sheet, rowNumber)
		if err != nil {
			return err
		}
		merged := existing
		if need := r.FirstCol + len(cells); len(merged) < need {
			merged = append(merged, make([]string, need-len(merged))...)
		}
		copy(merged[r.FirstCol:], cells)
		if err := s.putRow(ctx, q, r.Sheet, rowNumber, merged); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) clear(ctx context.Context, q querier, r Range) error {
	if err := s.checkSheet(ctx, q, r.Sheet); err != nil {
		return err
	}
	stored, err := s.scanRows(ctx, q, r)
	if err != nil {
		return err
	}
	for _, row := range stored {
		cells := row.cells
		for c := r.FirstCol; c < len(cells) && (r.LastCol < 0 || c <= r.LastCol); c++ {
			cells[c] = ""
		}
		if err := s.putRow(ctx, q, r.Sheet, row.number, cells); err != nil {
			return err
		}
	}
	return nil
}

type storedRow struct {
	number int
	cells  []string
}

func (s *Store) scanRows(ctx context.Context, q querier, r Range) ([]storedRow, error) {
	last := r.LastRow
	if last <= 0 {
		last = int(^uint32(0) >> 1)
	}
	rows, err := q.QueryContext(ctx,
		"SELECT row, values_json FROM cells WHERE sheet = ? AND row BETWEEN ? AND ? ORDER BY row",
		r.Sheet, r.FirstRow, last,
	)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()
	var out []storedRow
	for rows.Next() {
		var (
			number  int
			payload string
		)
		if err := rows.Scan(&number, &payload); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(payload), &cells); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", number, err)
		}
		out = append(out, storedRow{number: number, cells: cells})
	}
	return out, rows.Err()
}

func (s *Store) readRows(ctx context.Context, q querier, r Range) ([][]string, error) {
	if err := s.checkSheet(ctx, q, r.Sheet); err != nil {
		return nil, err
	}
	stored, err := s.scanRows(ctx, q, r)
	if err != nil {
		return nil, err
	}
	var out [][]string
	for _, row := range stored {
		cells := sliceColumns(row.cells, r)
		if len(cells) == 0 {
			continue
		}
		for len(out) < row.number-r.FirstRow {
			out = append(out, []string{})
		}
		out = append(out, cells)
	}
	return out, nil
}

func sliceColumns(cells []string, r Range) []string {
	if r.FirstCol >= len(cells) {
		return nil
	}
	end := len(cells)
	if r.LastCol >= 0 && r.LastCol+1 < end {
		end = r.LastCol + 1
	}
	out := append([]string(nil), cells[r.FirstCol:end]...)
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func (s *Store) loadRow(ctx context.Context, q querier, sheet string, number int) ([]string, error) {
	var payload string
	err := q.QueryRowContext(ctx, "SELECT values_json FROM cells WHERE sheet = ? AND row = ?", sheet, number).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load row %d: %w", number, err)
	}
	var cells []string
	if err := json.Unmarshal([]byte(payload), &cells); err != nil {
		return nil, fmt.Errorf("decode row %d: %w", number, err)
	}
	return cells, nil
}

func (s *Store) putRow(ctx context.Context, q querier, sheet string, number int, cells []string) error {
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	if cells == nil {
		cells = []string{}
	}
	payload, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("encode row %d: %w", number, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO cells (sheet, row, values_json, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(sheet, row) DO UPDATE SET values_json = excluded.values_json, updated_at = excluded.updated_at`,
		sheet, number, string(payload), s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("write row %d: %w", number, err)
	}
	return nil
}

func (s *Store) checkSheet(ctx context.Context, q querier, sheet string) error {
	var present int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(1) FROM sheets WHERE name = ?", sheet).Scan(&present); err != nil {
		return fmt.Errorf("check sheet: %w", err)
	}
	if present == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSheet, sheet)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
