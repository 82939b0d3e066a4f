package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"scrutin/internal/services"
)

// Row is one flat row of cell values as exchanged with the store.
type Row []string

// Blank reports whether every cell is empty. Cleared rows keep their offset
// in the table but carry no entity.
func (r Row) Blank() bool {
	for _, cell := range r {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	return append(Row(nil), r...)
}

// Codec converts one entity type to and from rows of its table.
type Codec[T any] struct {
	table  Table
	decode func(*reader) T
	encode func(*writer, T)
}

// Table returns the table the codec is bound to.
func (c Codec[T]) Table() Table { return c.table }

// Schema returns the column layout of the codec's table.
func (c Codec[T]) Schema() Schema { return MustLookup(c.table) }

// Decode converts a row into an entity. ok is false for blank rows. Rows
// shorter than the schema are padded because the store trims trailing empty
// cells. Decoding is lenient about hand-edited cells: booleans accept
// 1/0, yes/no and oui/non, and timestamps with any offset are read as UTC.
// Only canonical rows, as produced by Encode, re-encode byte for byte.
func (c Codec[T]) Decode(row Row) (T, bool, error) {
	var zero T
	if row.Blank() {
		return zero, false, nil
	}
	s := c.Schema()
	if len(row) > s.Width() {
		return zero, false, services.Wrap(services.ErrValidation, "schema", string(c.table),
			fmt.Sprintf("row has %d cells, schema has %d columns", len(row), s.Width()), nil)
	}
	padded := make(Row, s.Width())
	copy(padded, row)
	r := &reader{schema: s, row: padded}
	value := c.decode(r)
	if r.err != nil {
		return zero, false, r.err
	}
	return value, true, nil
}

// Encode converts an entity into a full-width canonical row: booleans as
// TRUE or FALSE, timestamps in UTC RFC 3339.
func (c Codec[T]) Encode(value T) Row {
	s := c.Schema()
	w := &writer{row: make(Row, s.Width())}
	c.encode(w, value)
	return w.row
}

type reader struct {
	schema Schema
	row    Row
	err    error
}

func (r *reader) fail(i int, message string, err error) {
	if r.err != nil {
		return
	}
	detail := fmt.Sprintf("column %s: %s", r.schema.Columns[i].Name, message)
	r.err = services.Wrap(services.ErrValidation, "schema", string(r.schema.Table), detail, err)
}

func (r *reader) str(i int) string {
	return strings.TrimSpace(r.row[i])
}

func (r *reader) int(i int) int64 {
	cell := strings.TrimSpace(r.row[i])
	if cell == "" {
		return 0
	}
	v, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		r.fail(i, fmt.Sprintf("invalid integer %q", cell), nil)
		return 0
	}
	return v
}

func (r *reader) count(i int) int64 {
	v := r.int(i)
	if v < 0 {
		r.fail(i, fmt.Sprintf("negative count %d", v), nil)
		return 0
	}
	return v
}

func (r *reader) bool(i int) bool {
	switch strings.ToUpper(strings.TrimSpace(r.row[i])) {
	case "TRUE", "1", "YES", "OUI":
		return true
	case "FALSE", "0", "NO", "NON", "":
		return false
	default:
		r.fail(i, fmt.Sprintf("invalid boolean %q", r.row[i]), nil)
		return false
	}
}

func (r *reader) float(i int) float64 {
	cell := strings.TrimSpace(r.row[i])
	if cell == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		r.fail(i, fmt.Sprintf("invalid number %q", cell), nil)
		return 0
	}
	return v
}

func (r *reader) time(i int) time.Time {
	cell := strings.TrimSpace(r.row[i])
	if cell == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, cell)
	if err != nil {
		r.fail(i, fmt.Sprintf("invalid timestamp %q", cell), err)
		return time.Time{}
	}
	return ts.UTC()
}

func (r *reader) json(i int, target any) {
	cell := strings.TrimSpace(r.row[i])
	if cell == "" {
		return
	}
	if err := json.Unmarshal([]byte(cell), target); err != nil {
		r.fail(i, "invalid json", err)
	}
}

type writer struct {
	row Row
}

func (w *writer) str(i int, v string) { w.row[i] = v }

func (w *writer) int(i int, v int64) { w.row[i] = strconv.FormatInt(v, 10) }

func (w *writer) bool(i int, v bool) {
	if v {
		w.row[i] = "TRUE"
		return
	}
	w.row[i] = "FALSE"
}

func (w *writer) float(i int, v float64) { w.row[i] = strconv.FormatFloat(v, 'f', -1, 64) }

func (w *writer) time(i int, v time.Time) {
	if v.IsZero() {
		w.row[i] = ""
		return
	}
	w.row[i] = v.UTC().Format(time.RFC3339Nano)
}

func (w *writer) json(i int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		// Only maps of strings and integers reach here; they always marshal.
		w.row[i] = ""
		return
	}
	w.row[i] = string(data)
}
