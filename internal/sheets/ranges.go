package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"scrutin/internal/schema"
)

// Handle identifies a physical data row. Handles are produced only by reads
// and appends; they cannot be built from field values.
type Handle struct {
	table  schema.Table
	offset int
}

// Table returns the table the row lives in.
func (h Handle) Table() schema.Table { return h.table }

// Offset returns the 0-based data row offset.
func (h Handle) Offset() int { return h.offset }

// Valid reports whether the handle came from the store.
func (h Handle) Valid() bool { return h.table != "" && h.offset >= 0 }

func (h Handle) String() string { return fmt.Sprintf("%s#%d", h.table, h.offset) }

// Row is one data row with its handle.
type Row struct {
	Handle Handle
	Values schema.Row
}

const headerRows = 1

func sheetRow(offset int) int { return offset + headerRows + 1 }

func columnName(index int) string {
	// index is 0-based; 0 -> A, 25 -> Z, 26 -> AA.
	name := ""
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		name = string(rune('A'+(n-1)%26)) + name
	}
	return name
}

func lastColumn(table schema.Table) string {
	return columnName(schema.MustLookup(table).Width() - 1)
}

func dataRange(table schema.Table) string {
	return fmt.Sprintf("%s!A%d:%s", table, sheetRow(0), lastColumn(table))
}

func headerRange(table schema.Table) string {
	return fmt.Sprintf("%s!A1:%s1", table, lastColumn(table))
}

func rowRange(h Handle) string {
	row := sheetRow(h.offset)
	return fmt.Sprintf("%s!A%d:%s%d", h.table, row, lastColumn(h.table), row)
}

// parseStartRow returns the first sheet row of an A1 range such as
// "Results!A5:J6" or "'Results'!A5:J6".
func parseStartRow(a1 string) (int, error) {
	cells := a1
	if idx := strings.LastIndex(a1, "!"); idx >= 0 {
		cells = a1[idx+1:]
	}
	if idx := strings.Index(cells, ":"); idx >= 0 {
		cells = cells[:idx]
	}
	digits := strings.TrimLeftFunc(cells, func(r rune) bool {
		return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || r == '$'
	})
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 {
		return 0, fmt.Errorf("invalid range %q", a1)
	}
	return row, nil
}
