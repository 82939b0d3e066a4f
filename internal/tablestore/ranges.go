package tablestore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadRange is returned for A1 ranges the store cannot interpret.
var ErrBadRange = errors.New("unable to parse range")

// Range is a rectangular A1 range. Columns are 0-based, rows 1-based;
// LastCol < 0 and LastRow == 0 mean unbounded.
type Range struct {
	Sheet    string
	FirstCol int
	LastCol  int
	FirstRow int
	LastRow  int
}

// ParseRange parses "Sheet", "Sheet!A2:D", "Sheet!A5:D5" or "'My Sheet'!B3".
func ParseRange(a1 string) (Range, error) {
	a1 = strings.TrimSpace(a1)
	sheet, cells := a1, ""
	if idx := strings.LastIndex(a1, "!"); idx >= 0 {
		sheet, cells = a1[:idx], a1[idx+1:]
		if cells == "" {
			return Range{}, fmt.Errorf("%w: %q", ErrBadRange, a1)
		}
	}
	if len(sheet) >= 2 && strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	if sheet == "" {
		return Range{}, fmt.Errorf("%w: %q", ErrBadRange, a1)
	}
	r := Range{Sheet: sheet, LastCol: -1, FirstRow: 1}
	if cells == "" {
		return r, nil
	}

	start, end, hasEnd := strings.Cut(cells, ":")
	col, row, err := parseCell(start)
	if err != nil || col < 0 {
		return Range{}, fmt.Errorf("%w: %q", ErrBadRange, a1)
	}
	r.FirstCol = col
	if row > 0 {
		r.FirstRow = row
	}
	if !hasEnd {
		r.LastCol = col
		r.LastRow = r.FirstRow
		return r, nil
	}
	col, row, err = parseCell(end)
	if err != nil || (col >= 0 && col < r.FirstCol) || (row > 0 && row < r.FirstRow) {
		return Range{}, fmt.Errorf("%w: %q", ErrBadRange, a1)
	}
	r.LastCol = col
	r.LastRow = row
	return r, nil
}

// parseCell splits "AB12" into column 27 and row 12. Missing parts are
// reported as -1 and 0.
func parseCell(ref string) (int, int, error) {
	ref = strings.ReplaceAll(strings.TrimSpace(ref), "$", "")
	if ref == "" {
		return 0, 0, ErrBadRange
	}
	i := 0
	col := 0
	for i < len(ref) {
		c := ref[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			break
		}
		col = col*26 + int(c-'A'+1)
		i++
	}
	row := 0
	if i < len(ref) {
		n, err := strconv.Atoi(ref[i:])
		if err != nil || n < 1 {
			return 0, 0, ErrBadRange
		}
		row = n
	}
	return col - 1, row, nil
}

// String formats the range in A1 notation.
func (r Range) String() string {
	var b strings.Builder
	b.WriteString(r.Sheet)
	b.WriteString("!")
	b.WriteString(columnName(r.FirstCol))
	b.WriteString(strconv.Itoa(r.FirstRow))
	b.WriteString(":")
	if r.LastCol >= 0 {
		b.WriteString(columnName(r.LastCol))
	}
	if r.LastRow > 0 {
		b.WriteString(strconv.Itoa(r.LastRow))
	}
	return b.String()
}

func (r Range) width() int {
	if r.LastCol < 0 {
		return -1
	}
	return r.LastCol - r.FirstCol + 1
}

func columnName(index int) string {
	name := ""
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		name = string(rune('A'+(n-1)%26)) + name
	}
	return name
}
