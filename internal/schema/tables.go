package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Table names a sheet of the election workbook.
type Table string

const (
	TablePrecincts     Table = "Precincts"
	TableLists         Table = "Lists"
	TableParticipation Table = "Participation"
	TableResults       Table = "Results"
	TableState         Table = "State"
	TableAudit         Table = "Audit"
	TableSeats         Table = "Seats"
)

// Turnout samples are stored one column per hour in this window.
const (
	FirstSampleHour = 8
	LastSampleHour  = 20
	SampleCount     = LastSampleHour - FirstSampleHour + 1
)

// Kind is the storage type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindFloat
	KindTime
	KindJSON
)

// Column is one typed column of a table.
type Column struct {
	Name string
	Kind Kind
}

// Schema is the ordered column layout of one table.
type Schema struct {
	Table   Table
	Columns []Column
	// PrecinctColumn is the index of the precinct id column on
	// precinct-scoped tables and -1 elsewhere.
	PrecinctColumn int
}

// Width returns the number of columns.
func (s Schema) Width() int { return len(s.Columns) }

// Scoped reports whether rows of the table belong to a single precinct.
func (s Schema) Scoped() bool { return s.PrecinctColumn >= 0 }

// Header returns the header row written at row 1.
func (s Schema) Header() Row {
	header := make(Row, len(s.Columns))
	for i, col := range s.Columns {
		header[i] = col.Name
	}
	return header
}

func participationColumns() []Column {
	cols := []Column{
		{Name: "precinct_id", Kind: KindString},
		{Name: "round", Kind: KindInt},
		{Name: "registered", Kind: KindInt},
	}
	for hour := FirstSampleHour; hour <= LastSampleHour; hour++ {
		cols = append(cols, Column{Name: fmt.Sprintf("h%02d", hour), Kind: KindInt})
	}
	return append(cols,
		Column{Name: "updated_by", Kind: KindString},
		Column{Name: "updated_at", Kind: KindTime},
	)
}

var schemas = map[Table]Schema{
	TablePrecincts: {
		Table: TablePrecincts,
		Columns: []Column{
			{Name: "id", Kind: KindString},
			{Name: "name", Kind: KindString},
			{Name: "registered", Kind: KindInt},
			{Name: "active", Kind: KindBool},
		},
		PrecinctColumn: -1,
	},
	TableLists: {
		Table: TableLists,
		Columns: []Column{
			{Name: "id", Kind: KindString},
			{Name: "name", Kind: KindString},
			{Name: "color", Kind: KindString},
			{Name: "order", Kind: KindInt},
			{Name: "active_round1", Kind: KindBool},
			{Name: "active_round2", Kind: KindBool},
		},
		PrecinctColumn: -1,
	},
	TableParticipation: {
		Table:          TableParticipation,
		Columns:        participationColumns(),
		PrecinctColumn: 0,
	},
	TableResults: {
		Table: TableResults,
		Columns: []Column{
			{Name: "precinct_id", Kind: KindString},
			{Name: "round", Kind: KindInt},
			{Name: "turnout", Kind: KindInt},
			{Name: "blank", Kind: KindInt},
			{Name: "null", Kind: KindInt},
			{Name: "expressed", Kind: KindInt},
			{Name: "votes", Kind: KindJSON},
			{Name: "submitted_by", Kind: KindString},
			{Name: "validated_by", Kind: KindString},
			{Name: "timestamp", Kind: KindTime},
		},
		PrecinctColumn: 0,
	},
	TableState: {
		Table: TableState,
		Columns: []Column{
			{Name: "key", Kind: KindString},
			{Name: "value", Kind: KindString},
			{Name: "updated_at", Kind: KindTime},
		},
		PrecinctColumn: -1,
	},
	TableAudit: {
		Table: TableAudit,
		Columns: []Column{
			{Name: "id", Kind: KindString},
			{Name: "timestamp", Kind: KindTime},
			{Name: "actor", Kind: KindString},
			{Name: "action", Kind: KindString},
			{Name: "entity", Kind: KindString},
			{Name: "entity_id", Kind: KindString},
			{Name: "before", Kind: KindJSON},
			{Name: "after", Kind: KindJSON},
		},
		PrecinctColumn: -1,
	},
	TableSeats: {
		Table: TableSeats,
		Columns: []Column{
			{Name: "kind", Kind: KindString},
			{Name: "round", Kind: KindInt},
			{Name: "list_id", Kind: KindString},
			{Name: "votes", Kind: KindInt},
			{Name: "percent", Kind: KindFloat},
			{Name: "majority_seats", Kind: KindInt},
			{Name: "proportional_seats", Kind: KindInt},
			{Name: "total_seats", Kind: KindInt},
			{Name: "computed_at", Kind: KindTime},
		},
		PrecinctColumn: -1,
	},
}

var tableOrder = []Table{
	TablePrecincts,
	TableLists,
	TableParticipation,
	TableResults,
	TableState,
	TableAudit,
	TableSeats,
}

// Lookup returns the schema registered for table.
func Lookup(table Table) (Schema, bool) {
	s, ok := schemas[table]
	return s, ok
}

// MustLookup returns the schema for a known table and panics otherwise.
func MustLookup(table Table) Schema {
	s, ok := schemas[table]
	if !ok {
		panic("schema: unknown table " + strconv.Quote(string(table)))
	}
	return s
}

// Tables returns every table in workbook order.
func Tables() []Table {
	return append([]Table(nil), tableOrder...)
}

// ParseTable converts a sheet name into a known Table.
func ParseTable(name string) (Table, bool) {
	t := Table(name)
	_, ok := schemas[t]
	return t, ok
}

// PrecinctOf returns the precinct id carried by row on a precinct-scoped
// table. ok is false for reference tables and for rows without the column.
func PrecinctOf(table Table, row Row) (string, bool) {
	s, known := schemas[table]
	if !known || !s.Scoped() || len(row) <= s.PrecinctColumn {
		return "", false
	}
	return strings.TrimSpace(row[s.PrecinctColumn]), true
}
