package model

import "strings"

// ColumnKey labels one column of a RawTable. A key with a single level is
// flat; a key with several levels is composite, e.g. ("Close", "AAPL") when
// the source returns one column group per instrument.
type ColumnKey struct {
	Levels []string
}

// Flat builds a single-level key.
func Flat(name string) ColumnKey {
	return ColumnKey{Levels: []string{name}}
}

// Composite builds a multi-level key.
func Composite(levels ...string) ColumnKey {
	return ColumnKey{Levels: levels}
}

// IsComposite reports whether the key has more than one level.
func (k ColumnKey) IsComposite() bool {
	return len(k.Levels) > 1
}

func (k ColumnKey) String() string {
	if !k.IsComposite() {
		if len(k.Levels) == 0 {
			return ""
		}
		return k.Levels[0]
	}
	return "(" + strings.Join(k.Levels, ", ") + ")"
}

// RawRow is one dated observation. Index is the date label as delivered by
// the source (time.Time, a date string, or unix seconds); Values is parallel
// to the table's columns and may hold float64, string, json.Number or nil.
type RawRow struct {
	Index  any
	Values []any
}

// RawTable is the rectangular table returned by an upstream fetch.
type RawTable struct {
	Symbol  string
	Columns []ColumnKey
	Rows    []RawRow
}

// Len returns the number of rows.
func (t *RawTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// NormalizedTable is a RawTable whose column keys were flattened to unique
// strings. Rows are shared with the source table and must not be mutated.
type NormalizedTable struct {
	Symbol  string
	Columns []string
	Rows    []RawRow
}

// ColumnIndex returns the position of name, or -1.
func (t *NormalizedTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at row i for column index col, or nil when the row
// is shorter than the header.
func (t *NormalizedTable) Cell(i, col int) any {
	row := t.Rows[i]
	if col < 0 || col >= len(row.Values) {
		return nil
	}
	return row.Values[col]
}

// Tail returns the last n rows.
func (t *NormalizedTable) Tail(n int) []RawRow {
	if n >= len(t.Rows) {
		return t.Rows
	}
	return t.Rows[len(t.Rows)-n:]
}
