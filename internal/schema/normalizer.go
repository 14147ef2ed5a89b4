// Package schema flattens source column labels and locates the close price.
package schema

import (
	"strings"

	"PriceForecaster/internal/model"
)

// Separator joins the levels of a composite column key.
const Separator = "_"

// FlattenKey maps a column key to a single name. Composite keys join their
// non-blank levels with Separator and are trimmed; flat keys pass through.
func FlattenKey(k model.ColumnKey) string {
	if !k.IsComposite() {
		return k.String()
	}
	parts := make([]string, 0, len(k.Levels))
	for _, l := range k.Levels {
		if strings.TrimSpace(l) == "" {
			continue
		}
		parts = append(parts, l)
	}
	return strings.TrimSpace(strings.Join(parts, Separator))
}

// Normalize rewrites every column key of t to a flat name. It fails with a
// *model.SchemaError when two keys flatten to the same name.
func Normalize(t *model.RawTable) (*model.NormalizedTable, error) {
	columns := make([]string, len(t.Columns))
	seen := make(map[string]int, len(t.Columns))
	for i, k := range t.Columns {
		name := FlattenKey(k)
		if j, dup := seen[name]; dup {
			return nil, &model.SchemaError{Column: name, First: t.Columns[j], Second: k}
		}
		seen[name] = i
		columns[i] = name
	}
	return &model.NormalizedTable{
		Symbol:  t.Symbol,
		Columns: columns,
		Rows:    t.Rows,
	}, nil
}
