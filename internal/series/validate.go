// Package series coerces one table column into a validated price series.
package series

import (
	"PriceForecaster/internal/model"
)

// Validate extracts column from t as a series. Rows whose date or value
// cannot be coerced, or whose value is not finite, are dropped; the
// remaining rows keep their table order. An empty result is not an error
// here: callers that need points use RequireLen.
func Validate(t *model.NormalizedTable, column string) (*model.Series, error) {
	col := t.ColumnIndex(column)
	if col < 0 {
		return nil, &model.ColumnNotFoundError{Want: column, Columns: t.Columns}
	}

	points := make([]model.PricePoint, 0, len(t.Rows))
	for i, row := range t.Rows {
		ts, ok := ParseDate(row.Index)
		if !ok {
			continue
		}
		v, ok := ParseValue(t.Cell(i, col))
		if !ok {
			continue
		}
		points = append(points, model.PricePoint{Time: ts, Value: v})
	}

	return &model.Series{Symbol: t.Symbol, Column: column, Points: points}, nil
}

// RequireLen fails with *model.EmptySeriesError when s has fewer than n points.
func RequireLen(s *model.Series, n int) error {
	if s.Len() < n {
		return &model.EmptySeriesError{Column: s.Column, Required: n, Got: s.Len()}
	}
	return nil
}

// ToTable renders s back into a single-column table, so a validated series
// can be fed through Validate again.
func ToTable(s *model.Series) *model.NormalizedTable {
	rows := make([]model.RawRow, len(s.Points))
	for i, p := range s.Points {
		rows[i] = model.RawRow{Index: p.Time, Values: []any{p.Value}}
	}
	return &model.NormalizedTable{
		Symbol:  s.Symbol,
		Columns: []string{s.Column},
		Rows:    rows,
	}
}
