package schema

import (
	"strings"

	"PriceForecaster/internal/model"
)

// CloseMarker is the case-sensitive substring identifying a close column.
const CloseMarker = "Close"

// ResolveColumn returns the first column, in table order, whose name
// contains marker.
func ResolveColumn(t *model.NormalizedTable, marker string) (string, error) {
	for _, c := range t.Columns {
		if strings.Contains(c, marker) {
			return c, nil
		}
	}
	return "", &model.ColumnNotFoundError{Want: marker, Columns: t.Columns}
}

// ResolveCloseColumn picks the canonical closing-price column.
func ResolveCloseColumn(t *model.NormalizedTable) (string, error) {
	return ResolveColumn(t, CloseMarker)
}
