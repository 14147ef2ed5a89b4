package collector

import (
	"context"
	"time"

	"PriceForecaster/internal/model"
)

// Fetcher returns the daily price table for one instrument over [start, end).
// A symbol with no observations in the range yields a table with zero rows,
// not an error.
type Fetcher interface {
	FetchTable(ctx context.Context, symbol string, start, end time.Time) (*model.RawTable, error)
	Name() string
}
