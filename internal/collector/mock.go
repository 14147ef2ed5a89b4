package collector

import (
	"context"
	"sync/atomic"
	"time"

	"PriceForecaster/internal/model"
)

// MockLookbackDays is the generated window when the request has no start.
const MockLookbackDays = 365

// MockFetcher returns controllable fixed data for development and testing.
// When Table is nil it generates a gently rising daily series around Price.
type MockFetcher struct {
	Price float64
	Table *model.RawTable
	Err   error

	calls atomic.Int64
}

func (m *MockFetcher) Name() string { return SourceMock }

func (m *MockFetcher) FetchTable(_ context.Context, symbol string, start, end time.Time) (*model.RawTable, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Table != nil {
		return m.Table, nil
	}
	end = dayOf(end)
	if start.IsZero() && !end.IsZero() {
		start = end.AddDate(0, 0, -MockLookbackDays)
	}
	return generateMockTable(symbol, m.Price, dayOf(start), end), nil
}

// Calls returns how many times FetchTable ran.
func (m *MockFetcher) Calls() int { return int(m.calls.Load()) }

func generateMockTable(symbol string, basePrice float64, start, end time.Time) *model.RawTable {
	table := &model.RawTable{
		Symbol:  symbol,
		Columns: []model.ColumnKey{model.Composite("Close", symbol), model.Composite("Volume", symbol)},
	}
	i := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		p := basePrice * (1 + float64(i)*0.001)
		table.Rows = append(table.Rows, model.RawRow{Index: d, Values: []any{p, 1000000.0}})
		i++
	}
	return table
}
