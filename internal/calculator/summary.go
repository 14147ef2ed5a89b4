// Package calculator computes descriptive statistics over validated series.
package calculator

import (
	"math"

	"PriceForecaster/internal/model"
)

// Summarize returns the mean, maximum and minimum of the series values in a
// single pass. An empty series fails with *model.EmptySeriesError.
func Summarize(s *model.Series) (model.SummaryStats, error) {
	n := s.Len()
	if n == 0 {
		col := ""
		if s != nil {
			col = s.Column
		}
		return model.SummaryStats{}, &model.EmptySeriesError{Column: col, Required: 1, Got: 0}
	}

	mean := 0.0
	high := math.Inf(-1)
	low := math.Inf(1)
	for i, p := range s.Points {
		// Running mean stays finite where a running sum would overflow.
		k := float64(i + 1)
		mean += p.Value/k - mean/k
		if p.Value > high {
			high = p.Value
		}
		if p.Value < low {
			low = p.Value
		}
	}
	return model.SummaryStats{
		Mean:  mean,
		Max:   high,
		Min:   low,
		Count: n,
	}, nil
}
