package model

import "time"

// PricePoint is a single validated observation: a calendar date (midnight
// UTC) and a finite value.
type PricePoint struct {
	Time  time.Time
	Value float64
}

// Series is an ordered, validated price series taken from one column.
type Series struct {
	Symbol string
	Column string
	Points []PricePoint
}

// Len returns the number of points.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Values returns the values in series order.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Span returns the earliest and latest timestamps. The series must not be empty.
func (s *Series) Span() (first, last time.Time) {
	first, last = s.Points[0].Time, s.Points[0].Time
	for _, p := range s.Points[1:] {
		if p.Time.Before(first) {
			first = p.Time
		}
		if p.Time.After(last) {
			last = p.Time
		}
	}
	return first, last
}

// SummaryStats holds descriptive aggregates over a series.
type SummaryStats struct {
	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
	Min   float64 `json:"min"`
	Count int     `json:"count"`
}
