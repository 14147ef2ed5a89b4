package model

import "time"

// ForecastRow is one output timestamp with its point estimate and interval.
type ForecastRow struct {
	Time       time.Time `json:"ds"`
	Estimate   float64   `json:"yhat"`
	Lower      float64   `json:"yhat_lower"`
	Upper      float64   `json:"yhat_upper"`
	Historical bool      `json:"historical"`
}

// Component is one additive term of the fitted model, parallel to the
// forecast rows.
type Component struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// ForecastResult covers the historical span followed by Horizon future days.
type ForecastResult struct {
	Rows       []ForecastRow `json:"rows"`
	Components []Component   `json:"components"`
	Horizon    int           `json:"horizon"`
	// IntervalWidth is the coverage of [Lower, Upper], e.g. 0.8.
	IntervalWidth float64 `json:"interval_width"`
}

// Future returns the rows after the last historical timestamp.
func (r *ForecastResult) Future() []ForecastRow {
	for i, row := range r.Rows {
		if !row.Historical {
			return r.Rows[i:]
		}
	}
	return nil
}

// Component returns the named component, if present.
func (r *ForecastResult) Component(name string) (Component, bool) {
	for _, c := range r.Components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// Tail returns the last n rows.
func (r *ForecastResult) Tail(n int) []ForecastRow {
	if n >= len(r.Rows) {
		return r.Rows
	}
	return r.Rows[len(r.Rows)-n:]
}
