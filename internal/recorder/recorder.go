package recorder

import (
	"context"
	"time"

	"PriceForecaster/internal/model"
	"PriceForecaster/internal/pipeline"
)

// Run is one persisted pipeline run. Failed runs have Outcome set to the
// error kind and no forecast points.
type Run struct {
	ID           string             `json:"id"`
	Symbol       string             `json:"symbol"`
	Start        time.Time          `json:"start"`
	End          time.Time          `json:"end"`
	Horizon      int                `json:"horizon"`
	Column       string             `json:"column,omitempty"`
	Summary      model.SummaryStats `json:"summary"`
	Outcome      string             `json:"outcome"`
	Error        string             `json:"error,omitempty"`
	LastEstimate float64            `json:"last_estimate"`
	LastLower    float64            `json:"last_lower"`
	LastUpper    float64            `json:"last_upper"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Recorder persists pipeline runs for later inspection.
type Recorder interface {
	RecordRun(ctx context.Context, req pipeline.Request, res *pipeline.Result, runErr error) (string, error)
	RecentRuns(ctx context.Context, symbol string, limit int) ([]Run, error)
	RunPoints(ctx context.Context, id string) ([]model.ForecastRow, error)
	Close() error
}

// newRun builds the row for one run; res may be nil when runErr is set.
func newRun(id string, req pipeline.Request, res *pipeline.Result, runErr error, now time.Time) Run {
	run := Run{
		ID:        id,
		Symbol:    req.Symbol,
		Start:     req.Start,
		End:       req.End,
		Horizon:   req.Horizon,
		Outcome:   model.ErrorKind(runErr),
		CreatedAt: now,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if res != nil {
		run.Column = res.CloseColumn
		run.Summary = res.Summary
		if res.Forecast != nil && len(res.Forecast.Rows) > 0 {
			last := res.Forecast.Rows[len(res.Forecast.Rows)-1]
			run.LastEstimate, run.LastLower, run.LastUpper = last.Estimate, last.Lower, last.Upper
		}
	}
	return run
}
