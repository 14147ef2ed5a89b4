package recorder

import (
	"context"

	"PriceForecaster/internal/model"
	"PriceForecaster/internal/pipeline"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(context.Context, pipeline.Request, *pipeline.Result, error) (string, error) {
	return "", nil
}
func (n *NoopRecorder) RecentRuns(context.Context, string, int) ([]Run, error) { return nil, nil }
func (n *NoopRecorder) RunPoints(context.Context, string) ([]model.ForecastRow, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
