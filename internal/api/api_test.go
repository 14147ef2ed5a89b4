package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceForecaster/internal/collector"
	"PriceForecaster/internal/forecast"
	"PriceForecaster/internal/model"
	"PriceForecaster/internal/pipeline"
	"PriceForecaster/internal/recorder"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testRequest(symbol string, horizon int, now time.Time) pipeline.Request {
	if horizon < 1 {
		horizon = 10
	}
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return pipeline.Request{Symbol: symbol, Start: end.AddDate(0, 0, -60), End: end, Horizon: horizon}
}

type runnerFunc func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)

func (f runnerFunc) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	return f(ctx, req)
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, runner Runner) (*Server, recorder.Recorder) {
	t.Helper()
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "api.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	h := NewForecastHandler(runner, rec, testRequest, zerolog.Nop())
	h.now = func() time.Time { return fixedNow }
	return NewServer(":0", zerolog.Nop(), h), rec
}

func mockPipeline() *pipeline.Pipeline {
	return pipeline.New(&collector.MockFetcher{Price: 100}, forecast.New(forecast.Options{}), pipeline.WithLogger(zerolog.Nop()))
}

func get(t *testing.T, s *Server, target string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	s.Echo().ServeHTTP(rr, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return rr.Code, env
}

func errorDetails(t *testing.T, env envelope) []ErrorDetail {
	t.Helper()
	var details []ErrorDetail
	require.NoError(t, json.Unmarshal(env.Data, &details))
	require.NotEmpty(t, details)
	return details
}

func TestForecast_OK(t *testing.T) {
	s, rec := newTestServer(t, mockPipeline())

	code, env := get(t, s, "/api/forecast?symbol=tcs.ns&horizon=7&tail=3&components=true")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, http.StatusOK, env.Status)

	var out forecastResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "TCS.NS", out.Symbol)
	assert.Equal(t, "2024-01-01", out.Start)
	assert.Equal(t, "2024-03-01", out.End)
	assert.Contains(t, out.Column, "Close")
	assert.Equal(t, 60, out.Points)
	assert.Equal(t, 60, out.Summary.Count)
	assert.Len(t, out.Tail, 3)
	assert.Equal(t, "2024-02-29", out.Tail[2].Date)
	assert.Equal(t, 7, out.Horizon)
	assert.InDelta(t, 0.8, out.Interval, 1e-9)
	require.Len(t, out.Forecast, 67)
	assert.False(t, out.Forecast[66].Historical)
	assert.NotEmpty(t, out.Components)

	runs, err := rec.RecentRuns(context.Background(), "tcs.ns", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, out.RunID, runs[0].ID)
	assert.Equal(t, "ok", runs[0].Outcome)
}

func TestForecast_ExplicitRangeAndNoComponents(t *testing.T) {
	s, _ := newTestServer(t, mockPipeline())

	code, env := get(t, s, "/api/forecast?symbol=INFY&start=2024-02-01&end=2024-02-11")
	require.Equal(t, http.StatusOK, code)

	var out forecastResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, 10, out.Points)
	assert.Len(t, out.Tail, 5)
	assert.Equal(t, 10, out.Horizon)
	assert.Empty(t, out.Components)
}

func TestForecast_ValidationErrors(t *testing.T) {
	s, _ := newTestServer(t, mockPipeline())

	tests := []struct {
		name   string
		target string
		code   string
		field  string
	}{
		{"missing symbol", "/api/forecast", "ERR_REQUIRED", "Symbol"},
		{"negative horizon", "/api/forecast?symbol=A&horizon=-1", "ERR_GTE", "Horizon"},
		{"bad date", "/api/forecast?symbol=A&start=2024-13-01", "ERR_DATETIME", "Start"},
		{"horizon too large", "/api/forecast?symbol=A&horizon=3651", "ERR_LTE", "Horizon"},
		{"horizon overflow", "/api/forecast?symbol=A&horizon=9223372036854775807", "ERR_LTE", "Horizon"},
		{"tail too large", "/api/forecast?symbol=A&tail=501", "ERR_LTE", "Tail"},
		{"not a number", "/api/forecast?symbol=A&horizon=abc", "ERR_BIND", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := get(t, s, tt.target)
			assert.Equal(t, http.StatusBadRequest, code)
			d := errorDetails(t, env)[0]
			assert.Equal(t, tt.code, d.Code)
			assert.Equal(t, tt.field, d.Field)
		})
	}
}

func TestForecast_InvalidRange(t *testing.T) {
	s, _ := newTestServer(t, mockPipeline())

	code, env := get(t, s, "/api/forecast?symbol=A&start=2024-03-01&end=2024-01-01")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ERR_INVALID_REQUEST", errorDetails(t, env)[0].Code)
}

func TestForecast_PipelineErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no data", &model.NoDataError{Symbol: "A"}, http.StatusNotFound, "ERR_NO_DATA"},
		{"schema", &model.SchemaError{Column: "Close"}, http.StatusUnprocessableEntity, "ERR_SCHEMA"},
		{"column", &model.ColumnNotFoundError{Want: "Close"}, http.StatusUnprocessableEntity, "ERR_COLUMN_NOT_FOUND"},
		{"empty", &model.EmptySeriesError{Column: "Close", Required: 2}, http.StatusUnprocessableEntity, "ERR_EMPTY_SERIES"},
		{"fit", &model.ModelFitError{Reason: "singular"}, http.StatusUnprocessableEntity, "ERR_MODEL_FIT"},
		{"fetch", &model.FetchError{Source: "yahoo", Symbol: "A", Err: errors.New("timeout")}, http.StatusBadGateway, "ERR_FETCH"},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newTestServer(t, runnerFunc(func(context.Context, pipeline.Request) (*pipeline.Result, error) {
				return nil, tt.err
			}))

			code, env := get(t, s, "/api/forecast?symbol=A")
			assert.Equal(t, tt.status, code)
			d := errorDetails(t, env)[0]
			assert.Equal(t, tt.code, d.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "Something went wrong", d.Message)
			} else {
				assert.Equal(t, tt.err.Error(), d.Message)
			}

			runs, err := rec.RecentRuns(context.Background(), "A", 10)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, model.ErrorKind(tt.err), runs[0].Outcome)
		})
	}
}

func TestRuns(t *testing.T) {
	s, _ := newTestServer(t, mockPipeline())

	for _, sym := range []string{"A", "B", "A"} {
		code, _ := get(t, s, "/api/forecast?symbol="+sym+"&horizon=3")
		require.Equal(t, http.StatusOK, code)
	}

	code, env := get(t, s, "/api/runs?symbol=A")
	require.Equal(t, http.StatusOK, code)
	var runs []recorder.Run
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, "A", r.Symbol)
	}

	code, env = get(t, s, "/api/runs?limit=1")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	assert.Len(t, runs, 1)

	code, env = get(t, s, "/api/runs/"+runs[0].ID+"/points")
	require.Equal(t, http.StatusOK, code)
	var points []model.ForecastRow
	require.NoError(t, json.Unmarshal(env.Data, &points))
	assert.Len(t, points, 63)

	code, _ = get(t, s, "/api/runs/missing/points")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, s, "/api/runs?limit=0")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, s, "/api/runs?limit=1000")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRuns_EmptyIsArray(t *testing.T) {
	s, _ := newTestServer(t, mockPipeline())

	code, env := get(t, s, "/api/runs")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, mockPipeline())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	s.Echo().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, mockPipeline())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	s.Echo().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestRecoverMiddleware(t *testing.T) {
	s, _ := newTestServer(t, runnerFunc(func(context.Context, pipeline.Request) (*pipeline.Result, error) {
		panic("boom")
	}))

	code, env := get(t, s, "/api/forecast?symbol=A")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, http.StatusInternalServerError, env.Status)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(nil))
	assert.Equal(t, http.StatusBadRequest, StatusFor(model.ErrInvalidRequest))
}
