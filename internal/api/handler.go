package api

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"PriceForecaster/internal/model"
	"PriceForecaster/internal/pipeline"
	"PriceForecaster/internal/recorder"
)

// Runner executes one pipeline request.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// RequestFunc builds the default request for a symbol and horizon.
type RequestFunc func(symbol string, horizon int, now time.Time) pipeline.Request

// ForecastHandler serves forecasts and recorded runs.
type ForecastHandler struct {
	runner   Runner
	recorder recorder.Recorder
	request  RequestFunc
	log      zerolog.Logger
	now      func() time.Time
}

// NewForecastHandler creates the handler. rec may be nil.
func NewForecastHandler(runner Runner, rec recorder.Recorder, request RequestFunc, log zerolog.Logger) *ForecastHandler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &ForecastHandler{runner: runner, recorder: rec, request: request, log: log, now: time.Now}
}

// RegisterRoutes implements Handler.
func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.GET("/runs", h.Runs)
	g.GET("/runs/:id/points", h.RunPoints)
}

type forecastQuery struct {
	Symbol     string `query:"symbol" validate:"required,max=32"`
	Horizon    int    `query:"horizon" validate:"gte=0,lte=3650"`
	Start      string `query:"start" validate:"omitempty,datetime=2006-01-02"`
	End        string `query:"end" validate:"omitempty,datetime=2006-01-02"`
	Tail       int    `query:"tail" default:"5" validate:"gte=1,lte=500"`
	Components bool   `query:"components"`
}

type tableRow struct {
	Date   string `json:"date"`
	Values []any  `json:"values"`
}

type forecastResponse struct {
	RunID      string              `json:"run_id,omitempty"`
	Symbol     string              `json:"symbol"`
	Start      string              `json:"start"`
	End        string              `json:"end"`
	Column     string              `json:"column"`
	Points     int                 `json:"points"`
	Summary    model.SummaryStats  `json:"summary"`
	Columns    []string            `json:"columns"`
	Tail       []tableRow          `json:"tail"`
	Horizon    int                 `json:"horizon"`
	Interval   float64             `json:"interval_width"`
	Forecast   []model.ForecastRow `json:"forecast"`
	Components []model.Component   `json:"components,omitempty"`
}

// Forecast runs the pipeline for the query and returns every structure the
// presentation layer needs. Horizon 0 means the configured default.
func (h *ForecastHandler) Forecast(c echo.Context) error {
	var q forecastQuery
	if details := bindAndValidate(c, &q); details != nil {
		return badRequestResponse(c, details)
	}

	req := h.request(q.Symbol, q.Horizon, h.now())
	if q.Start != "" {
		req.Start, _ = time.Parse("2006-01-02", q.Start)
	}
	if q.End != "" {
		req.End, _ = time.Parse("2006-01-02", q.End)
	}

	ctx := c.Request().Context()
	res, err := h.runner.Run(ctx, req)
	runID, recErr := h.recorder.RecordRun(ctx, req, res, err)
	if recErr != nil {
		h.log.Error().Err(recErr).Str("symbol", req.Symbol).Msg("record run")
	}
	if err != nil {
		return pipelineErrorResponse(c, err)
	}

	out := forecastResponse{
		RunID:    runID,
		Symbol:   strings.ToUpper(req.Symbol),
		Start:    formatDate(req.Start),
		End:      formatDate(req.End),
		Column:   res.CloseColumn,
		Points:   res.Series.Len(),
		Summary:  res.Summary,
		Columns:  res.Table.Columns,
		Horizon:  res.Forecast.Horizon,
		Interval: res.Forecast.IntervalWidth,
		Forecast: res.Forecast.Rows,
	}
	for _, row := range res.Table.Tail(q.Tail) {
		out.Tail = append(out.Tail, tableRow{Date: formatIndex(row.Index), Values: jsonSafe(row.Values)})
	}
	if q.Components {
		out.Components = res.Forecast.Components
	}
	return successResponse(c, out)
}

type runsQuery struct {
	Symbol string `query:"symbol" validate:"max=32"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=200"`
}

// Runs lists recorded runs, newest first.
func (h *ForecastHandler) Runs(c echo.Context) error {
	var q runsQuery
	if details := bindAndValidate(c, &q); details != nil {
		return badRequestResponse(c, details)
	}
	runs, err := h.recorder.RecentRuns(c.Request().Context(), q.Symbol, q.Limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list runs")
		return dataResponse(c, http.StatusInternalServerError, "Something went wrong")
	}
	if runs == nil {
		runs = []recorder.Run{}
	}
	return successResponse(c, runs)
}

// RunPoints returns the stored forecast rows of one run.
func (h *ForecastHandler) RunPoints(c echo.Context) error {
	points, err := h.recorder.RunPoints(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.log.Error().Err(err).Msg("load run points")
		return dataResponse(c, http.StatusInternalServerError, "Something went wrong")
	}
	if len(points) == 0 {
		return dataResponse(c, http.StatusNotFound, []ErrorDetail{{Code: "ERR_NOT_FOUND", Message: "no points for run " + c.Param("id")}})
	}
	return successResponse(c, points)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatIndex(v any) string {
	if t, ok := v.(time.Time); ok {
		return formatDate(t)
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// jsonSafe replaces non-finite floats, which encoding/json rejects, with nil.
func jsonSafe(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			continue
		}
		out[i] = v
	}
	return out
}
