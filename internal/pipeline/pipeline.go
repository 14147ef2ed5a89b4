// Package pipeline runs one forecast request end to end: fetch, normalize,
// resolve the close column, validate, summarize and forecast. Each run owns
// its data; a Pipeline value may serve concurrent runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"PriceForecaster/internal/calculator"
	"PriceForecaster/internal/collector"
	"PriceForecaster/internal/model"
	"PriceForecaster/internal/schema"
	"PriceForecaster/internal/series"
)

// Stage names used in logs and metrics.
const (
	StageFetch     = "fetch"
	StageNormalize = "normalize"
	StageResolve   = "resolve"
	StageValidate  = "validate"
	StageSummarize = "summarize"
	StageForecast  = "forecast"
)

// Request is the configuration of one run.
type Request struct {
	Symbol  string
	Start   time.Time
	End     time.Time
	Horizon int
}

// Validate rejects requests that no stage could serve. Horizons outside any
// UI range are accepted.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", model.ErrInvalidRequest)
	}
	if r.Horizon < 1 {
		return fmt.Errorf("%w: horizon must be positive, got %d", model.ErrInvalidRequest, r.Horizon)
	}
	if !r.Start.IsZero() && !r.End.IsZero() && !r.Start.Before(r.End) {
		return fmt.Errorf("%w: start %s is not before end %s", model.ErrInvalidRequest,
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}
	return nil
}

// Result holds every structure the presentation layer consumes.
type Result struct {
	Request     Request
	Table       *model.NormalizedTable
	CloseColumn string
	Series      *model.Series
	Summary     model.SummaryStats
	Forecast    *model.ForecastResult
	Duration    time.Duration
}

// Model is the forecasting component.
type Model interface {
	Forecast(s *model.Series, horizon int) (*model.ForecastResult, error)
}

// Observer receives stage timings and run outcomes.
type Observer interface {
	ObserveStage(stage string, seconds float64)
	ObserveRun(symbol, outcome string)
	ObserveForecast(symbol string, points int, lastEstimate float64)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, float64) {}
func (nopObserver) ObserveRun(string, string) {}
func (nopObserver) ObserveForecast(string, int, float64) {}

// Pipeline wires a fetcher and a model.
type Pipeline struct {
	fetcher  collector.Fetcher
	model    Model
	log      zerolog.Logger
	observer Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver reports stage timings and outcomes to o.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New returns a Pipeline. fetcher may be nil when only Process is used.
func New(fetcher collector.Fetcher, m Model, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:  fetcher,
		model:    m,
		log:      zerolog.Nop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches the table for req and processes it. A fetch failure is a
// FetchError; an empty table is a NoDataError.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		p.finish(req, nil, err)
		return nil, err
	}
	if p.fetcher == nil {
		return nil, errors.New("pipeline: no fetcher configured")
	}

	started := time.Now()
	stageStart := started
	table, err := p.fetcher.FetchTable(ctx, req.Symbol, req.Start, req.End)
	p.observer.ObserveStage(StageFetch, time.Since(stageStart).Seconds())
	if err != nil {
		err = &model.FetchError{Source: p.fetcher.Name(), Symbol: req.Symbol, Err: err}
		p.finish(req, nil, err)
		return nil, err
	}

	res, err := p.process(table, req)
	if res != nil {
		res.Duration = time.Since(started)
	}
	p.finish(req, res, err)
	return res, err
}

// Process runs every stage after the fetch on an already fetched table.
func (p *Pipeline) Process(table *model.RawTable, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		p.finish(req, nil, err)
		return nil, err
	}
	started := time.Now()
	res, err := p.process(table, req)
	if res != nil {
		res.Duration = time.Since(started)
	}
	p.finish(req, res, err)
	return res, err
}

func (p *Pipeline) process(table *model.RawTable, req Request) (*Result, error) {
	if table.Len() == 0 {
		return nil, &model.NoDataError{Symbol: req.Symbol, Start: req.Start, End: req.End}
	}

	res := &Result{Request: req}
	var err error

	p.stage(StageNormalize, func() {
		res.Table, err = schema.Normalize(table)
	})
	if err != nil {
		return nil, err
	}

	p.stage(StageResolve, func() {
		res.CloseColumn, err = schema.ResolveCloseColumn(res.Table)
	})
	if err != nil {
		return nil, err
	}
	p.log.Debug().Str("symbol", req.Symbol).Str("column", res.CloseColumn).Msg("resolved close column")

	p.stage(StageValidate, func() {
		res.Series, err = series.Validate(res.Table, res.CloseColumn)
	})
	if err != nil {
		return nil, err
	}
	res.Series.Symbol = req.Symbol
	if dropped := table.Len() - res.Series.Len(); dropped > 0 {
		p.log.Info().Str("symbol", req.Symbol).Int("dropped", dropped).Int("kept", res.Series.Len()).Msg("dropped invalid rows")
	}

	p.stage(StageSummarize, func() {
		res.Summary, err = calculator.Summarize(res.Series)
	})
	if err != nil {
		return nil, err
	}

	if res.Series.Len() < 2 {
		p.log.Warn().Str("symbol", req.Symbol).Int("points", res.Series.Len()).Msg("not enough data points for forecasting")
	}
	p.stage(StageForecast, func() {
		res.Forecast, err = p.model.Forecast(res.Series, req.Horizon)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) stage(name string, fn func()) {
	start := time.Now()
	fn()
	p.observer.ObserveStage(name, time.Since(start).Seconds())
}

func (p *Pipeline) finish(req Request, res *Result, err error) {
	kind := model.ErrorKind(err)
	p.observer.ObserveRun(req.Symbol, kind)

	if err != nil {
		ev := p.log.Warn()
		if kind == "internal" {
			ev = p.log.Error()
		}
		ev.Err(err).Str("symbol", req.Symbol).Str("kind", kind).Msg("pipeline run failed")
		return
	}

	rows := res.Forecast.Rows
	last := rows[len(rows)-1]
	p.observer.ObserveForecast(req.Symbol, res.Series.Len(), last.Estimate)
	p.log.Info().
		Str("symbol", req.Symbol).
		Str("column", res.CloseColumn).
		Int("points", res.Series.Len()).
		Int("horizon", req.Horizon).
		Float64("last_estimate", last.Estimate).
		Dur("took", res.Duration).
		Msg("forecast complete")
}
