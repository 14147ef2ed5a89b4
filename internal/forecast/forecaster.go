// Package forecast fits an additive trend plus seasonality model to a
// validated price series and projects it forward with uncertainty bounds.
//
// The model is y(t) = trend(t) + weekly(t) + yearly(t) + noise. The trend is
// piecewise linear with hinge terms at changepoints spread over the early
// part of the history; seasonal terms are Fourier series. Coefficients are
// found by penalised least squares, so the fit is deterministic.
package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"PriceForecaster/internal/model"
)

// Component names in ForecastResult.
const (
	ComponentTrend  = "trend"
	ComponentWeekly = "weekly"
	ComponentYearly = "yearly"
)

// MinPoints is the smallest series the forecaster accepts.
const MinPoints = 2

// noiseScale is the assumed observation noise, in scaled units, used to turn
// prior scales into ridge penalties.
const noiseScale = 0.1

// lastForecastDay bounds the output dates. Later years cannot be written as
// RFC 3339 timestamps.
var lastForecastDay = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// maxHorizon is the longest horizon whose dates stay within lastForecastDay.
func maxHorizon(last time.Time) int {
	days := (lastForecastDay.Unix() - last.Unix()) / 86400
	if days < 0 {
		return 0
	}
	return int(days)
}

// Toggle selects whether a seasonal term is fitted.
type Toggle string

const (
	Auto Toggle = "auto"
	On   Toggle = "on"
	Off  Toggle = "off"
)

// Options tune the model. Zero fields take the DefaultOptions value.
type Options struct {
	IntervalWidth         float64
	NChangepoints         int
	ChangepointRange      float64
	ChangepointPriorScale float64
	SeasonalityPriorScale float64
	Weekly                Toggle
	Yearly                Toggle
	WeeklyOrder           int
	YearlyOrder           int
}

// DefaultOptions mirror the usual defaults of decomposition forecasters.
func DefaultOptions() Options {
	return Options{
		IntervalWidth:         0.80,
		NChangepoints:         25,
		ChangepointRange:      0.80,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		Weekly:                Auto,
		Yearly:                Auto,
		WeeklyOrder:           3,
		YearlyOrder:           10,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.IntervalWidth <= 0 || o.IntervalWidth >= 1 {
		o.IntervalWidth = d.IntervalWidth
	}
	if o.NChangepoints < 0 {
		o.NChangepoints = 0
	} else if o.NChangepoints == 0 {
		o.NChangepoints = d.NChangepoints
	}
	if o.ChangepointRange <= 0 || o.ChangepointRange > 1 {
		o.ChangepointRange = d.ChangepointRange
	}
	if o.ChangepointPriorScale <= 0 {
		o.ChangepointPriorScale = d.ChangepointPriorScale
	}
	if o.SeasonalityPriorScale <= 0 {
		o.SeasonalityPriorScale = d.SeasonalityPriorScale
	}
	if o.Weekly == "" {
		o.Weekly = d.Weekly
	}
	if o.Yearly == "" {
		o.Yearly = d.Yearly
	}
	if o.WeeklyOrder <= 0 {
		o.WeeklyOrder = d.WeeklyOrder
	}
	if o.YearlyOrder <= 0 {
		o.YearlyOrder = d.YearlyOrder
	}
	return o
}

// Forecaster fits one model per call and holds no state between calls, so a
// single value may be shared by concurrent pipeline runs.
type Forecaster struct {
	opts Options
}

// New returns a Forecaster. Pass NChangepoints < 0 to disable changepoints.
func New(opts Options) *Forecaster {
	return &Forecaster{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (f *Forecaster) Options() Options { return f.opts }

// Forecast fits s and returns estimates for every distinct historical date
// followed by horizon daily dates after the last one.
func (f *Forecaster) Forecast(s *model.Series, horizon int) (*model.ForecastResult, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", model.ErrInvalidRequest, horizon)
	}
	if s.Len() < MinPoints {
		col := ""
		if s != nil {
			col = s.Column
		}
		return nil, &model.ModelFitError{
			Reason: "not enough data points",
			Err:    &model.EmptySeriesError{Column: col, Required: MinPoints, Got: s.Len()},
		}
	}

	_, last := s.Span()
	if horizon > maxHorizon(last) {
		return nil, fmt.Errorf("%w: horizon of %d days runs past %s", model.ErrInvalidRequest,
			horizon, lastForecastDay.Format("2006-01-02"))
	}

	fit, err := f.fit(s.Points)
	if err != nil {
		return nil, &model.ModelFitError{Reason: "solve trend and seasonality", Err: err}
	}
	return fit.predict(horizon)
}

// seasonality is one Fourier term.
type seasonality struct {
	name   string
	period float64 // days
	order  int
	col    int // first design column
}

type fitted struct {
	opts        Options
	start       time.Time
	spanDays    float64
	yScale      float64
	history     []time.Time
	changepoint []float64 // scaled time
	seasonal    []seasonality
	beta        []float64
	sigma       float64
	cpRate      float64
	cpMagnitude float64
}

func (f *Forecaster) fit(points []model.PricePoint) (*fitted, error) {
	sorted := make([]model.PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	m := &fitted{opts: f.opts, start: sorted[0].Time}
	last := sorted[len(sorted)-1].Time
	m.spanDays = last.Sub(m.start).Hours() / 24
	if m.spanDays <= 0 {
		m.spanDays = 1
	}

	for _, p := range sorted {
		if a := math.Abs(p.Value); a > m.yScale {
			m.yScale = a
		}
	}
	if m.yScale == 0 {
		m.yScale = 1
	}

	for i, p := range sorted {
		if i == 0 || !p.Time.Equal(sorted[i-1].Time) {
			m.history = append(m.history, p.Time)
		}
	}

	m.placeChangepoints(sorted)
	m.chooseSeasonality(sorted)

	k := m.columns()
	penalty := make([]float64, k)
	penalty[0], penalty[1] = 1e-9, 1e-9
	for j := range m.changepoint {
		penalty[2+j] = (noiseScale * noiseScale) / (f.opts.ChangepointPriorScale * f.opts.ChangepointPriorScale)
	}
	for _, sz := range m.seasonal {
		for j := 0; j < 2*sz.order; j++ {
			penalty[sz.col+j] = (noiseScale * noiseScale) / (f.opts.SeasonalityPriorScale * f.opts.SeasonalityPriorScale)
		}
	}

	x := make([][]float64, len(sorted))
	y := make([]float64, len(sorted))
	for i, p := range sorted {
		x[i] = m.features(p.Time)
		y[i] = p.Value / m.yScale
	}

	beta, err := ridge(x, y, penalty)
	if err != nil {
		return nil, err
	}
	m.beta = beta

	sse := 0.0
	for i := range x {
		r := y[i] - dot(x[i], beta)
		sse += r * r
	}
	m.sigma = math.Sqrt(sse / float64(len(x)))

	if n := len(m.changepoint); n > 0 {
		sum := 0.0
		for j := 0; j < n; j++ {
			sum += math.Abs(beta[2+j])
		}
		m.cpMagnitude = sum / float64(n)
		m.cpRate = float64(n)
	}
	return m, nil
}

// placeChangepoints spreads changepoints evenly over the first
// ChangepointRange of the observations.
func (m *fitted) placeChangepoints(sorted []model.PricePoint) {
	histSize := int(math.Floor(float64(len(sorted)) * m.opts.ChangepointRange))
	n := m.opts.NChangepoints
	if n > histSize-1 {
		n = histSize - 1
	}
	if n <= 0 {
		return
	}
	for i := 1; i <= n; i++ {
		idx := int(math.Round(float64(i) * float64(histSize-1) / float64(n)))
		m.changepoint = append(m.changepoint, m.scaled(sorted[idx].Time))
	}
}

func (m *fitted) chooseSeasonality(sorted []model.PricePoint) {
	minGap := math.Inf(1)
	for i := 1; i < len(sorted); i++ {
		if g := sorted[i].Time.Sub(sorted[i-1].Time).Hours() / 24; g > 0 && g < minGap {
			minGap = g
		}
	}

	col := 2 + len(m.changepoint)
	add := func(name string, period float64, order int) {
		m.seasonal = append(m.seasonal, seasonality{name: name, period: period, order: order, col: col})
		col += 2 * order
	}

	weekly := m.opts.Weekly == On || (m.opts.Weekly == Auto && m.spanDays >= 14 && minGap < 7)
	if weekly {
		add(ComponentWeekly, 7, m.opts.WeeklyOrder)
	}
	yearly := m.opts.Yearly == On || (m.opts.Yearly == Auto && m.spanDays >= 730)
	if yearly {
		add(ComponentYearly, 365.25, m.opts.YearlyOrder)
	}
}

func (m *fitted) columns() int {
	k := 2 + len(m.changepoint)
	for _, s := range m.seasonal {
		k += 2 * s.order
	}
	return k
}

func (m *fitted) scaled(t time.Time) float64 {
	return t.Sub(m.start).Hours() / 24 / m.spanDays
}

// features builds one design row: intercept, slope, changepoint hinges,
// then sin/cos pairs per seasonal term.
func (m *fitted) features(t time.Time) []float64 {
	row := make([]float64, m.columns())
	ts := m.scaled(t)
	row[0] = 1
	row[1] = ts
	for j, cp := range m.changepoint {
		if ts > cp {
			row[2+j] = ts - cp
		}
	}
	epochDays := float64(t.Unix()) / 86400
	for _, s := range m.seasonal {
		for k := 1; k <= s.order; k++ {
			arg := 2 * math.Pi * float64(k) * epochDays / s.period
			row[s.col+2*(k-1)] = math.Sin(arg)
			row[s.col+2*(k-1)+1] = math.Cos(arg)
		}
	}
	return row
}

// trendVariance is the variance, in scaled units, added by changepoints that
// may occur between the end of the history and dt scaled time later. Future
// changepoints arrive at cpRate per unit time with Laplace magnitudes of
// mean cpMagnitude, which gives rate·2b²·dt³/3.
func (m *fitted) trendVariance(dt float64) float64 {
	if dt <= 0 || m.cpRate == 0 {
		return 0
	}
	return m.cpRate * 2 * m.cpMagnitude * m.cpMagnitude * dt * dt * dt / 3
}

func (m *fitted) predict(horizon int) (*model.ForecastResult, error) {
	last := m.history[len(m.history)-1]
	times := make([]time.Time, 0, len(m.history)+horizon)
	times = append(times, m.history...)
	for h := 1; h <= horizon; h++ {
		times = append(times, last.AddDate(0, 0, h))
	}

	z := normalQuantile((1 + m.opts.IntervalWidth) / 2)
	trendEnd := 2 + len(m.changepoint)
	end := m.scaled(last)

	result := &model.ForecastResult{
		Rows:          make([]model.ForecastRow, len(times)),
		Horizon:       horizon,
		IntervalWidth: m.opts.IntervalWidth,
	}
	trend := make([]float64, len(times))
	seasonal := make([][]float64, len(m.seasonal))
	for i := range seasonal {
		seasonal[i] = make([]float64, len(times))
	}

	for i, t := range times {
		x := m.features(t)
		trend[i] = dot(x[:trendEnd], m.beta[:trendEnd]) * m.yScale
		yhat := trend[i]
		for si, s := range m.seasonal {
			hi := s.col + 2*s.order
			seasonal[si][i] = dot(x[s.col:hi], m.beta[s.col:hi]) * m.yScale
			yhat += seasonal[si][i]
		}
		if math.IsNaN(yhat) || math.IsInf(yhat, 0) {
			return nil, &model.ModelFitError{Reason: "non-finite estimate", Err: fmt.Errorf("at %s", t.Format("2006-01-02"))}
		}

		se := math.Sqrt(m.sigma*m.sigma+m.trendVariance(m.scaled(t)-end)) * m.yScale
		half := z * se
		result.Rows[i] = model.ForecastRow{
			Time:       t,
			Estimate:   yhat,
			Lower:      yhat - half,
			Upper:      yhat + half,
			Historical: !t.After(last),
		}
	}

	result.Components = append(result.Components, model.Component{Name: ComponentTrend, Values: trend})
	for si, s := range m.seasonal {
		result.Components = append(result.Components, model.Component{Name: s.name, Values: seasonal[si]})
	}
	return result, nil
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
