// Package metrics exposes pipeline counters and timings to Prometheus.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements pipeline.Observer using Prometheus.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	lastEstimate  *prometheus.GaugeVec
	seriesPoints  *prometheus.GaugeVec

	watched map[string]bool
}

// OtherSymbol labels runs for symbols outside the watched set.
const OtherSymbol = "other"

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler. Only the watched symbols
// get their own label value; every other symbol is counted as OtherSymbol.
func New(reg prometheus.Registerer, watched ...string) *Recorder {
	factory := promauto.With(reg)
	set := make(map[string]bool, len(watched))
	for _, sym := range watched {
		set[strings.ToUpper(strings.TrimSpace(sym))] = true
	}
	return &Recorder{
		watched: set,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_runs_total",
				Help: "Pipeline runs by symbol and outcome",
			},
			[]string{"symbol", "outcome"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecaster_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		lastEstimate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forecaster_last_estimate",
				Help: "Point estimate at the end of the latest forecast horizon",
			},
			[]string{"symbol"},
		),
		seriesPoints: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forecaster_series_points",
				Help: "Validated points in the latest series for a symbol",
			},
			[]string{"symbol"},
		),
	}
}

// ObserveStage records how long one stage took.
func (r *Recorder) ObserveStage(stage string, seconds float64) {
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// ObserveRun counts a finished run. outcome is "ok" or an error kind.
func (r *Recorder) ObserveRun(symbol, outcome string) {
	r.runsTotal.WithLabelValues(r.label(symbol), outcome).Inc()
}

// ObserveForecast records the series size and the final point estimate.
func (r *Recorder) ObserveForecast(symbol string, points int, lastEstimate float64) {
	label := r.label(symbol)
	if label == OtherSymbol {
		return
	}
	r.seriesPoints.WithLabelValues(label).Set(float64(points))
	r.lastEstimate.WithLabelValues(label).Set(lastEstimate)
}

func (r *Recorder) label(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if r.watched[symbol] {
		return symbol
	}
	return OtherSymbol
}
