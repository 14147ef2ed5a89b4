package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceForecaster/internal/model"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func daily(values ...float64) *model.Series {
	s := &model.Series{Symbol: "TEST", Column: "Close"}
	for i, v := range values {
		s.Points = append(s.Points, model.PricePoint{Time: base.AddDate(0, 0, i), Value: v})
	}
	return s
}

func generate(n int, f func(i int, t time.Time) float64) *model.Series {
	s := &model.Series{Symbol: "TEST", Column: "Close"}
	for i := 0; i < n; i++ {
		t := base.AddDate(0, 0, i)
		s.Points = append(s.Points, model.PricePoint{Time: t, Value: f(i, t)})
	}
	return s
}

func assertBoundsOrdered(t *testing.T, res *model.ForecastResult) {
	t.Helper()
	for _, r := range res.Rows {
		require.LessOrEqual(t, r.Lower, r.Estimate, "row %s", r.Time.Format("2006-01-02"))
		require.LessOrEqual(t, r.Estimate, r.Upper, "row %s", r.Time.Format("2006-01-02"))
	}
}

func TestForecast_RejectsSinglePoint(t *testing.T) {
	_, err := New(DefaultOptions()).Forecast(daily(100), 30)

	var fit *model.ModelFitError
	require.ErrorAs(t, err, &fit)
	var empty *model.EmptySeriesError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, 2, empty.Required)
	assert.Equal(t, 1, empty.Got)
}

func TestForecast_RejectsEmptyAndNil(t *testing.T) {
	f := New(DefaultOptions())
	var fit *model.ModelFitError
	_, err := f.Forecast(daily(), 10)
	require.ErrorAs(t, err, &fit)
	_, err = f.Forecast(nil, 10)
	require.ErrorAs(t, err, &fit)
}

func TestForecast_RejectsNonPositiveHorizon(t *testing.T) {
	_, err := New(DefaultOptions()).Forecast(daily(1, 2, 3), 0)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestForecast_RejectsUnrepresentableHorizon(t *testing.T) {
	f := New(DefaultOptions())
	for _, h := range []int{math.MaxInt, math.MaxInt - 2, math.MaxInt32, 3_000_000} {
		res, err := f.Forecast(daily(100, 101, 102), h)
		require.ErrorIs(t, err, model.ErrInvalidRequest, "horizon %d", h)
		assert.Nil(t, res)
	}
}

func TestForecast_HorizonUpToLastRepresentableDay(t *testing.T) {
	s := &model.Series{Symbol: "TEST", Column: "Close"}
	for i, v := range []float64{100, 101, 102} {
		s.Points = append(s.Points, model.PricePoint{Time: time.Date(9999, 12, 26+i, 0, 0, 0, 0, time.UTC), Value: v})
	}
	f := New(DefaultOptions())

	res, err := f.Forecast(s, 3)
	require.NoError(t, err)
	require.Len(t, res.Rows, 6)
	assert.Equal(t, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC), res.Rows[5].Time)

	_, err = f.Forecast(s, 4)
	require.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestForecast_TwoPoints(t *testing.T) {
	res, err := New(DefaultOptions()).Forecast(daily(100, 102), 5)
	require.NoError(t, err)
	require.Len(t, res.Rows, 7)
	assert.InDelta(t, 100, res.Rows[0].Estimate, 1e-6)
	assert.InDelta(t, 102, res.Rows[1].Estimate, 1e-6)
	assert.InDelta(t, 112, res.Rows[6].Estimate, 1e-4)
	assertBoundsOrdered(t, res)
}

func TestForecast_HorizonLaw(t *testing.T) {
	s := generate(90, func(i int, _ time.Time) float64 { return 50 + 0.1*float64(i) + math.Sin(float64(i)) })
	for _, horizon := range []int{1, 7, 30, 60, 365} {
		res, err := New(DefaultOptions()).Forecast(s, horizon)
		require.NoError(t, err)

		future := res.Future()
		require.Len(t, future, horizon)
		last := s.Points[len(s.Points)-1].Time
		for h, row := range future {
			assert.True(t, row.Time.Equal(last.AddDate(0, 0, h+1)))
			assert.False(t, row.Historical)
		}
		assert.True(t, res.Rows[0].Time.Equal(s.Points[0].Time))
		assert.Equal(t, horizon, res.Horizon)
	}
}

func TestForecast_RecoversLinearTrend(t *testing.T) {
	s := generate(120, func(i int, _ time.Time) float64 { return 100 + 0.5*float64(i) })
	res, err := New(DefaultOptions()).Forecast(s, 30)
	require.NoError(t, err)

	for i, p := range s.Points {
		assert.InDelta(t, p.Value, res.Rows[i].Estimate, 0.5)
	}
	lastRow := res.Rows[len(res.Rows)-1]
	assert.InDelta(t, 100+0.5*149, lastRow.Estimate, 1.5)
	assertBoundsOrdered(t, res)
}

func TestForecast_BoundsOnNoisyData(t *testing.T) {
	// Deterministic pseudo-noise.
	s := generate(400, func(i int, tm time.Time) float64 {
		noise := math.Sin(float64(i)*12.9898) * 43758.5453
		noise -= math.Floor(noise)
		return 200 + 0.2*float64(i) + 3*math.Sin(2*math.Pi*float64(tm.Weekday())/7) + 4*(noise-0.5)
	})
	res, err := New(DefaultOptions()).Forecast(s, 180)
	require.NoError(t, err)
	assertBoundsOrdered(t, res)

	future := res.Future()
	first := future[0].Upper - future[0].Lower
	lastWidth := future[len(future)-1].Upper - future[len(future)-1].Lower
	assert.GreaterOrEqual(t, lastWidth, first)
	assert.Greater(t, first, 0.0)
}

func TestForecast_Deterministic(t *testing.T) {
	s := generate(200, func(i int, _ time.Time) float64 { return 10 + math.Sqrt(float64(i)) + math.Cos(float64(i)/3) })
	f := New(DefaultOptions())
	a, err := f.Forecast(s, 45)
	require.NoError(t, err)
	b, err := f.Forecast(s, 45)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestForecast_WeeklyComponent(t *testing.T) {
	pattern := []float64{0, 2, 4, 3, 1, -4, -6}
	s := generate(84, func(i int, tm time.Time) float64 { return 100 + pattern[int(tm.Weekday())] })
	res, err := New(DefaultOptions()).Forecast(s, 21)
	require.NoError(t, err)

	weekly, ok := res.Component(ComponentWeekly)
	require.True(t, ok)
	_, ok = res.Component(ComponentYearly)
	assert.False(t, ok, "yearly seasonality needs two years of history")

	trend, ok := res.Component(ComponentTrend)
	require.True(t, ok)
	require.Len(t, weekly.Values, len(res.Rows))
	require.Len(t, trend.Values, len(res.Rows))

	for i := 0; i+7 < len(weekly.Values); i++ {
		assert.InDelta(t, weekly.Values[i], weekly.Values[i+7], 1e-6)
	}
	for i, row := range res.Rows {
		assert.InDelta(t, trend.Values[i]+weekly.Values[i], row.Estimate, 1e-9)
	}

	// Saturday is the low of the pattern.
	for _, row := range res.Future() {
		if row.Time.Weekday() == time.Saturday {
			assert.InDelta(t, 94, row.Estimate, 1.0)
		}
	}
}

func TestForecast_SeasonalityToggles(t *testing.T) {
	s := generate(30, func(i int, _ time.Time) float64 { return float64(i) })

	res, err := New(Options{Weekly: Off, Yearly: On}).Forecast(s, 10)
	require.NoError(t, err)
	_, ok := res.Component(ComponentWeekly)
	assert.False(t, ok)
	_, ok = res.Component(ComponentYearly)
	assert.True(t, ok)
	assertBoundsOrdered(t, res)

	res, err = New(Options{Weekly: Auto, Yearly: Auto}).Forecast(daily(1, 2, 3, 4, 5), 10)
	require.NoError(t, err)
	assert.Len(t, res.Components, 1, "short history fits trend only")
}

func TestForecast_UnsortedAndDuplicateDates(t *testing.T) {
	s := &model.Series{Column: "Close", Points: []model.PricePoint{
		{Time: base.AddDate(0, 0, 2), Value: 12},
		{Time: base, Value: 10},
		{Time: base.AddDate(0, 0, 1), Value: 11},
		{Time: base.AddDate(0, 0, 1), Value: 11},
	}}
	res, err := New(DefaultOptions()).Forecast(s, 3)
	require.NoError(t, err)
	require.Len(t, res.Rows, 6)
	assert.True(t, res.Rows[0].Time.Equal(base))
	assert.True(t, res.Rows[2].Time.Equal(base.AddDate(0, 0, 2)))
	assert.True(t, res.Rows[5].Time.Equal(base.AddDate(0, 0, 5)))
	assertBoundsOrdered(t, res)
}

func TestForecast_ConstantAndZeroSeries(t *testing.T) {
	for _, v := range []float64{0, 42} {
		res, err := New(DefaultOptions()).Forecast(generate(40, func(int, time.Time) float64 { return v }), 10)
		require.NoError(t, err)
		for _, row := range res.Rows {
			assert.InDelta(t, v, row.Estimate, 1e-3)
		}
		assertBoundsOrdered(t, res)
	}
}

func TestForecast_SameDayHistory(t *testing.T) {
	s := &model.Series{Column: "Close", Points: []model.PricePoint{
		{Time: base, Value: 10},
		{Time: base, Value: 12},
	}}
	res, err := New(DefaultOptions()).Forecast(s, 2)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.InDelta(t, 11, res.Rows[0].Estimate, 1e-3)
	assertBoundsOrdered(t, res)
}

func TestOptionsDefaults(t *testing.T) {
	got := New(Options{}).Options()
	assert.Equal(t, DefaultOptions(), got)

	got = New(Options{NChangepoints: -1, IntervalWidth: 0.95}).Options()
	assert.Equal(t, 0, got.NChangepoints)
	assert.Equal(t, 0.95, got.IntervalWidth)
}
