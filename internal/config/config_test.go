package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceForecaster/internal/forecast"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "yahoo", cfg.DataSource.Type)
	assert.Equal(t, 30*time.Second, cfg.DataSource.Timeout)
	assert.Equal(t, "TCS.NS", cfg.Forecast.Symbol)
	assert.Equal(t, 365, cfg.Forecast.LookbackDays)
	assert.Equal(t, 60, cfg.Forecast.HorizonDays)
	assert.Equal(t, 0.8, cfg.Forecast.IntervalWidth)
	assert.Equal(t, 25, cfg.Forecast.NChangepoints)
	assert.Equal(t, "auto", cfg.Forecast.Weekly)
	assert.Equal(t, 4, cfg.Schedule.Concurrency)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "data/forecaster.db", cfg.Database.SQLitePath)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
data_source:
  type: file
  data_dir: ./prices
  header_rows: 3
  timeout: 5s
forecast:
  symbol: AAPL
  horizon_days: 400
  n_changepoints: -1
  yearly_seasonality: "off"
schedule:
  enabled: true
  symbols: [AAPL, MSFT]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3, cfg.DataSource.HeaderRows)
	assert.Equal(t, 5*time.Second, cfg.DataSource.Timeout)
	assert.Equal(t, 400, cfg.Forecast.HorizonDays, "horizons outside 30-180 are accepted")
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Symbols())

	opts := cfg.ForecastOptions()
	assert.Equal(t, forecast.Off, opts.Yearly)
	assert.Equal(t, 0, forecast.New(opts).Options().NChangepoints)

	fo := cfg.FetcherOptions()
	assert.Equal(t, "file", fo.Type)
	assert.Equal(t, "./prices", fo.DataDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "forecast:\n  symbol: AAPL\n")
	t.Setenv("FORECAST_SYMBOL", "INFY.NS")
	t.Setenv("FORECAST_HORIZON", "90")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("SCHEDULE_SYMBOLS", "AAPL, MSFT ,")
	t.Setenv("HTTPS_PROXY", "http://proxy:3128")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "INFY.NS", cfg.Forecast.Symbol)
	assert.Equal(t, 90, cfg.Forecast.HorizonDays)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Schedule.Symbols)
	assert.Equal(t, "http://proxy:3128", cfg.FetcherOptions().Proxy)
}

func TestLoad_BadHorizonEnv(t *testing.T) {
	t.Setenv("FORECAST_HORIZON", "sixty")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "forecast: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown source", func(c *Config) { c.DataSource.Type = "ftp" }},
		{"rest without url", func(c *Config) { c.DataSource.Type = "rest" }},
		{"file without dir", func(c *Config) { c.DataSource.Type = "file" }},
		{"bad interval width", func(c *Config) { c.Forecast.IntervalWidth = 1.5 }},
		{"negative horizon", func(c *Config) { c.Forecast.HorizonDays = -1 }},
		{"bad seasonality", func(c *Config) { c.Forecast.Weekly = "sometimes" }},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }},
		{"telegram token only", func(c *Config) { c.Telegram.BotToken = "t" }},
		{"schedule without symbols", func(c *Config) {
			c.Schedule.Enabled = true
			c.Forecast.Symbol = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRequest(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	now := time.Date(2025, 3, 15, 17, 45, 0, 0, time.UTC)
	req := cfg.Request("", 0, now)
	assert.Equal(t, "TCS.NS", req.Symbol)
	assert.Equal(t, 60, req.Horizon)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), req.End)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), req.Start)
	require.NoError(t, req.Validate())

	req = cfg.Request("MSFT", 7, now)
	assert.Equal(t, "MSFT", req.Symbol)
	assert.Equal(t, 7, req.Horizon)
}
