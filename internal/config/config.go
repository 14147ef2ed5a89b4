package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"PriceForecaster/internal/collector"
	"PriceForecaster/internal/forecast"
	"PriceForecaster/internal/logger"
	"PriceForecaster/internal/pipeline"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stderr"`
	} `yaml:"log"`
	DataSource struct {
		Type              string        `yaml:"type" default:"yahoo" validate:"oneof=yahoo rest file mock"`
		BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
		APIKey            string        `yaml:"api_key"`
		DataDir           string        `yaml:"data_dir"`
		HeaderRows        int           `yaml:"header_rows" default:"1" validate:"min=1,max=5"`
		RequestsPerSecond float64       `yaml:"requests_per_second" default:"2" validate:"gte=0"`
		Timeout           time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"data_source"`
	Forecast struct {
		Symbol                string  `yaml:"symbol" default:"TCS.NS" validate:"required"`
		LookbackDays          int     `yaml:"lookback_days" default:"365" validate:"gt=0"`
		HorizonDays           int     `yaml:"horizon_days" default:"60" validate:"gt=0"`
		IntervalWidth         float64 `yaml:"interval_width" default:"0.8" validate:"gt=0,lt=1"`
		NChangepoints         int     `yaml:"n_changepoints" default:"25" validate:"gte=-1"` // -1 disables
		ChangepointRange      float64 `yaml:"changepoint_range" default:"0.8" validate:"gt=0,lte=1"`
		ChangepointPriorScale float64 `yaml:"changepoint_prior_scale" default:"0.05" validate:"gt=0"`
		SeasonalityPriorScale float64 `yaml:"seasonality_prior_scale" default:"10" validate:"gt=0"`
		Weekly                string  `yaml:"weekly_seasonality" default:"auto" validate:"oneof=auto on off"`
		Yearly                string  `yaml:"yearly_seasonality" default:"auto" validate:"oneof=auto on off"`
	} `yaml:"forecast"`
	Schedule struct {
		Enabled     bool     `yaml:"enabled"`
		Cron        string   `yaml:"cron" default:"0 30 18 * * 1-5"`
		Symbols     []string `yaml:"symbols"`
		Concurrency int      `yaml:"concurrency" default:"4" validate:"min=1,max=32"`
	} `yaml:"schedule"`
	Server struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr" default:":8080" validate:"required"`
	} `yaml:"server"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/forecaster.db"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

var validate = validator.New()

// Load reads config from a YAML file, applies environment variable
// overrides, then fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FORECAST_SYMBOL"); v != "" {
		c.Forecast.Symbol = v
	}
	if v := os.Getenv("FORECAST_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse FORECAST_HORIZON: %w", err)
		}
		c.Forecast.HorizonDays = n
	}
	if v := os.Getenv("DATA_SOURCE"); v != "" {
		c.DataSource.Type = v
	}
	if v := os.Getenv("REST_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("REST_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataSource.DataDir = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SCHEDULE_SYMBOLS"); v != "" {
		c.Schedule.Symbols = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks struct tags, then the rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.DataSource.Type {
	case collector.SourceREST:
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest source")
		}
	case collector.SourceFile:
		if c.DataSource.DataDir == "" {
			return fmt.Errorf("data_source.data_dir is required for the file source")
		}
	}
	if c.Schedule.Enabled && len(c.Symbols()) == 0 {
		return fmt.Errorf("schedule.symbols is required when the schedule is enabled")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// Symbols returns the scheduled symbols, falling back to forecast.symbol.
func (c *Config) Symbols() []string {
	if len(c.Schedule.Symbols) > 0 {
		return c.Schedule.Symbols
	}
	if c.Forecast.Symbol != "" {
		return []string{c.Forecast.Symbol}
	}
	return nil
}

// Request builds a run for symbol over the lookback window ending today.
// An empty symbol means forecast.symbol; horizon < 1 means
// forecast.horizon_days.
func (c *Config) Request(symbol string, horizon int, now time.Time) pipeline.Request {
	if symbol == "" {
		symbol = c.Forecast.Symbol
	}
	if horizon < 1 {
		horizon = c.Forecast.HorizonDays
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return pipeline.Request{
		Symbol:  symbol,
		Start:   today.AddDate(0, 0, -c.Forecast.LookbackDays),
		End:     today,
		Horizon: horizon,
	}
}

// FetcherOptions maps the data_source section onto collector options.
func (c *Config) FetcherOptions() collector.Options {
	return collector.Options{
		Type:              c.DataSource.Type,
		BaseURL:           c.DataSource.BaseURL,
		APIKey:            c.DataSource.APIKey,
		DataDir:           c.DataSource.DataDir,
		HeaderRows:        c.DataSource.HeaderRows,
		RequestsPerSecond: c.DataSource.RequestsPerSecond,
		Timeout:           c.DataSource.Timeout,
		Proxy:             c.Proxy,
	}
}

// ForecastOptions maps the forecast section onto model options.
func (c *Config) ForecastOptions() forecast.Options {
	return forecast.Options{
		IntervalWidth:         c.Forecast.IntervalWidth,
		NChangepoints:         c.Forecast.NChangepoints,
		ChangepointRange:      c.Forecast.ChangepointRange,
		ChangepointPriorScale: c.Forecast.ChangepointPriorScale,
		SeasonalityPriorScale: c.Forecast.SeasonalityPriorScale,
		Weekly:                forecast.Toggle(c.Forecast.Weekly),
		Yearly:                forecast.Toggle(c.Forecast.Yearly),
	}
}

// LoggerConfig maps the log section onto logger options.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Log.Level, Format: c.Log.Format, Output: c.Log.Output}
}
