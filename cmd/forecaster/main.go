package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"PriceForecaster/internal/api"
	"PriceForecaster/internal/collector"
	"PriceForecaster/internal/config"
	"PriceForecaster/internal/forecast"
	"PriceForecaster/internal/logger"
	"PriceForecaster/internal/metrics"
	"PriceForecaster/internal/notifier"
	"PriceForecaster/internal/pipeline"
	"PriceForecaster/internal/recorder"
	"PriceForecaster/internal/scheduler"
)

const usage = `usage: forecaster <command> [flags]

commands:
  run    forecast one symbol and print the report
  serve  start the HTTP API, the scheduler and Telegram polling`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfgPath := config.DefaultPath
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		err = runOnce(cfg, log, os.Args[2:], os.Stdout)
	case "serve":
		err = serve(cfg, log)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		os.Exit(1)
	}
}

type app struct {
	pipeline *pipeline.Pipeline
	recorder recorder.Recorder
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	fetcher, err := collector.New(cfg.FetcherOptions())
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	log.Info().Str("source", fetcher.Name()).Msg("data source ready")

	watched := append([]string{cfg.Forecast.Symbol}, cfg.Symbols()...)
	p := pipeline.New(fetcher, forecast.New(cfg.ForecastOptions()),
		pipeline.WithObserver(metrics.New(prometheus.DefaultRegisterer, watched...)),
		pipeline.WithLogger(log),
	)

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec = sr
		}
	}
	return &app{pipeline: p, recorder: rec}, nil
}

func runOnce(cfg *config.Config, log zerolog.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	symbol := fs.String("symbol", cfg.Forecast.Symbol, "ticker symbol")
	horizon := fs.Int("horizon", cfg.Forecast.HorizonDays, "days to forecast")
	start := fs.String("start", "", "first date, YYYY-MM-DD (default: lookback_days before today)")
	end := fs.String("end", "", "end date, exclusive, YYYY-MM-DD (default: today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := cfg.Request(*symbol, *horizon, time.Now())
	if *start != "" {
		t, err := time.Parse("2006-01-02", *start)
		if err != nil {
			return fmt.Errorf("parse start: %w", err)
		}
		req.Start = t
	}
	if *end != "" {
		t, err := time.Parse("2006-01-02", *end)
		if err != nil {
			return fmt.Errorf("parse end: %w", err)
		}
		req.End = t
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.recorder.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := a.pipeline.Run(ctx, req)
	if _, recErr := a.recorder.RecordRun(ctx, req, res, err); recErr != nil {
		log.Error().Err(recErr).Msg("record run")
	}
	if err != nil {
		return err
	}
	printReport(out, res)
	return nil
}

func printReport(out io.Writer, res *pipeline.Result) {
	fmt.Fprintf(out, "%s: using column %s (%d points)\n\n", res.Request.Symbol, res.CloseColumn, res.Series.Len())
	fmt.Fprintln(out, notifier.FormatTableTail(res.Table, notifier.PreviewRows))
	fmt.Fprintln(out, notifier.FormatSummary(res.Summary))
	fmt.Fprintf(out, "Forecast (%d days, %.0f%% interval):\n", res.Forecast.Horizon, res.Forecast.IntervalWidth*100)
	fmt.Fprintln(out, notifier.FormatForecastTail(res.Forecast, notifier.PreviewRows))
}

func serve(cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
	if !cfg.Schedule.Enabled && !cfg.Server.Enabled && !tn.Enabled() {
		return errors.New("nothing to serve: enable schedule, server or telegram")
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.recorder.Close()

	var sender scheduler.Sender
	if tn.Enabled() {
		sender = tn
	}

	sched := scheduler.NewScheduler(ctx, a.pipeline, sender, a.recorder, scheduler.Options{
		Symbols:     cfg.Symbols(),
		Concurrency: cfg.Schedule.Concurrency,
		Request:     cfg.Request,
		Logger:      log,
	})
	if cfg.Schedule.Enabled {
		if err := sched.Register(cfg.Schedule.Cron); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	if tn.Enabled() {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	var srv *api.Server
	if cfg.Server.Enabled {
		h := api.NewForecastHandler(a.pipeline, a.recorder, cfg.Request, log)
		srv = api.NewServer(cfg.Server.Addr, log, h)
		srv.Start()
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, executing forecast task now")
		go sched.RunNow()
	}

	log.Info().Msg("forecaster is running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	cancel()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("stop http server")
		}
	}
	log.Info().Msg("forecaster stopped")
	return nil
}
