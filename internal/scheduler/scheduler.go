package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"PriceForecaster/internal/notifier"
	"PriceForecaster/internal/pipeline"
	"PriceForecaster/internal/recorder"
)

// Runner executes one pipeline request.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Sender delivers a formatted message.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// RequestFunc builds the request for a symbol and horizon at time now.
// horizon < 1 selects the configured default.
type RequestFunc func(symbol string, horizon int, now time.Time) pipeline.Request

// Options configure a Scheduler.
type Options struct {
	Symbols     []string
	Concurrency int
	Request     RequestFunc
	Logger      zerolog.Logger
}

// Scheduler runs forecasts for the watched symbols on a cron schedule and
// answers chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Notifier Sender
	Recorder recorder.Recorder
	Ctx      context.Context

	symbols     []string
	concurrency int
	request     RequestFunc
	log         zerolog.Logger
	now         func() time.Time
	running     atomic.Bool
}

// NewScheduler creates a new Scheduler. notifier may be nil.
func NewScheduler(ctx context.Context, runner Runner, notifier Sender, rec recorder.Recorder, opts Options) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:        cron.New(cron.WithSeconds()),
		Runner:      runner,
		Notifier:    notifier,
		Recorder:    rec,
		Ctx:         ctx,
		symbols:     opts.Symbols,
		concurrency: opts.Concurrency,
		request:     opts.Request,
		log:         opts.Logger,
		now:         time.Now,
	}
}

// Register adds the periodic forecast task.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.forecastTask); err != nil {
		return fmt.Errorf("register forecast task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Strs("symbols", s.symbols).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running task.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// Outcome is the result of one symbol in a batch.
type Outcome struct {
	Symbol string
	Result *pipeline.Result
	Err    error
}

// RunAll forecasts every watched symbol, at most concurrency at a time.
// A failing symbol does not stop the others; outcomes keep symbol order.
func (s *Scheduler) RunAll(ctx context.Context) []Outcome {
	out := make([]Outcome, len(s.symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, sym := range s.symbols {
		i, sym := i, sym
		g.Go(func() error {
			res, err := s.Forecast(gctx, sym, 0)
			out[i] = Outcome{Symbol: sym, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Forecast runs and records one symbol.
func (s *Scheduler) Forecast(ctx context.Context, symbol string, horizon int) (*pipeline.Result, error) {
	req := s.request(symbol, horizon, s.now())
	res, err := s.Runner.Run(ctx, req)
	if _, recErr := s.Recorder.RecordRun(ctx, req, res, err); recErr != nil {
		s.log.Error().Err(recErr).Str("symbol", symbol).Msg("record run")
	}
	return res, err
}

// RunNow executes the scheduled task immediately.
func (s *Scheduler) RunNow() {
	s.forecastTask()
}

func (s *Scheduler) forecastTask() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("previous forecast task still running, skipping")
		return
	}
	defer s.running.Store(false)

	s.log.Info().Int("symbols", len(s.symbols)).Msg("running forecast task")
	failed := 0
	for _, o := range s.RunAll(s.Ctx) {
		if o.Err != nil {
			failed++
			s.trySend(notifier.FormatError(o.Symbol, o.Err))
			continue
		}
		s.trySend(notifier.FormatForecastReport(o.Result))
	}
	s.log.Info().Int("failed", failed).Msg("forecast task finished")
}

// MaxCommandHorizon is the longest horizon accepted from chat, ten years of
// days.
const MaxCommandHorizon = 3650

const helpText = "Available commands:\n" +
	"• /forecast SYMBOL [HORIZON]\n" +
	"• /history [SYMBOL]\n" +
	"• /watchlist"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// Commands may be addressed as /forecast@BotName in group chats.
	name, _, _ := strings.Cut(fields[0], "@")

	switch name {
	case "/forecast":
		if len(fields) < 2 {
			return "Usage: /forecast SYMBOL [HORIZON]"
		}
		horizon := 0
		if len(fields) > 2 {
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return fmt.Sprintf("Horizon must be a whole number of days, got %q", fields[2])
			}
			if n < 1 {
				return "Horizon must be a positive number of days"
			}
			if n > MaxCommandHorizon {
				return fmt.Sprintf("Horizon must be at most %d days", MaxCommandHorizon)
			}
			horizon = n
		}
		res, err := s.Forecast(ctx, fields[1], horizon)
		if err != nil {
			return notifier.FormatError(fields[1], err)
		}
		return notifier.FormatForecastReport(res)
	case "/history":
		symbol := ""
		if len(fields) > 1 {
			symbol = fields[1]
		}
		runs, err := s.Recorder.RecentRuns(ctx, symbol, 10)
		if err != nil {
			return fmt.Sprintf("❌ Could not load history: %v", err)
		}
		return notifier.FormatRuns(runs)
	case "/watchlist":
		if len(s.symbols) == 0 {
			return "No symbols are scheduled."
		}
		return "Scheduled symbols: " + strings.Join(s.symbols, ", ")
	default:
		return helpText
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}
