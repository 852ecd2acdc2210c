// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/tvfilter/internal/config"
)

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// RunFunc performs one run. It must return when ctx is cancelled.
type RunFunc func(ctx context.Context) error

// Scheduler invokes a RunFunc at the times of a cron schedule. Runs never
// overlap: a tick that fires while the previous run is active is skipped.
type Scheduler struct {
	mu sync.Mutex

	expr       string
	schedule   cron.Schedule
	run        RunFunc
	runOnStart bool
	timeout    time.Duration
	logger     *slog.Logger

	// Running state
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler for the cron expression expr. Five-field
// expressions and descriptors such as @hourly are accepted.
func NewScheduler(expr string, run RunFunc) (*Scheduler, error) {
	schedule, err := config.CronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &Scheduler{
		expr:     expr,
		schedule: schedule,
		run:      run,
		logger:   slog.Default(),
	}, nil
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger.With(slog.String("component", "scheduler"))
	return s
}

// WithRunOnStart runs once immediately when the scheduler starts.
func (s *Scheduler) WithRunOnStart(enabled bool) *Scheduler {
	s.runOnStart = enabled
	return s
}

// WithRunTimeout bounds the duration of each run. Zero means no limit.
func (s *Scheduler) WithRunTimeout(timeout time.Duration) *Scheduler {
	s.timeout = timeout
	return s
}

// Start begins scheduling. Runs use a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	logger := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s.cron.Schedule(s.schedule, cron.FuncJob(s.trigger))
	s.cron.Start()

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.trigger()
		}()
	}

	s.logger.Info("scheduler started",
		slog.String("cron", s.expr),
		slog.Time("next_run", s.schedule.Next(time.Now())),
		slog.Bool("run_on_start", s.runOnStart))

	return nil
}

// Stop cancels any active run and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	stopped := s.cron.Stop()
	s.mu.Unlock()

	<-stopped.Done()
	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.cron = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// Next returns the next scheduled run after now.
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(time.Now())
}

func (s *Scheduler) trigger() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.InfoContext(ctx, "scheduled run starting")
	if err := s.run(ctx); err != nil {
		s.logger.ErrorContext(ctx, "scheduled run failed",
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return
	}
	s.logger.InfoContext(ctx, "scheduled run completed",
		slog.Duration("duration", time.Since(start)),
		slog.Time("next_run", s.Next()))
}

// NextRun validates expr and returns its next activation after now.
func NextRun(expr string) (time.Time, error) {
	schedule, err := config.CronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(time.Now()), nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
