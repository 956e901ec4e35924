package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DailyJob is the work fired once per day
type DailyJob interface {
	RunForYesterday(ctx context.Context) (int, error)
}

// DailyAggregationSchedulerConfig holds configuration for the daily aggregation scheduler
type DailyAggregationSchedulerConfig struct {
	Enabled bool
	// DailyCronSchedule is "minute hour * * *", evaluated in UTC
	DailyCronSchedule string
	// JobTimeout bounds a single run
	JobTimeout time.Duration
}

// SchedulerOption configures a DailyAggregationScheduler
type SchedulerOption func(*DailyAggregationScheduler)

// WithClock replaces the wall clock, mainly for tests
func WithClock(clock clockwork.Clock) SchedulerOption {
	return func(s *DailyAggregationScheduler) {
		s.clock = clock
	}
}

// DailyAggregationScheduler fires the aggregation job for yesterday once per
// day at a fixed UTC wall-clock time. It owns its goroutine and exposes only
// Start and Stop.
type DailyAggregationScheduler struct {
	config DailyAggregationSchedulerConfig
	hour   int
	minute int
	job    DailyJob
	clock  clockwork.Clock
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	lastRunAt    *time.Time
	nextRunAt    *time.Time
	lastFiredDay time.Time
}

// NewDailyAggregationScheduler validates the schedule and creates a stopped scheduler
func NewDailyAggregationScheduler(cfg DailyAggregationSchedulerConfig, job DailyJob, logger *zap.Logger, opts ...SchedulerOption) (*DailyAggregationScheduler, error) {
	hour, minute, err := ParseCronSchedule(cfg.DailyCronSchedule)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &DailyAggregationScheduler{
		config: cfg,
		hour:   hour,
		minute: minute,
		job:    job,
		clock:  clockwork.NewRealClock(),
		logger: logger.Named("daily_aggregation_scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the scheduling loop. Starting a running or disabled scheduler is a no-op.
func (s *DailyAggregationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("Daily aggregation scheduler disabled")
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.isRunning = true

	s.wg.Add(1)
	go s.loop(loopCtx)

	s.logger.Info("Daily aggregation scheduler started",
		zap.Int("cron_hour", s.hour),
		zap.Int("cron_minute", s.minute),
	)
	return nil
}

// Stop cancels the loop and waits for it to exit, including an in-flight run,
// or until ctx expires.
func (s *DailyAggregationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Daily aggregation scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Daily aggregation scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *DailyAggregationScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		now := s.clock.Now().UTC()
		next := s.nextFire(now)
		s.setNextRunAt(next)

		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}

		s.fire(ctx, next)
	}
}

// nextFire returns the next configured hour:minute UTC at or after now,
// skipping a day that already fired.
func (s *DailyAggregationScheduler) nextFire(now time.Time) time.Time {
	s.mu.Lock()
	lastFired := s.lastFiredDay
	s.mu.Unlock()

	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if now.After(next) || sameDay(next, lastFired) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *DailyAggregationScheduler) fire(ctx context.Context, scheduledAt time.Time) {
	started := s.clock.Now()
	s.mu.Lock()
	s.lastRunAt = &started
	s.lastFiredDay = scheduledAt
	s.mu.Unlock()

	runCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Daily aggregation panicked", zap.Any("panic", r), zap.Stack("stacktrace"))
		}
	}()

	s.logger.Info("Starting scheduled daily aggregation", zap.Time("scheduled_at", scheduledAt))
	written, err := s.job.RunForYesterday(runCtx)
	if err != nil {
		s.logger.Error("Scheduled daily aggregation failed",
			zap.Int("days_written", written),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Scheduled daily aggregation completed",
		zap.Int("days_written", written),
		zap.Duration("duration", s.clock.Since(started)),
	)
}

func (s *DailyAggregationScheduler) setNextRunAt(next time.Time) {
	s.mu.Lock()
	s.nextRunAt = &next
	s.mu.Unlock()
}

// NextRunAt returns when the next scheduled run will occur
func (s *DailyAggregationScheduler) NextRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}

// LastRunAt returns when the last run started
func (s *DailyAggregationScheduler) LastRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}

// IsRunning reports whether the loop is active
func (s *DailyAggregationScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
