// Package scheduler runs a job once a day at a fixed local time.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// defaultTickInterval is how often the loop compares the clock with the next run time
const defaultTickInterval = 30 * time.Second

// Config holds configuration for the daily scheduler
type Config struct {
	// Cron is "minute hour * * *"; only the minute and hour fields are honored
	Cron string
	// JobTimeout bounds a single attempt
	JobTimeout time.Duration
	// RetryAttempts is the number of retries after a failed attempt
	RetryAttempts int
	// RetryDelay is the pause between attempts
	RetryDelay time.Duration
}

// DefaultConfig returns a schedule of 06:00 daily
func DefaultConfig() Config {
	return Config{
		Cron:          "0 6 * * *",
		JobTimeout:    30 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    5 * time.Minute,
	}
}

// Job is the work executed on every scheduled run
type Job func(ctx context.Context) error

// Status is a snapshot of the scheduler state
type Status struct {
	Hour      int        `json:"hour" yaml:"hour"`
	Minute    int        `json:"minute" yaml:"minute"`
	Running   bool       `json:"running" yaml:"running"`
	Runs      int        `json:"runs" yaml:"runs"`
	Failures  int        `json:"failures" yaml:"failures"`
	LastRunAt *time.Time `json:"last_run_at,omitempty" yaml:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty" yaml:"next_run_at,omitempty"`
}

// DailyScheduler triggers a Job once per day at the configured hour and minute
type DailyScheduler struct {
	config Config
	hour   int
	minute int
	job    Job
	logger *zap.Logger
	now    func() time.Time
	tick   time.Duration

	mu        sync.Mutex
	running   bool
	runs      int
	failures  int
	lastRunAt *time.Time
	lastError string
	nextRunAt *time.Time
}

// Option configures a DailyScheduler
type Option func(*DailyScheduler)

// WithClock overrides the time source; the clock's location decides the local time of day
func WithClock(now func() time.Time) Option {
	return func(s *DailyScheduler) {
		s.now = now
	}
}

// WithTickInterval overrides how often the clock is checked
func WithTickInterval(d time.Duration) Option {
	return func(s *DailyScheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// NewDailyScheduler creates a scheduler for job
func NewDailyScheduler(config Config, job Job, logger *zap.Logger, opts ...Option) (*DailyScheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: job is nil", ErrInvalidSchedule)
	}
	hour, minute, err := ParseCronSchedule(config.Cron)
	if err != nil {
		return nil, err
	}
	if config.RetryAttempts < 0 {
		return nil, fmt.Errorf("%w: retry attempts must not be negative", ErrInvalidSchedule)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &DailyScheduler{
		config: config,
		hour:   hour,
		minute: minute,
		job:    job,
		logger: logger,
		now:    time.Now,
		tick:   defaultTickInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ParseCronSchedule extracts hour and minute from "minute hour * * *".
// An empty expression means 06:00. Day, month and weekday fields must be "*".
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	parts := strings.Fields(cronExpr)
	if len(parts) == 0 {
		return 6, 0, nil
	}
	if len(parts) != 5 {
		return 0, 0, fmt.Errorf("%w: %q must have 5 fields", ErrInvalidSchedule, cronExpr)
	}
	for _, field := range parts[2:] {
		if field != "*" {
			return 0, 0, fmt.Errorf("%w: %q only supports daily schedules", ErrInvalidSchedule, cronExpr)
		}
	}

	minute, err = strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute must be 0-59, got %q", ErrInvalidSchedule, parts[0])
	}
	hour, err = strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour must be 0-23, got %q", ErrInvalidSchedule, parts[1])
	}
	return hour, minute, nil
}

// NextRun returns the first hour:minute strictly after now, in now's location
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, executing the job at every scheduled time.
// Job failures are logged and recorded in Status; they never stop the loop.
func (s *DailyScheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	next := NextRun(s.now(), s.hour, s.minute)
	s.nextRunAt = &next
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("Daily scheduler started",
		zap.Int("hour", s.hour),
		zap.Int("minute", s.minute),
		zap.Time("next_run_at", next),
	)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Daily scheduler stopped")
			return nil
		case <-ticker.C:
			now := s.now()
			if now.Before(next) {
				continue
			}
			_ = s.RunOnce(ctx)
			next = NextRun(s.now(), s.hour, s.minute)
			s.mu.Lock()
			s.nextRunAt = &next
			s.mu.Unlock()
		}
	}
}

// RunOnce executes the job immediately, retrying failed attempts.
func (s *DailyScheduler) RunOnce(ctx context.Context) error {
	started := s.now()
	err := s.attempt(ctx)
	for retry := 1; err != nil && retry <= s.config.RetryAttempts && ctx.Err() == nil; retry++ {
		s.logger.Warn("Retrying scheduled job",
			zap.Int("retry", retry),
			zap.Duration("delay", s.config.RetryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
		case <-time.After(s.config.RetryDelay):
			err = s.attempt(ctx)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.lastRunAt = &started
	if err != nil {
		s.failures++
		s.lastError = err.Error()
		s.logger.Error("Scheduled job failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrJobFailed, err)
	}
	s.lastError = ""
	s.logger.Info("Scheduled job completed", zap.Duration("duration", s.now().Sub(started)))
	return nil
}

func (s *DailyScheduler) attempt(ctx context.Context) error {
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}
	return s.job(ctx)
}

// Status returns a snapshot of the scheduler state
func (s *DailyScheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Hour:      s.hour,
		Minute:    s.minute,
		Running:   s.running,
		Runs:      s.runs,
		Failures:  s.failures,
		LastRunAt: s.lastRunAt,
		LastError: s.lastError,
		NextRunAt: s.nextRunAt,
	}
}
