package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"

	"github.com/genewire/genewire/pkg/repository"
)

// DigestRunner runs the digest pipeline and periodic cleanup
type DigestRunner interface {
	Run(ctx context.Context, force bool) (*repository.DailySummary, error)
	Cleanup(ctx context.Context, retentionDays int) error
}

// Config holds the schedule expressions and retention window
type Config struct {
	DigestCron    string
	CleanupCron   string
	RetentionDays int
	JobTimeout    time.Duration
}

// Scheduler triggers the daily digest and cleanup jobs on cron schedules
type Scheduler struct {
	runner DigestRunner
	cfg    Config
	cron   *cron.Cron
}

// New creates a scheduler for the digest runner
func New(runner DigestRunner, cfg Config) *Scheduler {
	if cfg.DigestCron == "" {
		cfg.DigestCron = "0 7 * * *"
	}
	if cfg.CleanupCron == "" {
		cfg.CleanupCron = "30 3 * * *"
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 90
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = 15 * time.Minute
	}

	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		cron:   cron.New(),
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.DigestCron, func() { s.runDigest(ctx) }); err != nil {
		return fmt.Errorf("schedule digest job %q: %w", s.cfg.DigestCron, err)
	}

	if _, err := s.cron.AddFunc(s.cfg.CleanupCron, func() { s.runCleanup(ctx) }); err != nil {
		return fmt.Errorf("schedule cleanup job %q: %w", s.cfg.CleanupCron, err)
	}

	s.cron.Start()
	lgr.Printf("[INFO] scheduler started, digest %q, cleanup %q, retention %d days",
		s.cfg.DigestCron, s.cfg.CleanupCron, s.cfg.RetentionDays)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	lgr.Printf("[INFO] scheduler stopped")
}

func (s *Scheduler) runDigest(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	if _, err := s.runner.Run(ctx, false); err != nil {
		lgr.Printf("[ERROR] scheduled digest run failed: %v", err)
	}
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	if err := s.runner.Cleanup(ctx, s.cfg.RetentionDays); err != nil {
		lgr.Printf("[ERROR] scheduled cleanup failed: %v", err)
	}
}
