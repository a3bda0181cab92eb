package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genewire/genewire/pkg/repository"
)

type mockRunner struct {
	runs     atomic.Int32
	cleanups atomic.Int32
	runErr   error

	gotRetention atomic.Int32
}

func (m *mockRunner) Run(_ context.Context, _ bool) (*repository.DailySummary, error) {
	m.runs.Add(1)
	return &repository.DailySummary{}, m.runErr
}

func (m *mockRunner) Cleanup(_ context.Context, retentionDays int) error {
	m.cleanups.Add(1)
	m.gotRetention.Store(int32(retentionDays))
	return nil
}

func TestNew_Defaults(t *testing.T) {
	s := New(&mockRunner{}, Config{})

	assert.Equal(t, "0 7 * * *", s.cfg.DigestCron)
	assert.Equal(t, "30 3 * * *", s.cfg.CleanupCron)
	assert.Equal(t, 90, s.cfg.RetentionDays)
	assert.Equal(t, 15*time.Minute, s.cfg.JobTimeout)
}

func TestScheduler_StartStop(t *testing.T) {
	runner := &mockRunner{}
	s := New(runner, Config{DigestCron: "@every 1h", CleanupCron: "@every 1h"})

	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	// nothing fired within the hour
	assert.Zero(t, runner.runs.Load())
	assert.Zero(t, runner.cleanups.Load())
}

func TestScheduler_InvalidExpression(t *testing.T) {
	s := New(&mockRunner{}, Config{DigestCron: "not a cron expr"})
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule digest job")

	s = New(&mockRunner{}, Config{CleanupCron: "also broken"})
	err = s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule cleanup job")
}

func TestScheduler_JobsInvokeRunner(t *testing.T) {
	runner := &mockRunner{runErr: errors.New("boom")} // errors are logged, not fatal
	s := New(runner, Config{RetentionDays: 30})

	s.runDigest(context.Background())
	s.runCleanup(context.Background())

	assert.Equal(t, int32(1), runner.runs.Load())
	assert.Equal(t, int32(1), runner.cleanups.Load())
	assert.Equal(t, int32(30), runner.gotRetention.Load())
}
