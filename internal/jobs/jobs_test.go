package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	retention time.Duration
	calls     int
	err       error
}

func (f *fakePurger) PurgeRead(_ context.Context, retention time.Duration) (int64, error) {
	f.calls++
	f.retention = retention
	return 3, f.err
}

type fakeCleaner struct{ calls int }

func (f *fakeCleaner) CleanupExpiredTokens(context.Context) (int64, error) {
	f.calls++
	return 1, nil
}

func TestRetentionCleanupJob(t *testing.T) {
	purger := &fakePurger{}
	require.NoError(t, NewRetentionCleanupJob(purger, 48*time.Hour).Run(context.Background()))
	assert.Equal(t, 1, purger.calls)
	assert.Equal(t, 48*time.Hour, purger.retention)

	disabled := &fakePurger{}
	require.NoError(t, NewRetentionCleanupJob(disabled, 0).Run(context.Background()))
	assert.Zero(t, disabled.calls)

	failing := &fakePurger{err: errors.New("store down")}
	assert.Error(t, NewRetentionCleanupJob(failing, time.Hour).Run(context.Background()))
}

func TestSchedulerRegisterAndRunNow(t *testing.T) {
	s, err := NewJobScheduler()
	require.NoError(t, err)

	cleaner := &fakeCleaner{}
	require.NoError(t, s.Register("token_cleanup", "0 * * * *", NewTokenCleanupJob(cleaner)))
	assert.Error(t, s.Register("bad", "not a cron", NewTokenCleanupJob(cleaner)))

	s.Start()
	defer s.Stop()

	require.NoError(t, s.RunNow("token_cleanup"))
	assert.Equal(t, 1, cleaner.calls)
	assert.Error(t, s.RunNow("missing"))

	status := s.GetStatus()
	require.Contains(t, status, "token_cleanup")
	assert.True(t, status["token_cleanup"].NextRunTime.After(time.Now()))
}
