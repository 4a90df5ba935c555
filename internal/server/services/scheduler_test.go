package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBackup struct {
	calls    atomic.Int32
	err      error
	deadline bool
}

func (c *countingBackup) Backup(ctx context.Context) (string, int, error) {
	c.calls.Add(1)
	_, c.deadline = ctx.Deadline()
	return "k", 1, c.err
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler("not a cron spec", time.Minute, &countingBackup{}, logging.Nop())
	require.Error(t, err)
}

func TestScheduler_RunOnceAppliesTimeout(t *testing.T) {
	job := &countingBackup{}
	s, err := NewScheduler("0 3 * * *", time.Minute, job, logging.Nop())
	require.NoError(t, err)

	s.runOnce()
	assert.Equal(t, int32(1), job.calls.Load())
	assert.True(t, job.deadline)

	job.err = errors.New("upload failed")
	s.runOnce()
	assert.Equal(t, int32(2), job.calls.Load())
}

func TestScheduler_RunStopsOnContextCancel(t *testing.T) {
	s, err := NewScheduler("@every 1h", time.Minute, &countingBackup{}, logging.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
