package cli

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophledger/internal/client/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	down  atomic.Bool
	calls atomic.Int32
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls.Add(1)
	if f.down.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func TestStartOnlineStatusWatcher_FlipsMode(t *testing.T) {
	a, _, _ := newTestApp(t, strings.NewReader(""))
	p := &fakePinger{}
	a.pinger = p
	a.mode = ModeOffline

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.StartOnlineStatusWatcher(ctx, 10*time.Millisecond)
	}()

	require.Eventually(t, func() bool { return a.Mode() == ModeOnline }, time.Second, 5*time.Millisecond)

	p.down.Store(true)
	require.Eventually(t, func() bool { return a.Mode() == ModeOffline }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.GreaterOrEqual(t, p.calls.Load(), int32(2))
}

func TestStartOnlineStatusWatcher_LocalIsNoop(t *testing.T) {
	a, _, _ := newTestApp(t, strings.NewReader(""))

	a.StartOnlineStatusWatcher(context.Background(), 10*time.Millisecond)
	assert.Equal(t, ModeLocal, a.Mode())
}

func TestGetStatus(t *testing.T) {
	stubSecrets(t, "alice")
	a, _, _ := newTestApp(t, strings.NewReader(""))
	assert.Equal(t, "local", a.getStatus())

	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, "local*", a.getStatus())
}

func TestRoot_RunsUntilExit(t *testing.T) {
	a, _, out := newTestApp(t, strings.NewReader("help\nexit\n"))
	a.config = &config.Config{DecodeConcurrency: 1}

	a.Root(context.Background())

	s := out.String()
	assert.Contains(t, s, "Welcome to GophLedger")
	assert.Contains(t, s, helpLoggedOut)
	assert.Contains(t, s, "Bye!")
}

func TestNewApp_UnknownMode(t *testing.T) {
	cfg := &config.Config{Mode: "carrier-pigeon", DatabaseDSN: ":memory:"}
	_, err := NewApp(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewApp_LocalClose(t *testing.T) {
	cfg := &config.Config{Mode: config.ModeLocal, DatabaseDSN: ":memory:", DecodeConcurrency: 2, LogLevel: "error"}
	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, a.Mode())
	a.Close()
}
