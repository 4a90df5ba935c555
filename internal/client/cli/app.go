package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophledger/internal/client/client"
	"github.com/dmitrijs2005/gophledger/internal/client/config"
	"github.com/dmitrijs2005/gophledger/internal/client/legacykeys"
	"github.com/dmitrijs2005/gophledger/internal/client/repositories/records"
	"github.com/dmitrijs2005/gophledger/internal/cryptox"
	"github.com/dmitrijs2005/gophledger/internal/ledger/codec"
	"github.com/dmitrijs2005/gophledger/internal/ledger/coordinator"
	"github.com/dmitrijs2005/gophledger/internal/ledger/migration"
	"github.com/dmitrijs2005/gophledger/internal/ledger/recurrence"
	"github.com/dmitrijs2005/gophledger/internal/ledger/watch"
	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/store"
	"github.com/dmitrijs2005/gophledger/internal/store/sqlstore"
)

type Mode string

const (
	ModeLocal   Mode = "local"
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	store       store.Store
	envelope    *cryptox.Envelope
	codec       *codec.Codec
	coordinator *coordinator.Coordinator
	migrator    *migration.Service
	pipeline    *watch.Pipeline
	legacy      *legacykeys.Source
	pinger      pinger
	closers     []io.Closer

	ownerID string

	mu   sync.Mutex
	mode Mode

	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the local database and the configured store and wires the
// ledger services on top of them.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(os.Stderr, "text", c.LogLevel)

	repos, err := client.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	var (
		s    store.Store
		p    pinger
		mode = ModeLocal
	)
	closers := []io.Closer{repos}

	switch c.Mode {
	case config.ModeRemote:
		gc, err := client.NewGRPCClient(c.ServerEndpointAddr, logger)
		if err != nil {
			repos.Close()
			return nil, err
		}
		s, p, mode = gc, gc, ModeOffline
		closers = append(closers, gc)
	case config.ModeLocal, "":
		s = sqlstore.New(repos.DB, records.Factory, logger)
	default:
		repos.Close()
		return nil, fmt.Errorf("unknown store mode %q", c.Mode)
	}

	app := newApp(c, s, legacykeys.New(repos.Metadata), logger, os.Stdin, os.Stdout)
	app.pinger = p
	app.mode = mode
	app.closers = closers
	return app, nil
}

// newApp wires the ledger services over s.
func newApp(c *config.Config, s store.Store, legacy *legacykeys.Source, l logging.Logger, in io.Reader, out io.Writer) *App {
	env := cryptox.NewEnvelope(cryptox.StdProvider{}, cryptox.WithLegacyKeySource(legacy))
	cd := codec.New(env, l)

	return &App{
		config:      c,
		logger:      l,
		store:       s,
		envelope:    env,
		codec:       cd,
		coordinator: coordinator.New(s, cd, recurrence.New(), l),
		migrator:    migration.New(s, env, l),
		pipeline:    watch.New(cd, c.DecodeConcurrency, l),
		legacy:      legacy,
		mode:        ModeLocal,
		reader:      bufio.NewReader(in),
		out:         out,
	}
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.logger.Info(ctx, "Switched mode", "mode", mode)
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx)
}

func (a *App) Close() {
	if a.ownerID != "" {
		a.envelope.Forget(a.ownerID)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.ownerID != ""
}

// StartOnlineStatusWatcher pings the store server every interval and flips
// between online and offline mode. It does nothing for a local store.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if a.pinger == nil || interval <= 0 {
		return
	}

	check := func() {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := a.pinger.Ping(pctx)
		cancel()

		if err != nil {
			a.setMode(ctx, ModeOffline)
		} else {
			a.setMode(ctx, ModeOnline)
		}
	}

	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			check()
		case <-ctx.Done():
			return
		}
	}
}
