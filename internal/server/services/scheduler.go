package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/robfig/cron/v3"
)

// Backuper runs one backup.
type Backuper interface {
	Backup(ctx context.Context) (string, int, error)
}

// Scheduler triggers backups on a cron schedule. Runs never overlap.
type Scheduler struct {
	cron    *cron.Cron
	job     Backuper
	timeout time.Duration
	logger  logging.Logger
}

// NewScheduler parses spec (standard five-field cron syntax) and prepares
// the schedule. Nothing runs until Run is called.
func NewScheduler(spec string, timeout time.Duration, job Backuper, l logging.Logger) (*Scheduler, error) {
	s := &Scheduler{
		job:     job,
		timeout: timeout,
		logger:  l.With("module", "scheduler"),
	}

	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key, n, err := s.job.Backup(ctx)
	if err != nil {
		s.logger.Error(ctx, "Backup failed", "error", err)
		return
	}
	s.logger.Debug(ctx, "Backup finished", "key", key, "records", n)
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// a running backup to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info(ctx, "Starting backup scheduler")
	s.cron.Start()

	<-ctx.Done()

	s.logger.Info(ctx, "Stopping backup scheduler...")
	<-s.cron.Stop().Done()
	return nil
}
