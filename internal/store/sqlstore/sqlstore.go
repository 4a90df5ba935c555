// Package sqlstore implements store.Store over a database/sql backend.
// Backends differ only in the records repository they vend; batches run
// inside one transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophledger/internal/dbx"
	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/dmitrijs2005/gophledger/internal/store"
)

// Repository is the per-backend record table access, bound to a DBTX.
type Repository interface {
	// Get returns common.ErrorNotFound when no row matches.
	Get(ctx context.Context, ownerID, id string) (*models.Record, error)
	List(ctx context.Context, q store.Query) ([]*models.Record, error)
	Upsert(ctx context.Context, r *models.Record) error
	Delete(ctx context.Context, ownerID, id string) error
}

// RepositoryFactory binds a Repository to a connection or transaction.
type RepositoryFactory func(db dbx.DBTX) Repository

// Store is a store.Store backed by a SQL database.
type Store struct {
	db     *sql.DB
	repo   RepositoryFactory
	hub    *store.Hub
	logger logging.Logger
	now    func() time.Time
}

func New(db *sql.DB, repo RepositoryFactory, logger logging.Logger) *Store {
	return &Store{
		db:     db,
		repo:   repo,
		hub:    store.NewHub(),
		logger: logger.With("module", "sqlstore"),
		now:    time.Now,
	}
}

func (s *Store) Get(ctx context.Context, ownerID, id string) (*models.Record, error) {
	return s.repo(s.db).Get(ctx, ownerID, id)
}

func (s *Store) List(ctx context.Context, q store.Query) ([]*models.Record, error) {
	return s.repo(s.db).List(ctx, q)
}

// Commit writes b in a single transaction and then wakes subscriptions.
func (s *Store) Commit(ctx context.Context, ownerID string, b *store.Batch) error {
	if err := store.ValidateBatch(ownerID, b); err != nil {
		return err
	}
	if b.Len() == 0 {
		return nil
	}

	now := s.now().UTC()
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		for _, r := range b.Puts {
			c := r.Clone()
			if c.CreatedAt.IsZero() {
				c.CreatedAt = now
			}
			if err := repo.Upsert(ctx, c); err != nil {
				return fmt.Errorf("put %s: %w", c.ID, err)
			}
		}
		for _, id := range b.Deletes {
			if err := repo.Delete(ctx, ownerID, id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "batch commit failed", "owner", ownerID, "writes", b.Len(), "error", err)
		return err
	}

	s.hub.Notify(ownerID)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q store.Query) (<-chan []*models.Record, error) {
	return s.hub.Watch(ctx, q, s.List, s.logger)
}

