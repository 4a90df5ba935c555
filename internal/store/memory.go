package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophledger/internal/common"
	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/models"
)

// Memory is an in-process Store. Records are copied on the way in and out.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string]*models.Record
	hub     *Hub
	logger  logging.Logger
	now     func() time.Time
}

func NewMemory(logger logging.Logger) *Memory {
	return &Memory{
		records: make(map[string]map[string]*models.Record),
		hub:     NewHub(),
		logger:  logger.With("module", "memstore"),
		now:     time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, ownerID, id string) (*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[ownerID][id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.Clone(), nil
}

func (m *Memory) List(ctx context.Context, q Query) ([]*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Record
	for _, r := range m.records[q.OwnerID] {
		if q.Match(r) {
			out = append(out, r.Clone())
		}
	}
	q.Sort(out)
	return out, nil
}

func (m *Memory) Commit(ctx context.Context, ownerID string, b *Batch) error {
	if err := ValidateBatch(ownerID, b); err != nil {
		return err
	}
	if b.Len() == 0 {
		return nil
	}

	m.mu.Lock()
	owned := m.records[ownerID]
	if owned == nil {
		owned = make(map[string]*models.Record)
		m.records[ownerID] = owned
	}
	now := m.now().UTC()
	for _, r := range b.Puts {
		c := r.Clone()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		owned[c.ID] = c
	}
	for _, id := range b.Deletes {
		delete(owned, id)
	}
	m.mu.Unlock()

	m.hub.Notify(ownerID)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, q Query) (<-chan []*models.Record, error) {
	return m.hub.Watch(ctx, q, m.List, m.logger)
}

// ValidateBatch is the check every Store runs before applying b.
func ValidateBatch(ownerID string, b *Batch) error {
	if ownerID == "" {
		return fmt.Errorf("empty owner id: %w", common.ErrorInvalidArgument)
	}
	if b == nil {
		return fmt.Errorf("nil batch: %w", common.ErrorInvalidArgument)
	}
	for _, r := range b.Puts {
		if r.ID == "" {
			return fmt.Errorf("record without id: %w", common.ErrorInvalidArgument)
		}
		if r.OwnerID != ownerID {
			return fmt.Errorf("record %s belongs to another owner: %w", r.ID, common.ErrorInvalidArgument)
		}
	}
	return nil
}
