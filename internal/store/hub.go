package store

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/models"
)

// Hub fans out per-owner change notifications to subscriptions.
// Notifications coalesce: a slow subscriber sees one pending change, not many.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan struct{}]struct{})}
}

func (h *Hub) register(ownerID string) (chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[chan struct{}]struct{})
	}
	h.subs[ownerID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs[ownerID], ch)
		if len(h.subs[ownerID]) == 0 {
			delete(h.subs, ownerID)
		}
		h.mu.Unlock()
	}
}

// Notify signals every subscription of ownerID.
func (h *Hub) Notify(ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ownerID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions of ownerID.
func (h *Hub) Subscribers(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}

// ListFunc runs a query against a backend.
type ListFunc func(ctx context.Context, q Query) ([]*models.Record, error)

// Watch implements Store.Subscribe on top of a hub and a list function.
// The first snapshot is read before Watch returns, so a failing backend is
// reported to the caller. Later read failures are logged and the
// subscription waits for the next change.
func (h *Hub) Watch(ctx context.Context, q Query, list ListFunc, logger logging.Logger) (<-chan []*models.Record, error) {
	changed, cancel := h.register(q.OwnerID)

	first, err := list(ctx, q)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan []*models.Record)
	go func() {
		defer close(out)
		defer cancel()

		snapshot := first
		for {
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}

			select {
			case <-changed:
			case <-ctx.Done():
				return
			}

			next, err := list(ctx, q)
			for err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn(ctx, "snapshot read failed", "owner", q.OwnerID, "error", err)
				select {
				case <-changed:
				case <-ctx.Done():
					return
				}
				next, err = list(ctx, q)
			}
			snapshot = next
		}
	}()

	return out, nil
}
