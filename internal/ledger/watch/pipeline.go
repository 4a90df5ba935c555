// Package watch turns store snapshots into decoded entry lists. Each
// snapshot is decoded with bounded concurrency and emitted once, in the
// order the store returned it.
package watch

import (
	"context"

	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/dmitrijs2005/gophledger/internal/store"
	"golang.org/x/sync/errgroup"
)

// Decoder opens stored records; codec.Codec implements it.
type Decoder interface {
	FromStorage(ctx context.Context, r *models.Record) models.Entry
}

type Pipeline struct {
	decoder Decoder
	limit   int
	logger  logging.Logger
}

// New returns a pipeline running at most limit decodes at once.
func New(d Decoder, limit int, l logging.Logger) *Pipeline {
	if limit < 1 {
		limit = 1
	}
	return &Pipeline{decoder: d, limit: limit, logger: l.With("module", "watch")}
}

// Decode opens rs concurrently. The result has the same order as rs.
func (p *Pipeline) Decode(ctx context.Context, rs []*models.Record) ([]models.Entry, error) {
	out := make([]models.Entry, len(rs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)
	for i, r := range rs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = p.decoder.FromStorage(gctx, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Run decodes every snapshot received on in. The returned channel is closed
// when in is closed or ctx is done.
func (p *Pipeline) Run(ctx context.Context, in <-chan []*models.Record) <-chan []models.Entry {
	out := make(chan []models.Entry)
	go func() {
		defer close(out)
		for {
			var snapshot []*models.Record
			select {
			case <-ctx.Done():
				return
			case s, ok := <-in:
				if !ok {
					return
				}
				snapshot = s
			}

			entries, err := p.Decode(ctx, snapshot)
			if err != nil {
				return
			}
			p.logger.Debug(ctx, "snapshot decoded", "entries", len(entries))

			select {
			case out <- entries:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Watch subscribes to q on s and decodes every snapshot it delivers.
func (p *Pipeline) Watch(ctx context.Context, s store.Store, q store.Query) (<-chan []models.Entry, error) {
	in, err := s.Subscribe(ctx, q)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, in), nil
}
