package watch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophledger/internal/cryptox"
	"github.com/dmitrijs2005/gophledger/internal/datex"
	"github.com/dmitrijs2005/gophledger/internal/ledger/codec"
	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/dmitrijs2005/gophledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowDecoder finishes later records first and tracks peak concurrency.
type slowDecoder struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (d *slowDecoder) FromStorage(_ context.Context, r *models.Record) models.Entry {
	n := d.active.Add(1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer d.active.Add(-1)

	var idx int
	_, _ = fmt.Sscanf(r.ID, "r%d", &idx)
	time.Sleep(time.Duration(20-idx) * time.Millisecond)
	return models.Entry{ID: r.ID}
}

func records(n int) []*models.Record {
	rs := make([]*models.Record, n)
	for i := range rs {
		rs[i] = &models.Record{ID: fmt.Sprintf("r%d", i)}
	}
	return rs
}

func TestDecode_PreservesOrderWithBoundedConcurrency(t *testing.T) {
	d := &slowDecoder{}
	p := New(d, 3, logging.Nop())

	got, err := p.Decode(context.Background(), records(12))
	require.NoError(t, err)
	require.Len(t, got, 12)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("r%d", i), e.ID)
	}
	assert.LessOrEqual(t, d.peak.Load(), int32(3))
}

func TestDecode_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&slowDecoder{}, 2, logging.Nop()).Decode(ctx, records(3))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_OneEmissionPerSnapshot(t *testing.T) {
	p := New(&slowDecoder{}, 4, logging.Nop())
	in := make(chan []*models.Record)
	out := p.Run(context.Background(), in)

	go func() {
		in <- records(5)
		in <- records(2)
		close(in)
	}()

	first := <-out
	second := <-out
	_, open := <-out

	assert.Len(t, first, 5)
	assert.Len(t, second, 2)
	assert.False(t, open)
}

func TestWatch_DecodesLiveStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := cryptox.NewEnvelope(cryptox.StdProvider{})
	c := codec.New(env, logging.Nop())
	s := store.NewMemory(logging.Nop())
	p := New(c, 2, logging.Nop())

	out, err := p.Watch(ctx, s, store.Query{OwnerID: "o1", OrderBy: store.OrderByDueDate})
	require.NoError(t, err)
	assert.Empty(t, <-out)

	b := &store.Batch{}
	for i, due := range []string{"2025-03-01", "2025-01-01", "2025-02-01"} {
		e := &models.Entry{
			ID: fmt.Sprintf("e%d", i), OwnerID: "o1", Description: "item " + due,
			Amount: decimal.NewFromInt(int64(i + 1)), Kind: models.KindExpense, Status: models.StatusPending,
			Date: datex.MustParse("2025-01-01"), DueDate: datex.MustParse(due),
		}
		b.Put(c.ToStorage(ctx, e))
	}
	require.NoError(t, s.Commit(ctx, "o1", b))

	select {
	case got := <-out:
		require.Len(t, got, 3)
		assert.Equal(t, "item 2025-01-01", got[0].Description)
		assert.Equal(t, "item 2025-02-01", got[1].Description)
		assert.Equal(t, "item 2025-03-01", got[2].Description)
	case <-time.After(2 * time.Second):
		t.Fatal("no decoded snapshot")
	}
}
