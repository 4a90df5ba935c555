package store

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophledger/internal/common"
	"github.com/dmitrijs2005/gophledger/internal/datex"
	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, owner, group, date, due string) *models.Record {
	return &models.Record{
		ID: id, OwnerID: owner, GroupID: group,
		Description: "d-" + id, Amount: "1",
		Type: models.KindExpense, Status: models.StatusPending,
		Date: datex.MustParse(date), DueDate: datex.MustParse(due),
	}
}

func ids(rs []*models.Record) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func seed(t *testing.T, m *Memory) {
	t.Helper()
	b := &Batch{}
	b.Put(rec("a", "o1", "g1", "2025-01-10", "2025-03-05"))
	b.Put(rec("b", "o1", "g1", "2025-01-10", "2025-02-05"))
	b.Put(rec("c", "o1", "", "2025-01-05", "2025-01-05"))
	b.Put(rec("x", "o2", "", "2025-01-01", "2025-01-01"))
	require.NoError(t, m.Commit(context.Background(), "o1", &Batch{Puts: b.Puts[:3]}))
	require.NoError(t, m.Commit(context.Background(), "o2", &Batch{Puts: b.Puts[3:]}))
}

func TestMemory_GetAndNotFound(t *testing.T) {
	m := NewMemory(logging.Nop())
	seed(t, m)
	ctx := context.Background()

	r, err := m.Get(ctx, "o1", "a")
	require.NoError(t, err)
	assert.Equal(t, "d-a", r.Description)
	assert.False(t, r.CreatedAt.IsZero())

	_, err = m.Get(ctx, "o2", "a")
	require.ErrorIs(t, err, common.ErrorNotFound)

	// returned records are copies
	r.Description = "changed"
	again, err := m.Get(ctx, "o1", "a")
	require.NoError(t, err)
	assert.Equal(t, "d-a", again.Description)
}

func TestMemory_ListQueries(t *testing.T) {
	m := NewMemory(logging.Nop())
	seed(t, m)
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"by date", Query{OwnerID: "o1"}, []string{"c", "a", "b"}},
		{"by due date", Query{OwnerID: "o1", OrderBy: OrderByDueDate}, []string{"c", "b", "a"}},
		{"group filter", Query{OwnerID: "o1", GroupID: "g1", OrderBy: OrderByDueDate}, []string{"b", "a"}},
		{"range inclusive", Query{OwnerID: "o1", OrderBy: OrderByDueDate, From: datex.MustParse("2025-02-05"), To: datex.MustParse("2025-03-05")}, []string{"b", "a"}},
		{"open start", Query{OwnerID: "o1", OrderBy: OrderByDueDate, To: datex.MustParse("2025-02-04")}, []string{"c"}},
		{"other owner", Query{OwnerID: "o2"}, []string{"x"}},
		{"unknown owner", Query{OwnerID: "nobody"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.List(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestMemory_CommitIsAllOrNothing(t *testing.T) {
	m := NewMemory(logging.Nop())
	seed(t, m)
	ctx := context.Background()

	b := &Batch{}
	b.Put(rec("new", "o1", "", "2025-05-01", "2025-05-01"))
	b.Put(rec("stolen", "o2", "", "2025-05-01", "2025-05-01"))
	b.Delete("a")

	err := m.Commit(ctx, "o1", b)
	require.ErrorIs(t, err, common.ErrorInvalidArgument)

	all, err := m.List(ctx, Query{OwnerID: "o1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(all))
}

func TestMemory_CommitDeletesAndReplaces(t *testing.T) {
	m := NewMemory(logging.Nop())
	seed(t, m)
	ctx := context.Background()

	orig, err := m.Get(ctx, "o1", "c")
	require.NoError(t, err)

	upd := orig.Clone()
	upd.Status = models.StatusPaid
	b := &Batch{}
	b.Put(upd)
	b.Delete("a")
	b.Delete("missing")
	require.NoError(t, m.Commit(ctx, "o1", b))

	got, err := m.Get(ctx, "o1", "c")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, got.Status)
	assert.Equal(t, orig.CreatedAt, got.CreatedAt)

	_, err = m.Get(ctx, "o1", "a")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemory_SubscribeSnapshotThenChanges(t *testing.T) {
	m := NewMemory(logging.Nop())
	seed(t, m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := m.Subscribe(ctx, Query{OwnerID: "o1", GroupID: "g1", OrderBy: OrderByDueDate})
	require.NoError(t, err)

	first := recv(t, ch)
	assert.Equal(t, []string{"b", "a"}, ids(first))

	b := &Batch{}
	b.Delete("a")
	require.NoError(t, m.Commit(context.Background(), "o1", b))

	second := recv(t, ch)
	assert.Equal(t, []string{"b"}, ids(second))

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, m.hub.Subscribers("o1"))
}

func recv(t *testing.T, ch <-chan []*models.Record) []*models.Record {
	t.Helper()
	select {
	case rs, ok := <-ch:
		require.True(t, ok, "channel closed")
		return rs
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for snapshot")
		return nil
	}
}

func TestHub_NotifyCoalesces(t *testing.T) {
	h := NewHub()
	ch, cancel := h.register("o1")
	defer cancel()

	h.Notify("o1")
	h.Notify("o1")
	h.Notify("o2")

	assert.Len(t, ch, 1)
	assert.Equal(t, 1, h.Subscribers("o1"))
	assert.Equal(t, 0, h.Subscribers("o2"))
}
