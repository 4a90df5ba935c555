// Package store defines the contract ledger records are persisted through:
// per-owner collections, ordered range queries, group filters, atomic
// batches and change subscriptions that deliver full result sets.
package store

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/gophledger/internal/datex"
	"github.com/dmitrijs2005/gophledger/internal/models"
)

// OrderField selects the date a query is ranged and ordered by.
type OrderField string

const (
	OrderByDate    OrderField = "date"
	OrderByDueDate OrderField = "dueDate"
)

// Query selects records of one owner.
type Query struct {
	OwnerID string
	// GroupID, when set, keeps only members of that installment group.
	GroupID string
	// OrderBy defaults to OrderByDate.
	OrderBy OrderField
	// From and To bound OrderBy inclusively; a zero date leaves that side open.
	From datex.Date
	To   datex.Date
}

// Field returns the effective ordering field.
func (q Query) Field() OrderField {
	if q.OrderBy == OrderByDueDate {
		return OrderByDueDate
	}
	return OrderByDate
}

func (q Query) key(r *models.Record) datex.Date {
	if q.Field() == OrderByDueDate {
		return r.DueDate
	}
	return r.Date
}

// Match reports whether r is selected by q.
func (q Query) Match(r *models.Record) bool {
	if r.OwnerID != q.OwnerID {
		return false
	}
	if q.GroupID != "" && r.GroupID != q.GroupID {
		return false
	}
	k := q.key(r)
	if !q.From.IsZero() && k.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && k.After(q.To) {
		return false
	}
	return true
}

// Sort orders rs by the query field, then by creation time and id so the
// order is stable across backends.
func (q Query) Sort(rs []*models.Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		if c := q.key(rs[i]).Compare(q.key(rs[j])); c != 0 {
			return c < 0
		}
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}

// Batch is a set of writes applied all together or not at all.
type Batch struct {
	Puts    []*models.Record
	Deletes []string
}

// Put stages an insert or full replacement of r.
func (b *Batch) Put(r *models.Record) { b.Puts = append(b.Puts, r) }

// Delete stages removal of the record with id. Deleting a missing record is
// not an error.
func (b *Batch) Delete(id string) { b.Deletes = append(b.Deletes, id) }

// Len returns the number of staged writes.
func (b *Batch) Len() int { return len(b.Puts) + len(b.Deletes) }

// Store persists ledger records. Implementations treat record contents as
// opaque: sensitive fields arrive already encrypted.
type Store interface {
	// Get returns common.ErrorNotFound when the record does not exist.
	Get(ctx context.Context, ownerID, id string) (*models.Record, error)
	List(ctx context.Context, q Query) ([]*models.Record, error)
	// Commit applies b atomically. Records without CreatedAt get the store's
	// current time.
	Commit(ctx context.Context, ownerID string, b *Batch) error
	// Subscribe delivers the full result set of q, then again after every
	// commit for the owner, until ctx is done.
	Subscribe(ctx context.Context, q Query) (<-chan []*models.Record, error)
}
