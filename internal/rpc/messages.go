package rpc

import (
	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/dmitrijs2005/gophledger/internal/store"
)

type GetRequest struct {
	OwnerID string `json:"ownerId"`
	ID      string `json:"id"`
}

type GetResponse struct {
	Record *models.Record `json:"record"`
}

type ListRequest struct {
	Query store.Query `json:"query"`
}

type ListResponse struct {
	Records []*models.Record `json:"records"`
}

// CommitRequest is a store.Batch on the wire; it is applied atomically.
type CommitRequest struct {
	OwnerID string           `json:"ownerId"`
	Puts    []*models.Record `json:"puts,omitempty"`
	Deletes []string         `json:"deletes,omitempty"`
}

// Batch rebuilds the store batch carried by the request.
func (r *CommitRequest) Batch() *store.Batch {
	return &store.Batch{Puts: r.Puts, Deletes: r.Deletes}
}

type CommitResponse struct {
	Applied int `json:"applied"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type WatchRequest struct {
	Query store.Query `json:"query"`
}

// Snapshot is the complete result set of a watched query at one point in time.
type Snapshot struct {
	Records []*models.Record `json:"records"`
}
