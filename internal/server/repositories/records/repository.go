package records

import (
	"context"

	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/dmitrijs2005/gophledger/internal/store/sqlstore"
)

// Repository is the server record table: the store contract plus a full
// scan for backups.
type Repository interface {
	sqlstore.Repository
	ListAll(ctx context.Context, fn func(*models.Record) error) error
}
