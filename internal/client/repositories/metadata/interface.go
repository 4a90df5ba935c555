// Package metadata stores small client-local settings as key/value pairs in
// the SQLite database, next to the records table.
package metadata

import (
	"context"
)

// Repository is a key/value table. Get reports a missing key as
// common.ErrorNotFound; Delete of a missing key succeeds.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
