// Package migration re-encrypts an owner's stored records under the current
// deterministic key: values sealed with a legacy device key are opened and
// re-sealed, and plaintext left by earlier fallbacks is sealed.
package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/dmitrijs2005/gophledger/internal/store"
)

// ErrMigrationInProgress is returned when a sweep for the same owner is
// already running in this process.
var ErrMigrationInProgress = errors.New("migration already in progress")

// Cipher is the part of cryptox.Envelope a sweep needs.
type Cipher interface {
	EncryptField(plaintext, ownerID string) (string, error)
	DecryptField(envelope, ownerID string) string
	LegacyDecrypt(ctx context.Context, envelope, ownerID string) (string, bool)
}

type Service struct {
	store  store.Store
	cipher Cipher
	logger logging.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

func New(s store.Store, c Cipher, l logging.Logger) *Service {
	return &Service{
		store:   s,
		cipher:  c,
		logger:  l.With("module", "migration"),
		running: make(map[string]struct{}),
	}
}

func (s *Service) acquire(ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[ownerID]; ok {
		return false
	}
	s.running[ownerID] = struct{}{}
	return true
}

func (s *Service) release(ownerID string) {
	s.mu.Lock()
	delete(s.running, ownerID)
	s.mu.Unlock()
}

// Migrate sweeps every record of ownerID and returns how many were
// rewritten. All rewrites are committed in one batch at the end; any
// failure before that leaves the store untouched. Running it again on
// migrated data rewrites nothing.
func (s *Service) Migrate(ctx context.Context, ownerID string) (int, error) {
	if !s.acquire(ownerID) {
		return 0, ErrMigrationInProgress
	}
	defer s.release(ownerID)

	records, err := s.store.List(ctx, store.Query{OwnerID: ownerID})
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}

	b := &store.Batch{}
	var legacyHits, plaintext int
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		desc, descOK := s.cipher.LegacyDecrypt(ctx, r.Description, ownerID)
		amount, amountOK := s.cipher.LegacyDecrypt(ctx, r.Amount, ownerID)

		switch {
		case descOK || amountOK:
			if !descOK {
				desc = s.current(r, r.Description)
			}
			if !amountOK {
				amount = s.current(r, r.Amount)
			}
			legacyHits++
		case !r.IsEncrypted:
			desc, amount = r.Description, r.Amount
			plaintext++
		default:
			continue
		}

		out, err := s.reseal(r, desc, amount)
		if err != nil {
			return 0, fmt.Errorf("record %s: %w", r.ID, err)
		}
		b.Put(out)
	}

	if b.Len() == 0 {
		s.logger.Debug(ctx, "nothing to migrate", "owner", ownerID, "scanned", len(records))
		return 0, nil
	}

	if err := s.store.Commit(ctx, ownerID, b); err != nil {
		return 0, fmt.Errorf("commit migration: %w", err)
	}

	s.logger.Info(ctx, "migration committed", "owner", ownerID,
		"scanned", len(records), "migrated", b.Len(), "legacy", legacyHits, "plaintext", plaintext)
	return b.Len(), nil
}

// current returns the plaintext of a field that did not open with the
// legacy key. A field already sealed under the current key is opened so
// it is not sealed twice; anything else is taken as stored.
func (s *Service) current(r *models.Record, value string) string {
	if !r.IsEncrypted {
		return value
	}
	return s.cipher.DecryptField(value, r.OwnerID)
}

func (s *Service) reseal(r *models.Record, desc, amount string) (*models.Record, error) {
	sealedDesc, err := s.cipher.EncryptField(desc, r.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("seal description: %w", err)
	}
	sealedAmount, err := s.cipher.EncryptField(amount, r.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("seal amount: %w", err)
	}
	out := r.Clone()
	out.Description = sealedDesc
	out.Amount = sealedAmount
	out.IsEncrypted = true
	return out, nil
}
