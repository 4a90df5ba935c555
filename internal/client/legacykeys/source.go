// Package legacykeys keeps device-local keys from before deterministic key
// derivation in the client metadata table, so old ciphertext can still be
// opened during migration.
package legacykeys

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophledger/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophledger/internal/common"
	"github.com/dmitrijs2005/gophledger/internal/cryptox"
)

const keyPrefix = "legacy_key:"

// Source implements cryptox.LegacyKeySource over metadata.Repository.
type Source struct {
	repo metadata.Repository
}

func New(repo metadata.Repository) *Source {
	return &Source{repo: repo}
}

func metadataKey(ownerID string) string { return keyPrefix + ownerID }

// LegacyKey returns the stored key of ownerID. Values are kept base64
// encoded; raw bytes of the right length written by older clients are
// accepted as is.
func (s *Source) LegacyKey(ctx context.Context, ownerID string) ([]byte, error) {
	v, err := s.repo.Get(ctx, metadataKey(ownerID))
	if err != nil {
		return nil, err
	}

	if decoded, err := base64.StdEncoding.DecodeString(string(v)); err == nil && len(decoded) == cryptox.KeySize {
		return decoded, nil
	}
	if len(v) == cryptox.KeySize {
		return v, nil
	}

	return nil, fmt.Errorf("stored legacy key has %d bytes: %w", len(v), common.ErrorInvalidArgument)
}

// Import stores a base64 encoded key for ownerID, replacing any previous one.
func (s *Source) Import(ctx context.Context, ownerID, encoded string) error {
	if ownerID == "" {
		return fmt.Errorf("empty owner id: %w", common.ErrorInvalidArgument)
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return fmt.Errorf("legacy key is not base64: %w", common.ErrorInvalidArgument)
	}
	if len(key) != cryptox.KeySize {
		return fmt.Errorf("legacy key must be %d bytes, got %d: %w", cryptox.KeySize, len(key), common.ErrorInvalidArgument)
	}

	return s.repo.Set(ctx, metadataKey(ownerID), []byte(base64.StdEncoding.EncodeToString(key)))
}

// Forget removes the key of ownerID. Removing a missing key is not an error.
func (s *Source) Forget(ctx context.Context, ownerID string) error {
	return s.repo.Delete(ctx, metadataKey(ownerID))
}
