package cryptox

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophledger/internal/common"
)

// Key derivation parameters. Changing any of them makes every existing
// ciphertext unreadable, so they are fixed for the lifetime of the scheme.
const (
	kdfSalt        = "gophledger.v1.field-kdf"
	kdfIterations  = 100_000
	KeySize        = 32
	NonceSize      = 12
	fingerprintLen = 16
	separator      = ":"
)

// ErrMalformedEnvelope is returned when a stored value is not in the
// base64(nonce):base64(ciphertext) form.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// LegacyKeySource yields the device-local key used before deterministic
// derivation existed. A missing key is reported as common.ErrorNotFound.
type LegacyKeySource interface {
	LegacyKey(ctx context.Context, ownerID string) ([]byte, error)
}

// Envelope encrypts and decrypts individual field values for an owner.
// It is safe for concurrent use. Derived keys are cached per owner id.
type Envelope struct {
	provider Provider
	legacy   LegacyKeySource

	mu   sync.RWMutex
	keys map[string][]byte
}

// Option configures an Envelope.
type Option func(*Envelope)

// WithLegacyKeySource enables LegacyDecrypt.
func WithLegacyKeySource(src LegacyKeySource) Option {
	return func(e *Envelope) { e.legacy = src }
}

// NewEnvelope returns an Envelope backed by p.
func NewEnvelope(p Provider, opts ...Option) *Envelope {
	e := &Envelope{provider: p, keys: make(map[string][]byte)}
	for _, o := range opts {
		o(e)
	}
	return e
}

// DeriveKey returns the deterministic key for ownerID. Two calls for the same
// owner, in any process, yield the same bytes.
func (e *Envelope) DeriveKey(ownerID string) ([]byte, error) {
	return e.key(ownerID)
}

// key returns a private copy of the owner's key, taken under the lock so a
// concurrent Forget cannot wipe it mid-use. The caller wipes the copy.
func (e *Envelope) key(ownerID string) ([]byte, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("empty owner id: %w", common.ErrorInvalidArgument)
	}

	e.mu.RLock()
	key, ok := e.keys[ownerID]
	if ok {
		key = cloneKey(key)
	}
	e.mu.RUnlock()
	if ok {
		return key, nil
	}

	derived, err := e.provider.DeriveKey([]byte(ownerID), []byte(kdfSalt), kdfIterations, KeySize)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.keys[ownerID]; ok {
		common.WipeByteArray(derived)
		return cloneKey(cached), nil
	}
	e.keys[ownerID] = derived
	return cloneKey(derived), nil
}

func cloneKey(k []byte) []byte {
	out := make([]byte, len(k))
	copy(out, k)
	return out
}

// Forget drops and wipes the cached key of ownerID.
func (e *Envelope) Forget(ownerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if key, ok := e.keys[ownerID]; ok {
		common.WipeByteArray(key)
		delete(e.keys, ownerID)
	}
}

// EncryptField seals plaintext under the owner's key with a fresh random
// nonce and returns base64(nonce) + ":" + base64(ciphertext||tag).
func (e *Envelope) EncryptField(plaintext, ownerID string) (string, error) {
	key, err := e.key(ownerID)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	nonce, err := e.provider.Random(NonceSize)
	if err != nil {
		return "", fmt.Errorf("nonce generation failed: %w", err)
	}

	ct, err := e.provider.Seal(key, nonce, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}

	return base64.StdEncoding.EncodeToString(nonce) + separator + base64.StdEncoding.EncodeToString(ct), nil
}

// DecryptField opens an envelope produced by EncryptField. It never fails:
// when the envelope is malformed, sealed under another key or tampered with,
// the input is returned unchanged so callers can detect unreadable values by
// comparing output to input.
func (e *Envelope) DecryptField(envelope, ownerID string) string {
	key, err := e.key(ownerID)
	if err != nil {
		return envelope
	}
	defer common.WipeByteArray(key)
	plaintext, err := e.open(key, envelope)
	if err != nil {
		return envelope
	}
	return plaintext
}

// LegacyDecrypt tries the owner's legacy device key. It reports false when no
// legacy source is configured, no key exists or the value does not open.
func (e *Envelope) LegacyDecrypt(ctx context.Context, envelope, ownerID string) (string, bool) {
	if e.legacy == nil {
		return "", false
	}
	key, err := e.legacy.LegacyKey(ctx, ownerID)
	if err != nil || len(key) == 0 {
		return "", false
	}
	plaintext, err := e.open(key, envelope)
	if err != nil {
		return "", false
	}
	return plaintext, true
}

// Fingerprint returns a short hex digest of the derived key for display.
// The digest is truncated and one-way, so it reveals nothing usable about
// the key.
func (e *Envelope) Fingerprint(ownerID string) (string, error) {
	key, err := e.key(ownerID)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	digest := hex.EncodeToString(e.provider.Hash(key))
	if len(digest) < fingerprintLen {
		return "", fmt.Errorf("digest of %d bytes is too short for a fingerprint", len(digest)/2)
	}
	return digest[:fingerprintLen], nil
}

func (e *Envelope) open(key []byte, envelope string) (string, error) {
	nonce, ct, err := parseEnvelope(envelope)
	if err != nil {
		return "", err
	}
	plaintext, err := e.provider.Open(key, nonce, ct)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func parseEnvelope(s string) (nonce, ciphertext []byte, err error) {
	parts := strings.Split(s, separator)
	if len(parts) != 2 {
		return nil, nil, ErrMalformedEnvelope
	}
	nonce, err = base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(nonce) != NonceSize {
		return nil, nil, ErrMalformedEnvelope
	}
	ciphertext, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(ciphertext) == 0 {
		return nil, nil, ErrMalformedEnvelope
	}
	return nonce, ciphertext, nil
}

// IsEnvelope reports whether s is shaped like an encrypted value. It does
// not check that s opens under any key.
func IsEnvelope(s string) bool {
	_, _, err := parseEnvelope(s)
	return err == nil
}
