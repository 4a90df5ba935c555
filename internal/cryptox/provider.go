// Package cryptox implements field-level envelope encryption for ledger
// entries: deterministic per-owner key derivation, AES-256-GCM sealing of
// individual string fields, a legacy-key fallback path and key fingerprints.
//
// Platform primitives sit behind the Provider interface so the envelope logic
// can be exercised with fakes.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// Provider is the set of cryptographic primitives the envelope needs.
type Provider interface {
	// DeriveKey runs a password-based KDF over secret and salt.
	DeriveKey(secret, salt []byte, iterations, keyLen int) ([]byte, error)
	// Seal encrypts plaintext with an AEAD cipher; the result carries the tag.
	Seal(key, nonce, plaintext []byte) ([]byte, error)
	// Open reverses Seal and authenticates the ciphertext.
	Open(key, nonce, ciphertext []byte) ([]byte, error)
	// Hash returns a digest of data.
	Hash(data []byte) []byte
	// Random returns n cryptographically secure random bytes.
	Random(n int) ([]byte, error)
}

// StdProvider implements Provider with PBKDF2-HMAC-SHA256 and AES-GCM.
type StdProvider struct{}

func (StdProvider) DeriveKey(secret, salt []byte, iterations, keyLen int) ([]byte, error) {
	return pbkdf2.Key(secret, salt, iterations, keyLen, sha256.New), nil
}

func (StdProvider) Seal(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func (StdProvider) Open(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}

func (StdProvider) Hash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func (StdProvider) Random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
