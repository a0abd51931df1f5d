package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrStoreCorrupt means a blob could not be opened or parsed: wrong key,
// tampering, truncation, or a blob moved under another resource id.
var ErrStoreCorrupt = errors.New("vault: stored data is corrupt")

var ErrNoSecret = errors.New("vault: secret is empty")

const sealVersion byte = 1

// Argon2id parameters (RFC 9106 second recommendation, lighter memory).
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// DeriveKey stretches the operator secret into a 256-bit key.
func DeriveKey(secret, salt string) ([]byte, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return argon2.IDKey([]byte(secret), []byte(salt), argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize), nil
}

// Sealer encrypts and authenticates blobs. Layout:
//
//	version(1) | nonce(24) | ciphertext+tag(16)
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(key []byte) (*Sealer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("vault: new cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal binds ad (typically the resource id) to the ciphertext.
func (s *Sealer) Seal(plaintext, ad []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	out := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+s.aead.Overhead())
	out[0] = sealVersion
	if _, err := rand.Read(out[1 : 1+nonceSize]); err != nil {
		return nil, fmt.Errorf("vault: nonce: %w", err)
	}
	return s.aead.Seal(out, out[1:1+nonceSize], plaintext, ad), nil
}

func (s *Sealer) Open(sealed, ad []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < 1+nonceSize+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: truncated (%d bytes)", ErrStoreCorrupt, len(sealed))
	}
	if sealed[0] != sealVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrStoreCorrupt, sealed[0])
	}

	plain, err := s.aead.Open(nil, sealed[1:1+nonceSize], sealed[1+nonceSize:], ad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	return plain, nil
}
