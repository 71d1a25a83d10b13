// Package security seals submitted analysis text before it is stored.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Sealer encrypts a value bound to an owner id (the job id), so a sealed
// value copied to another row fails to open.
type Sealer interface {
	Seal(ownerID, plaintext string) (string, error)
	Open(ownerID, sealed string) (string, error)
}

var (
	_ Sealer = (*AESSealer)(nil)
	_ Sealer = PlainSealer{}
)

var ErrSealedTooShort = errors.New("sealed value too short")

// AESSealer uses AES-GCM with a random nonce per value and the owner id as
// additional data. Output format: base64(nonce || ciphertext).
type AESSealer struct {
	gcm cipher.AEAD
}

// NewAESSealer requires a 16, 24 or 32 byte key (AES-128/192/256).
func NewAESSealer(key string) (*AESSealer, error) {
	k := []byte(key)
	if n := len(k); n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &AESSealer{gcm: gcm}, nil
}

func (s *AESSealer) Seal(ownerID, plaintext string) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := s.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(ownerID))
	return base64.StdEncoding.EncodeToString(ct), nil
}

func (s *AESSealer) Open(ownerID, sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := s.gcm.NonceSize()
	if len(data) < ns {
		return "", ErrSealedTooShort
	}
	pt, err := s.gcm.Open(nil, data[:ns], data[ns:], []byte(ownerID))
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}

// PlainSealer stores text as is. Used when no encryption key is configured.
type PlainSealer struct{}

func (PlainSealer) Seal(_, plaintext string) (string, error) { return plaintext, nil }

func (PlainSealer) Open(_, sealed string) (string, error) { return sealed, nil }
