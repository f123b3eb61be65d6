package encrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// Service seals and opens short secrets with AES-GCM. Sealed values are
// base64 of nonce followed by ciphertext.
type Service struct {
	gcm cipher.AEAD
}

var (
	ErrMissingKey       = errors.New("encryption key is missing")
	ErrInvalidKeyLength = errors.New("key must be 16, 24, or 32 bytes")
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidData      = errors.New("invalid encrypted data")
)

// NewService returns a Service for a 16, 24 or 32 byte AES key.
func NewService(key []byte) (*Service, error) {
	switch len(key) {
	case 0:
		return nil, ErrMissingKey
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Service{gcm: gcm}, nil
}

// NewServiceFromEnvKey accepts the key as stored in the environment: base64 of
// 16, 24 or 32 bytes, or the raw key itself.
func NewServiceFromEnvKey(key string) (*Service, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrMissingKey
	}
	if raw, err := base64.StdEncoding.DecodeString(key); err == nil {
		switch len(raw) {
		case 16, 24, 32:
			return NewService(raw)
		}
	}
	return NewService([]byte(key))
}

// Encrypt seals plaintext under a fresh random nonce. An empty plaintext stays empty.
func (s *Service) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrEncryptionFailed
	}

	ciphertext := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt opens a value produced by Encrypt. Malformed input yields ErrInvalidData,
// a wrong key or tampered data yields ErrDecryptionFailed.
func (s *Service) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrInvalidData
	}

	nonceSize := s.gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidData
	}

	nonce, encrypted := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
