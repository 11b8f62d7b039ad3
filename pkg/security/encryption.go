package security

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrInvalidKeySize = errors.New("invalid key size")
	ErrEncryption     = errors.New("encryption failed")
	ErrDecryption     = errors.New("decryption failed")
)

// Encryptor provides a generic interface for encryption/decryption
type Encryptor interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// NewSealer creates an XChaCha20-Poly1305 encryptor. The key must be 32 bytes.
// Output is nonce || ciphertext.
func NewSealer(key []byte) (Encryptor, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}
	return &sealer{aead: aead}, nil
}

type sealer struct {
	aead cipher.AEAD
}

func (s *sealer) Encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, ErrEncryption
	}
	return s.aead.Seal(nonce, nonce, data, nil), nil
}

func (s *sealer) Decrypt(data []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrDecryption
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// NopEncryptor stores payloads as-is. Used when no sealing key is configured.
type NopEncryptor struct{}

func (NopEncryptor) Encrypt(data []byte) ([]byte, error) { return data, nil }
func (NopEncryptor) Decrypt(data []byte) ([]byte, error) { return data, nil }
