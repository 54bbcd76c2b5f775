package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	tokenKeySize = 32 // AES-256
	tokenPrefix  = "v1:"
	hkdfInfo     = "finance-chat/broker-token"
)

// ErrMalformedCiphertext is returned for values not produced by EncryptToken
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Encryptor seals broker access tokens at rest with AES-256-GCM
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates a new encryptor from a 32-byte key
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != tokenKeySize {
		return nil, fmt.Errorf("invalid key length: %d (must be %d)", len(key), tokenKeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: gcm}, nil
}

// NewEncryptorFromSecret accepts either a base64-encoded 32-byte key or an
// arbitrary passphrase, which is stretched to a key with HKDF-SHA256.
func NewEncryptorFromSecret(secret string) (*Encryptor, error) {
	if secret == "" {
		return nil, errors.New("encryption key is empty")
	}

	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) == tokenKeySize {
		return NewEncryptor(raw)
	}

	key := make([]byte, tokenKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return NewEncryptor(key)
}

// GenerateKey returns a random base64-encoded key for NewEncryptorFromSecret
func GenerateKey() (string, error) {
	key := make([]byte, tokenKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// EncryptToken seals plaintext into "v1:" + base64(nonce || ciphertext || tag)
func (e *Encryptor) EncryptToken(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return tokenPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptToken opens a value produced by EncryptToken
func (e *Encryptor) DecryptToken(ciphertext string) (string, error) {
	encoded, ok := strings.CutPrefix(ciphertext, tokenPrefix)
	if !ok {
		return "", ErrMalformedCiphertext
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	nonceSize := e.aead.NonceSize()
	if len(sealed) < nonceSize+e.aead.Overhead() {
		return "", ErrMalformedCiphertext
	}

	plaintext, err := e.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}
