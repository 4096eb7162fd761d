// Package secure implements reversible per-field encryption of personal data.
//
// Ciphertexts carry the "enc:" tag so that values can be encrypted repeatedly
// without double encryption, and so that legacy plaintext rows are recognized
// and passed through on read.
package secure

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/25x8/velorent/internal/velorent/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
)

// Prefix tags every ciphertext produced by Cipher
const Prefix = "enc:"

// ErrInvalidKey is returned for keys that are not base64 encoded 32 bytes
var ErrInvalidKey = errors.New("invalid ENCRYPTION_KEY provided")

// Cipher encrypts field values with XChaCha20-Poly1305. It is safe for concurrent use.
type Cipher struct {
	aead   cipher.AEAD
	logger *zap.Logger
}

// NewCipher builds a cipher from a base64 (std or url) encoded 32-byte key
func NewCipher(key string, logger *zap.Logger) (*Cipher, error) {
	raw, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cipher{aead: aead, logger: logger}, nil
}

// GenerateKey returns a fresh random key in the format NewCipher accepts
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(key), nil
}

func decodeKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidKey
	}
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.StdEncoding, base64.RawURLEncoding, base64.RawStdEncoding} {
		raw, err := enc.DecodeString(key)
		if err == nil && len(raw) == chacha20poly1305.KeySize {
			return raw, nil
		}
	}
	return nil, ErrInvalidKey
}

// IsEncrypted reports whether value carries the ciphertext tag
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Encrypt returns the tagged ciphertext of value. Tagged input is returned unchanged.
func (c *Cipher) Encrypt(value string) (string, error) {
	if IsEncrypted(value) {
		return value, nil
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(value)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(value), nil)
	return Prefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt returns the plaintext of a tagged value. Untagged values and tokens that
// fail to decrypt are returned unchanged so that no data is lost.
func (c *Cipher) Decrypt(value string) string {
	if !IsEncrypted(value) {
		return value
	}
	sealed, err := base64.RawURLEncoding.DecodeString(value[len(Prefix):])
	if err != nil || len(sealed) < c.aead.NonceSize() {
		c.logger.Warn("failed to decode encrypted value, returning raw string")
		return value
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		c.logger.Warn("failed to decrypt value, returning raw string")
		return value
	}
	return string(plain)
}

// EncryptPtr encrypts an optional value; nil stays nil
func (c *Cipher) EncryptPtr(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	token, err := c.Encrypt(*value)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// DecryptPtr decrypts an optional value; nil stays nil
func (c *Cipher) DecryptPtr(value *string) *string {
	if value == nil {
		return nil
	}
	plain := c.Decrypt(*value)
	return &plain
}

// DecryptDigits decrypts a numeric-semantic field and normalizes it to its digits.
// Values with non-digit content after normalization yield nil.
func (c *Cipher) DecryptDigits(value *string) *string {
	plain := c.DecryptPtr(value)
	if plain == nil {
		return nil
	}
	digits, ok := utils.NormalizeDigits(*plain)
	if !ok {
		return nil
	}
	return &digits
}
