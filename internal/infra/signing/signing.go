// Package signing provides the orchestrator's HMAC authenticity signatures.
// Dispatched units never see the key file, so they cannot forge signatures
// on agent invocation records.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// KeySize is the size of the HMAC-SHA256 key (32 bytes).
const KeySize = 32

// Signer implements domain.Signer with an HMAC-SHA256 key loaded from the
// state directory.
type Signer struct {
	key []byte
}

// GenerateKey creates a new random key file at path with owner-only
// permissions. Fails if the file already exists.
func GenerateKey(path string) error {
	if _, err := os.Stat(path); err == nil {
		return domain.ErrAlreadyInitialized
	}
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("generate signing key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return fmt.Errorf("write signing key: %w", err)
	}
	return nil
}

// Load reads the key file and returns a Signer.
func Load(path string) (*Signer, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNoSigningKey
		}
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	key, err := hex.DecodeString(string(content))
	if err != nil || len(key) != KeySize {
		return nil, domain.ErrNoSigningKey
	}
	return &Signer{key: key}, nil
}

// NewFromKey builds a Signer from a raw key. Used in tests.
func NewFromKey(key []byte) *Signer {
	return &Signer{key: key}
}

// Sign returns the hex-encoded HMAC-SHA256 of the payload.
func (s *Signer) Sign(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature in constant time.
func (s *Signer) Verify(payload, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return hmac.Equal(mac.Sum(nil), expected)
}

var _ domain.Signer = (*Signer)(nil)
