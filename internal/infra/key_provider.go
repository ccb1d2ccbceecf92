package infra

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

const (
	storeKeyFileName = ".store.key"
	storeKeySize     = 32 // 256-bit SQLCipher passphrase
)

// FileKeyProvider keeps the encrypted store passphrase base64-encoded in a
// 0600 file in the data directory. Keys are only created by
// OpenEncryptedDocumentStore, which knows whether a database already exists.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider creates a FileKeyProvider for the given data directory.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{keyPath: filepath.Join(dataDir, storeKeyFileName)}
}

// GetKey reads and decodes the passphrase.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	encoded, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read store key: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode store key: %w", err)
	}
	if len(key) != storeKeySize {
		return nil, fmt.Errorf("invalid store key size: got %d, want %d", len(key), storeKeySize)
	}
	return key, nil
}

// StoreKey writes the passphrase with owner-only permissions.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != storeKeySize {
		return fmt.Errorf("invalid store key size: got %d, want %d", len(key), storeKeySize)
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(p.keyPath, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write store key: %w", err)
	}
	return nil
}

// KeyExists checks if the key file exists.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// GenerateKey creates a new random passphrase.
func GenerateKey() ([]byte, error) {
	key := make([]byte, storeKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// Ensure FileKeyProvider implements domain.KeyProvider.
var _ domain.KeyProvider = (*FileKeyProvider)(nil)
