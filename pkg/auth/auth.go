// Package auth stores conversion API keys. Keys are looked up through a
// chain of backends: system keychain, encrypted file, then environment.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Credential is an API key for one conversion provider
type Credential struct {
	Provider     string    `json:"provider"`
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

// KeyStore is the interface for storing and retrieving API keys
type KeyStore interface {
	Store(cred *Credential) error
	Retrieve(provider string) (*Credential, error)
	Delete(provider string) error
	Exists(provider string) bool
}

// Errors
var (
	ErrKeyNotFound      = errors.New("API key not found")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrStoreUnavailable = errors.New("key store unavailable")
)

// Manager resolves API keys with fallback across backends
type Manager struct {
	stores []KeyStore
}

// NewManager creates a key manager with the available storage backends
func NewManager(envVar string) (*Manager, error) {
	var stores []KeyStore

	// Try keyring first (system keychain)
	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "keys.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Environment variable as last resort
	stores = append(stores, NewEnvironmentStore(envVar))

	return &Manager{stores: stores}, nil
}

// Store saves an API key using the first backend that accepts it
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.Provider == "" {
		return ErrInvalidKey
	}
	if cred.APIKey == "" {
		return ErrInvalidKey
	}
	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store API key: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the API key for a provider from the first backend that has it
func (m *Manager) Retrieve(provider string) (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(provider); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w for provider %q", ErrKeyNotFound, provider)
}

// Delete removes the API key from all backends that hold it
func (m *Manager) Delete(provider string) error {
	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(provider); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}
	if !deleted {
		if lastErr != nil {
			return fmt.Errorf("failed to delete API key: %w", lastErr)
		}
		return ErrKeyNotFound
	}
	return nil
}

// MaskKey masks all but the first 4 and last 4 characters of a key
func MaskKey(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "notex")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "notex")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "notex")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "notex")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}
