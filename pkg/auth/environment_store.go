package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements KeyStore using an environment variable.
// Read-only; mainly for CI and one-off runs.
type EnvironmentStore struct {
	envVar string
}

// NewEnvironmentStore creates an environment-based key store reading envVar
func NewEnvironmentStore(envVar string) *EnvironmentStore {
	if envVar == "" {
		envVar = "NOTEX_API_KEY"
	}
	return &EnvironmentStore{envVar: envVar}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets the API key from the environment
func (e *EnvironmentStore) Retrieve(provider string) (*Credential, error) {
	apiKey := os.Getenv(e.envVar)
	if apiKey == "" {
		return nil, ErrKeyNotFound
	}

	if provider == "" {
		provider = "default"
	}
	return &Credential{
		Provider:     provider,
		APIKey:       apiKey,
		LastModified: time.Now(),
	}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(provider string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment variable is set
func (e *EnvironmentStore) Exists(provider string) bool {
	return os.Getenv(e.envVar) != ""
}
