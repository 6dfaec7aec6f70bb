package auth

import "os"

// Environment variables consulted for the bearer token, highest priority first
var tokenEnvVars = []string{"TWEETHARVEST_BEARER_TOKEN", "BEARER_TOKEN"}

// EnvironmentStore reads the bearer token from the process environment.
// Values loaded from a .env file are visible here too.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based token store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Name() string { return "environment" }

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(token string) error {
	return ErrStoreUnavailable
}

// Retrieve returns the first non-empty token variable
func (e *EnvironmentStore) Retrieve() (string, error) {
	for _, name := range tokenEnvVars {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", ErrTokenNotFound
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete() error {
	return ErrStoreUnavailable
}
