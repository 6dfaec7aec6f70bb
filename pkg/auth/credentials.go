package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Credential is a resolved bearer token and the store it came from
type Credential struct {
	Token  string
	Source string
}

// Masked returns the token with all but its edges hidden
func (c Credential) Masked() string {
	return MaskToken(c.Token)
}

// TokenStore is a place a bearer token can be kept
type TokenStore interface {
	Name() string
	Store(token string) error
	Retrieve() (string, error)
	Delete() error
}

// StoreStatus reports whether a store currently holds a token
type StoreStatus struct {
	Store   string
	Present bool
	Masked  string
}

// Manager resolves bearer tokens across stores in priority order
type Manager struct {
	stores []TokenStore
}

// NewManager creates a manager over the environment and, when reachable,
// the system keyring
func NewManager() *Manager {
	stores := []TokenStore{NewEnvironmentStore()}
	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}
	return &Manager{stores: stores}
}

// NewManagerWithStores creates a manager over an explicit store list
func NewManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{stores: stores}
}

// Resolve returns the first available token. A non-empty configured token
// wins over every store.
func (m *Manager) Resolve(configured string) (Credential, error) {
	if token := strings.TrimSpace(configured); token != "" {
		return Credential{Token: token, Source: "config"}, nil
	}

	for _, store := range m.stores {
		token, err := store.Retrieve()
		if err != nil {
			continue
		}
		if token = strings.TrimSpace(token); token != "" {
			return Credential{Token: token, Source: store.Name()}, nil
		}
	}

	return Credential{}, ErrTokenNotFound
}

// Store saves the token into the first store that accepts writes
func (m *Manager) Store(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(token)
		if err == nil {
			return store.Name(), nil
		}
		if !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to store token: %w", lastErr)
	}
	return "", ErrStoreUnavailable
}

// Delete removes the token from every writable store
func (m *Manager) Delete() error {
	deleted := false
	var lastErr error

	for _, store := range m.stores {
		err := store.Delete()
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrTokenNotFound):
		default:
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	if !deleted {
		return ErrTokenNotFound
	}
	return nil
}

// Status reports every store in resolution order
func (m *Manager) Status() []StoreStatus {
	statuses := make([]StoreStatus, 0, len(m.stores))
	for _, store := range m.stores {
		status := StoreStatus{Store: store.Name()}
		if token, err := store.Retrieve(); err == nil && token != "" {
			status.Present = true
			status.Masked = MaskToken(token)
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// MaskToken hides a token for display
func MaskToken(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// Errors
var (
	ErrTokenNotFound    = errors.New("bearer token not found")
	ErrInvalidToken     = errors.New("invalid bearer token")
	ErrStoreUnavailable = errors.New("token store unavailable")
)
