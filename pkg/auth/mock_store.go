package auth

import "sync"

// MockStore implements TokenStore for testing purposes
type MockStore struct {
	name  string
	token string
	mu    sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	DeleteError   error
}

// NewMockStore creates an empty mock store reporting the given name
func NewMockStore(name string) *MockStore {
	return &MockStore{name: name}
}

func (m *MockStore) Name() string { return m.name }

// Store saves the token in memory
func (m *MockStore) Store(token string) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if token == "" {
		return ErrInvalidToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// Retrieve returns the stored token
func (m *MockStore) Retrieve() (string, error) {
	if m.RetrieveError != nil {
		return "", m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", ErrTokenNotFound
	}
	return m.token, nil
}

// Delete clears the stored token
func (m *MockStore) Delete() error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return ErrTokenNotFound
	}
	m.token = ""
	return nil
}

// NewMockManager creates a manager backed by a single mock store
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore("mock")
	return NewManagerWithStores(store), store
}
