// Package testutil provides a mock full-archive search server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// SearchPath is the path the mock serves search results on
const SearchPath = "/2/tweets/search/all"

// MockFailure is a canned response returned instead of a page
type MockFailure struct {
	StatusCode int
	Body       string
}

// MockSearchAPI serves a synthetic corpus of records with offset-encoded
// continuation tokens. The corpus is exhausted after Available records, at
// which point the last page carries no next_token.
type MockSearchAPI struct {
	server *httptest.Server
	mu     sync.Mutex

	available int
	failures  map[int]MockFailure
	token     string

	requests []url.Values
	headers  []http.Header
}

// NewMockSearchAPI starts a server holding available records
func NewMockSearchAPI(available int) *MockSearchAPI {
	mock := &MockSearchAPI{
		available: available,
		failures:  make(map[int]MockFailure),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the server base URL
func (m *MockSearchAPI) URL() string {
	return m.server.URL
}

// Close shuts down the server
func (m *MockSearchAPI) Close() {
	m.server.Close()
}

// RequireToken makes the server answer 401 unless the bearer token matches
func (m *MockSearchAPI) RequireToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// FailAt makes the n-th request (1-based) return the given failure
func (m *MockSearchAPI) FailAt(n int, failure MockFailure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[n] = failure
}

// RequestCount returns the number of requests received
func (m *MockSearchAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns the query parameters of every request in arrival order
func (m *MockSearchAPI) Requests() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]url.Values, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastHeader returns the headers of the most recent request
func (m *MockSearchAPI) LastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.headers) == 0 {
		return nil
	}
	return m.headers[len(m.headers)-1]
}

func (m *MockSearchAPI) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, r.URL.Query())
	m.headers = append(m.headers, r.Header.Clone())
	n := len(m.requests)
	failure, failing := m.failures[n]
	token := m.token
	available := m.available
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path != SearchPath {
		writeError(w, http.StatusNotFound, "Not Found", "unknown path "+r.URL.Path)
		return
	}
	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "invalid bearer token")
		return
	}
	if failing {
		w.WriteHeader(failure.StatusCode)
		_, _ = w.Write([]byte(failure.Body))
		return
	}

	query := r.URL.Query()
	maxResults, err := strconv.Atoi(query.Get("max_results"))
	if err != nil || maxResults <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid Request", "max_results is required")
		return
	}

	offset := 0
	if next := query.Get("next_token"); next != "" {
		offset, err = strconv.Atoi(strings.TrimPrefix(next, "offset-"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid Request", "malformed next_token")
			return
		}
	}

	end := offset + maxResults
	if end > available {
		end = available
	}

	data := make([]map[string]interface{}, 0, end-offset)
	for i := offset; i < end; i++ {
		id := fmt.Sprintf("%d", 1000000+i)
		data = append(data, map[string]interface{}{
			"id":                     id,
			"author_id":              fmt.Sprintf("author-%d", i%7),
			"text":                   fmt.Sprintf("record %d", i),
			"created_at":             "2021-06-01T12:00:00.000Z",
			"edit_history_tweet_ids": []string{id},
		})
	}

	meta := map[string]interface{}{"result_count": len(data)}
	if len(data) > 0 {
		meta["newest_id"] = data[0]["id"]
		meta["oldest_id"] = data[len(data)-1]["id"]
	}
	if end < available {
		meta["next_token"] = fmt.Sprintf("offset-%d", end)
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data, "meta": meta})
}

func writeError(w http.ResponseWriter, status int, title, detail string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"title": title, "detail": detail})
}
