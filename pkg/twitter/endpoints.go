package twitter

import (
	"strings"

	"tweetharvest/pkg/config"
)

const (
	// DefaultBaseURL is the API host
	DefaultBaseURL = "https://api.twitter.com"

	// SearchAllPath is the full-archive search endpoint
	SearchAllPath = "/2/tweets/search/all"

	// MaxPageSize is the largest max_results the full-archive endpoint accepts
	MaxPageSize = config.MaxPageSize
)

// DefaultFields is the tweet.fields set requested when none is configured
var DefaultFields = []string{"author_id", "created_at"}

// SearchURL joins a base URL and an endpoint path
func SearchURL(baseURL, path string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if path == "" {
		path = SearchAllPath
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
