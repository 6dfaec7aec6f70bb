package twitter

import (
	"bytes"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Record is one post as returned in the data array of a search response.
// Every field is optional: the API omits fields depending on the requested
// field set, and an absent field is written back out as null.
// Members beyond the modeled ones (lang, public_metrics, ...) are kept in
// Extra and written back after the modeled fields, sorted by key.
type Record struct {
	ID                  *string  `json:"id"`
	AuthorID            *string  `json:"author_id"`
	Text                *string  `json:"text"`
	CreatedAt           *string  `json:"created_at"`
	EditHistoryTweetIDs []string `json:"edit_history_tweet_ids"`

	Extra map[string]json.RawMessage `json:"-"`
}

// recordFields has the modeled members of Record without its methods
type recordFields Record

var modeledKeys = []string{"id", "author_id", "text", "created_at", "edit_history_tweet_ids"}

func (r *Record) UnmarshalJSON(data []byte) error {
	var fields recordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, key := range modeledKeys {
		delete(all, key)
	}
	if len(all) > 0 {
		fields.Extra = all
	}

	*r = Record(fields)
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(recordFields(r)); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	if len(r.Extra) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(r.Extra))
	for key := range r.Extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// Reopen the object and append the passthrough members
	out = out[:len(out)-1]
	for _, key := range keys {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		out = append(out, ',')
		out = append(out, name...)
		out = append(out, ':')
		out = append(out, r.Extra[key]...)
	}
	return append(out, '}'), nil
}

// TextOnly is the projection written to the text-only stream
type TextOnly struct {
	Text *string `json:"text"`
}

// TextOnly projects the record down to its text body
func (r Record) TextOnly() TextOnly {
	return TextOnly{Text: r.Text}
}

// Meta is the pagination metadata of a search response
type Meta struct {
	NewestID    *string `json:"newest_id,omitempty"`
	OldestID    *string `json:"oldest_id,omitempty"`
	NextToken   *string `json:"next_token,omitempty"`
	ResultCount *int    `json:"result_count,omitempty"`
}

// ResultPage is one page of search results in API order
type ResultPage struct {
	Records []Record
	Meta    Meta
}

// HasNext reports whether the page carries a continuation token.
// A page without one is the last page of the result set.
func (p *ResultPage) HasNext() bool {
	return p.Meta.NextToken != nil && *p.Meta.NextToken != ""
}

// NextToken returns the continuation token, or "" on the last page
func (p *ResultPage) NextToken() string {
	if !p.HasNext() {
		return ""
	}
	return *p.Meta.NextToken
}

// searchResponse is the wire shape of a search response. Data and Meta are
// pointers so that an absent object can be told apart from an empty one.
type searchResponse struct {
	Data *[]Record `json:"data"`
	Meta *Meta     `json:"meta"`
}

// APIError is the problem document returned with non-2xx responses
type APIError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

// SearchRequest describes one call to the search endpoint. It is a value:
// the With* builders return modified copies and never touch the receiver.
type SearchRequest struct {
	Query      string
	StartTime  time.Time
	EndTime    time.Time
	Fields     []string
	MaxResults int
	NextToken  string
}

// NewSearchRequest returns a first-page request of MaxPageSize results
func NewSearchRequest(query string, start, end time.Time, fields []string) SearchRequest {
	return SearchRequest{
		Query:      query,
		StartTime:  start,
		EndTime:    end,
		Fields:     append([]string(nil), fields...),
		MaxResults: MaxPageSize,
	}
}

// WithMaxResults returns a copy asking for n results, clamped to 1..MaxPageSize
func (r SearchRequest) WithMaxResults(n int) SearchRequest {
	if n > MaxPageSize {
		n = MaxPageSize
	}
	if n < 1 {
		n = 1
	}
	r.MaxResults = n
	return r
}

// WithNextToken returns a copy continuing from token. The token is opaque
// and forwarded verbatim.
func (r SearchRequest) WithNextToken(token string) SearchRequest {
	r.NextToken = token
	return r
}

// Values renders the request as query parameters
func (r SearchRequest) Values() url.Values {
	params := url.Values{}
	params.Set("query", r.Query)
	params.Set("start_time", r.StartTime.UTC().Format(time.RFC3339))
	params.Set("end_time", r.EndTime.UTC().Format(time.RFC3339))
	params.Set("max_results", strconv.Itoa(r.MaxResults))
	if len(r.Fields) > 0 {
		params.Set("tweet.fields", strings.Join(r.Fields, ","))
	}
	if r.NextToken != "" {
		params.Set("next_token", r.NextToken)
	}
	return params
}
