package twitter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func TestSearchRequestBuildersDoNotMutate(t *testing.T) {
	start := time.Date(2020, 3, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 3, 5, 0, 0, 0, 0, time.UTC)
	base := NewSearchRequest("hochhaus", start, end, DefaultFields)

	next := base.WithMaxResults(300).WithNextToken("b26v89c19zqg8o3f")

	assert.Equal(t, MaxPageSize, base.MaxResults)
	assert.Empty(t, base.NextToken)
	assert.Equal(t, 300, next.MaxResults)
	assert.Equal(t, "b26v89c19zqg8o3f", next.NextToken)
}

func TestWithMaxResultsClamps(t *testing.T) {
	req := SearchRequest{}
	assert.Equal(t, MaxPageSize, req.WithMaxResults(10_000).MaxResults)
	assert.Equal(t, 1, req.WithMaxResults(0).MaxResults)
	assert.Equal(t, 42, req.WithMaxResults(42).MaxResults)
}

func TestSearchRequestValues(t *testing.T) {
	start := time.Date(2020, 3, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 3, 5, 0, 0, 0, 0, time.UTC)
	req := NewSearchRequest("neubau lang:de", start, end, []string{"author_id", "created_at"})

	first := req.Values()
	assert.Equal(t, "neubau lang:de", first.Get("query"))
	assert.Equal(t, "2020-03-05T00:00:00Z", first.Get("start_time"))
	assert.Equal(t, "2022-03-05T00:00:00Z", first.Get("end_time"))
	assert.Equal(t, "500", first.Get("max_results"))
	assert.Equal(t, "author_id,created_at", first.Get("tweet.fields"))
	assert.False(t, first.Has("next_token"), "first request must not carry a token")

	token := "1jzu9lk96gu5npsdlzdwy/+=="
	assert.Equal(t, token, req.WithNextToken(token).Values().Get("next_token"))
}

func TestNewSearchRequestCopiesFields(t *testing.T) {
	fields := []string{"author_id"}
	req := NewSearchRequest("q", time.Now(), time.Now(), fields)
	fields[0] = "lang"
	assert.Equal(t, []string{"author_id"}, req.Fields)
}

func TestRecordSerializesAbsentFieldsAsNull(t *testing.T) {
	data, err := json.Marshal(Record{Text: str("hello")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":null,"author_id":null,"text":"hello","created_at":null,"edit_history_tweet_ids":null}`, string(data))

	projection, err := json.Marshal(Record{ID: str("1")}.TextOnly())
	require.NoError(t, err)
	assert.Equal(t, `{"text":null}`, string(projection))
}

func TestRecordKeepsUnmodeledFields(t *testing.T) {
	input := `{"id":"7","text":"Neubau & Hochhaus","lang":"de","public_metrics":{"like_count":3}}`

	var record Record
	require.NoError(t, json.Unmarshal([]byte(input), &record))
	assert.Equal(t, "7", *record.ID)
	assert.Nil(t, record.AuthorID)
	require.Len(t, record.Extra, 2)
	assert.JSONEq(t, `"de"`, string(record.Extra["lang"]))

	data, err := json.Marshal(record)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"7","author_id":null,"text":"Neubau & Hochhaus","created_at":null,
		"edit_history_tweet_ids":null,"lang":"de","public_metrics":{"like_count":3}}`, string(data))
	assert.Contains(t, string(data), `"created_at":null,"edit_history_tweet_ids":null,"lang":"de","public_metrics"`)
}

func TestRecordWithoutExtrasHasNoPassthrough(t *testing.T) {
	var record Record
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","edit_history_tweet_ids":["1"]}`), &record))
	assert.Nil(t, record.Extra)
	assert.Equal(t, []string{"1"}, record.EditHistoryTweetIDs)
}

func TestResultPageHasNext(t *testing.T) {
	assert.False(t, (&ResultPage{}).HasNext())
	assert.False(t, (&ResultPage{Meta: Meta{NextToken: str("")}}).HasNext())

	page := &ResultPage{Meta: Meta{NextToken: str("abc")}}
	assert.True(t, page.HasNext())
	assert.Equal(t, "abc", page.NextToken())
}

func TestSearchURL(t *testing.T) {
	assert.Equal(t, "https://api.twitter.com/2/tweets/search/all", SearchURL("", ""))
	assert.Equal(t, "http://127.0.0.1:8080/2/tweets/search/all", SearchURL("http://127.0.0.1:8080/", SearchAllPath))
}
