package paginator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "tweetharvest/pkg/errors"
	"tweetharvest/pkg/logger"
	"tweetharvest/pkg/storage"
	"tweetharvest/pkg/twitter"
)

func str(s string) *string { return &s }

// scriptedSearcher answers every request with a page of exactly
// max_results records and a token, unless told otherwise
type scriptedSearcher struct {
	mu       sync.Mutex
	requests []twitter.SearchRequest

	noTokenAt int   // request number answered without a token
	failAt    int   // request number answered with failErr
	failErr   error // defaults to a network error
	shortAt   int   // request number answered with fewer records
}

func (s *scriptedSearcher) Search(ctx context.Context, req twitter.SearchRequest) (*twitter.ResultPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	n := len(s.requests)

	if n == s.failAt {
		if s.failErr != nil {
			return nil, s.failErr
		}
		return nil, errs.Network("search", errors.New("connection reset by peer"))
	}

	count := req.MaxResults
	if n == s.shortAt {
		count = count / 2
	}
	page := &twitter.ResultPage{Records: make([]twitter.Record, count)}
	for i := range page.Records {
		page.Records[i] = twitter.Record{
			ID:   str(fmt.Sprintf("%d-%d", n, i)),
			Text: str(fmt.Sprintf("text %d-%d", n, i)),
		}
	}
	if n != s.noTokenAt {
		page.Meta.NextToken = str(fmt.Sprintf("tok-%d", n))
	}
	return page, nil
}

func (s *scriptedSearcher) calls() []twitter.SearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]twitter.SearchRequest(nil), s.requests...)
}

func (s *scriptedSearcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// memorySink records pages and, for each write, how many requests had been
// issued at that moment
type memorySink struct {
	mu            sync.Mutex
	searcher      *scriptedSearcher
	pages         []*twitter.ResultPage
	requestsAtPut []int
	failAt        int
	delay         time.Duration
}

func (m *memorySink) WritePage(page *twitter.ResultPage) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAt != 0 && len(m.pages)+1 == m.failAt {
		return errs.Output("write full record", errors.New("no space left on device"))
	}
	m.pages = append(m.pages, page)
	if m.searcher != nil {
		m.requestsAtPut = append(m.requestsAtPut, m.searcher.count())
	}
	return nil
}

func (m *memorySink) records() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, page := range m.pages {
		for _, r := range page.Records {
			ids = append(ids, *r.ID)
		}
	}
	return ids
}

type countingLimiter struct {
	mu    sync.Mutex
	calls int
}

func (c *countingLimiter) Wait(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func (c *countingLimiter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingObserver struct {
	mu          sync.Mutex
	fetched     map[string]int
	persisted   int
	transitions []string
}

func (o *recordingObserver) PageFetched(kind string, records int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fetched == nil {
		o.fetched = map[string]int{}
	}
	o.fetched[kind]++
}

func (o *recordingObserver) PagePersisted(records int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.persisted += records
}

func (o *recordingObserver) StateChanged(from, to string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, from+">"+to)
}

func template() twitter.SearchRequest {
	return twitter.NewSearchRequest("(neubau OR hochhaus) lang:de",
		time.Date(2020, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2022, 3, 5, 0, 0, 0, 0, time.UTC),
		twitter.DefaultFields)
}

var modes = []struct {
	name     string
	pipeline bool
}{
	{"sequential", false},
	{"pipelined", true},
}

func TestNewPlan(t *testing.T) {
	tests := []struct {
		target, pageSize, full, remainder, maxRequests int
	}{
		{4300, 500, 8, 300, 9},
		{4000, 500, 8, 0, 8},
		{300, 500, 0, 300, 1},
		{500, 500, 1, 0, 1},
		{501, 500, 1, 1, 2},
		{0, 500, 0, 0, 0},
		{7, 3, 2, 1, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.target, tt.pageSize), func(t *testing.T) {
			plan := NewPlan(tt.target, tt.pageSize)
			assert.Equal(t, tt.full, plan.FullPages)
			assert.Equal(t, tt.remainder, plan.Remainder)
			assert.Equal(t, tt.maxRequests, plan.MaxRequests())
		})
	}
}

func TestFullPagesThenRemainder(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.name, func(t *testing.T) {
			searcher := &scriptedSearcher{}
			sink := &memorySink{}
			p := New(searcher, sink, template(), Options{Target: 4300, PageSize: 500, Pipeline: mode.pipeline}, logger.NewNopLogger())

			summary, err := p.Run(context.Background())
			require.NoError(t, err)

			calls := searcher.calls()
			require.Len(t, calls, 9)
			for i := 0; i < 8; i++ {
				assert.Equal(t, 500, calls[i].MaxResults, "full page %d", i+1)
			}
			assert.Equal(t, 300, calls[8].MaxResults)
			assert.Equal(t, "tok-8", calls[8].NextToken, "remainder uses the 8th page's token")

			assert.Equal(t, StateExhausted, summary.FinalState)
			assert.Equal(t, 9, summary.Requests)
			assert.Equal(t, 9, summary.Pages)
			assert.Equal(t, 4300, summary.Records)
			assert.Len(t, sink.records(), 4300)
			assert.Equal(t, "tok-9", summary.LastToken)
		})
	}
}

func TestTokensForwardedVerbatim(t *testing.T) {
	searcher := &scriptedSearcher{}
	p := New(searcher, &memorySink{}, template(), Options{Target: 1500, PageSize: 500}, logger.NewNopLogger())

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	calls := searcher.calls()
	require.Len(t, calls, 3)
	assert.Empty(t, calls[0].NextToken, "first request carries no token")
	assert.Equal(t, "tok-1", calls[1].NextToken)
	assert.Equal(t, "tok-2", calls[2].NextToken)
	for _, c := range calls {
		assert.Equal(t, "(neubau OR hochhaus) lang:de", c.Query)
		assert.Equal(t, twitter.DefaultFields, c.Fields)
	}
}

func TestTargetBelowPageSize(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.name, func(t *testing.T) {
			searcher := &scriptedSearcher{}
			sink := &memorySink{}
			p := New(searcher, sink, template(), Options{Target: 300, PageSize: 500, Pipeline: mode.pipeline}, logger.NewNopLogger())

			summary, err := p.Run(context.Background())
			require.NoError(t, err)

			calls := searcher.calls()
			require.Len(t, calls, 1)
			assert.Equal(t, 300, calls[0].MaxResults)
			assert.Empty(t, calls[0].NextToken)
			assert.Equal(t, 300, summary.Records)
			assert.Equal(t, StateExhausted, summary.FinalState)
		})
	}
}

func TestExactMultipleHasNoRemainderRequest(t *testing.T) {
	searcher := &scriptedSearcher{}
	p := New(searcher, &memorySink{}, template(), Options{Target: 1000, PageSize: 500}, logger.NewNopLogger())

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Requests)
	assert.Len(t, searcher.calls(), 2)
}

func TestMissingTokenStopsPagination(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.name, func(t *testing.T) {
			searcher := &scriptedSearcher{noTokenAt: 3, shortAt: 3}
			sink := &memorySink{}
			p := New(searcher, sink, template(), Options{Target: 4300, PageSize: 500, Pipeline: mode.pipeline}, logger.NewNopLogger())

			summary, err := p.Run(context.Background())
			require.NoError(t, err)

			assert.Len(t, searcher.calls(), 3, "no requests after a tokenless page, no remainder")
			assert.Equal(t, 3, summary.Pages, "the tokenless page is still persisted")
			assert.Equal(t, 500+500+250, summary.Records)
			assert.Len(t, sink.records(), 1250)
			assert.Equal(t, StateExhausted, summary.FinalState)
			assert.Empty(t, summary.LastToken)
		})
	}
}

func TestTokenlessLastFullPageSkipsRemainder(t *testing.T) {
	searcher := &scriptedSearcher{noTokenAt: 8}
	p := New(searcher, &memorySink{}, template(), Options{Target: 4300, PageSize: 500}, logger.NewNopLogger())

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, searcher.calls(), 8)
}

func TestRemainderOnlyRunIgnoresMissingToken(t *testing.T) {
	// a single remainder page without a token still ends cleanly
	searcher := &scriptedSearcher{noTokenAt: 1}
	p := New(searcher, &memorySink{}, template(), Options{Target: 120, PageSize: 500}, logger.NewNopLogger())

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Requests)
	assert.Equal(t, 120, summary.Records)
}

func TestZeroTargetIssuesNoRequests(t *testing.T) {
	searcher := &scriptedSearcher{}
	p := New(searcher, &memorySink{}, template(), Options{Target: 0}, logger.NewNopLogger())

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, searcher.calls())
	assert.Equal(t, StateExhausted, summary.FinalState)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestTransportFailureKeepsEarlierPages(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.name, func(t *testing.T) {
			dir := t.TempDir()
			paths := storage.Paths{
				Complete: filepath.Join(dir, "complete", "out.jsonl"),
				TextOnly: filepath.Join(dir, "text_only", "out.jsonl"),
			}
			sink, err := storage.NewSink(paths, logger.NewNopLogger())
			require.NoError(t, err)

			searcher := &scriptedSearcher{failAt: 5}
			p := New(searcher, sink, template(), Options{Target: 4000, PageSize: 500, Pipeline: mode.pipeline}, logger.NewNopLogger())

			summary, err := p.Run(context.Background())
			require.NoError(t, sink.Close())

			require.Error(t, err)
			assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
			assert.Equal(t, StateFailed, summary.FinalState)
			assert.Equal(t, StateFailed, p.State())
			assert.Len(t, searcher.calls(), 5, "no requests after the failed one")

			full := readLines(t, paths.Complete)
			text := readLines(t, paths.TextOnly)
			assert.Len(t, full, 4*500)
			assert.Len(t, text, 4*500)
			assert.Contains(t, full[0], `"id":"1-0"`)
			assert.Contains(t, full[len(full)-1], `"id":"4-499"`)
			for _, line := range full {
				assert.NotContains(t, line, `"id":"5-`)
			}
		})
	}
}

func TestMissingPayloadIsFatal(t *testing.T) {
	searcher := &scriptedSearcher{failAt: 2, failErr: errs.MissingPayload("search", "meta")}
	sink := &memorySink{}
	p := New(searcher, sink, template(), Options{Target: 1500, PageSize: 500}, logger.NewNopLogger())

	summary, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeMissingPayload))
	assert.Equal(t, 1, summary.Pages)
	assert.Len(t, searcher.calls(), 2)
}

func TestSinkFailureAbortsRun(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.name, func(t *testing.T) {
			searcher := &scriptedSearcher{}
			sink := &memorySink{failAt: 2}
			p := New(searcher, sink, template(), Options{Target: 4000, PageSize: 500, Pipeline: mode.pipeline}, logger.NewNopLogger())

			summary, err := p.Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, errs.ErrorTypeOutput, errs.TypeOf(err))
			assert.Equal(t, StateFailed, summary.FinalState)
			assert.Len(t, sink.records(), 500)
			assert.Equal(t, len(sink.records()), summary.Records)
			assert.Equal(t, 1, summary.Pages)

			// sequential stops right after the failed write; pipelined may
			// have one more page in hand
			if mode.pipeline {
				assert.LessOrEqual(t, len(searcher.calls()), 4)
			} else {
				assert.Len(t, searcher.calls(), 2)
			}
		})
	}
}

func TestFailedLastWriteNotCounted(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.name, func(t *testing.T) {
			searcher := &scriptedSearcher{}
			sink := &memorySink{failAt: 2}
			observer := &recordingObserver{}
			p := New(searcher, sink, template(), Options{
				Target:   1000,
				PageSize: 500,
				Pipeline: mode.pipeline,
				Observer: observer,
			}, logger.NewNopLogger())

			summary, err := p.Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, 2, summary.Requests)
			assert.Equal(t, 1, summary.Pages)
			assert.Equal(t, 500, summary.Records)
			assert.Equal(t, len(sink.records()), summary.Records)
			assert.Equal(t, summary.Records, observer.persisted)
		})
	}
}

func TestSequentialAlternatesFetchAndPersist(t *testing.T) {
	searcher := &scriptedSearcher{}
	sink := &memorySink{searcher: searcher}
	p := New(searcher, sink, template(), Options{Target: 2300, PageSize: 500}, logger.NewNopLogger())

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	// page k is written while exactly k requests have been issued
	assert.Equal(t, []int{1, 2, 3, 4, 5}, sink.requestsAtPut)
}

func TestPipelinedPreservesOrderWithSlowSink(t *testing.T) {
	searcher := &scriptedSearcher{}
	sink := &memorySink{delay: 5 * time.Millisecond}
	p := New(searcher, sink, template(), Options{Target: 50, PageSize: 10, Pipeline: true}, logger.NewNopLogger())

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, summary.Pages)

	var want []string
	for n := 1; n <= 5; n++ {
		for i := 0; i < 10; i++ {
			want = append(want, fmt.Sprintf("%d-%d", n, i))
		}
	}
	assert.Equal(t, want, sink.records())
}

func TestPauseAndWindowLimiters(t *testing.T) {
	pause := &countingLimiter{}
	window := &countingLimiter{}
	searcher := &scriptedSearcher{}
	p := New(searcher, &memorySink{}, template(), Options{
		Target:   4300,
		PageSize: 500,
		Pause:    pause,
		Window:   window,
	}, logger.NewNopLogger())

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, pause.count(), "pause precedes every request after the first, including the remainder")
	assert.Equal(t, 9, window.count(), "window is consulted before every request")
}

func TestObserverAndTransitions(t *testing.T) {
	observer := &recordingObserver{}
	p := New(&scriptedSearcher{}, &memorySink{}, template(), Options{
		Target:   700,
		PageSize: 500,
		Observer: observer,
	}, logger.NewNopLogger())

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"full": 1, "remainder": 1}, observer.fetched)
	assert.Equal(t, 700, observer.persisted)
	assert.Equal(t, []string{
		"init>fetching",
		"fetching>persisting",
		"persisting>fetching",
		"fetching>persisting",
		"persisting>exhausted",
	}, observer.transitions)
}

func TestRunOnlyOnce(t *testing.T) {
	p := New(&scriptedSearcher{}, &memorySink{}, template(), Options{Target: 10}, logger.NewNopLogger())

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	summary, err := p.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateExhausted, summary.FinalState)
}

func TestPageSizeCappedAtAPIMaximum(t *testing.T) {
	searcher := &scriptedSearcher{}
	p := New(searcher, &memorySink{}, template(), Options{Target: 1000, PageSize: 900}, logger.NewNopLogger())

	assert.Equal(t, twitter.MaxPageSize, p.Plan().PageSize)
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	for _, c := range searcher.calls() {
		assert.LessOrEqual(t, c.MaxResults, twitter.MaxPageSize)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.True(t, StateExhausted.Terminal())
	assert.False(t, StatePersisting.Terminal())
}

func TestTerminalStateIsFinal(t *testing.T) {
	log := logger.NewTestLogger()
	p := New(&scriptedSearcher{}, &memorySink{}, template(), Options{Target: 10}, log)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	p.transition(StateFetching)
	assert.Equal(t, StateExhausted, p.State())
	assert.True(t, log.HasMessage("ignoring transition out of terminal state"))
}
