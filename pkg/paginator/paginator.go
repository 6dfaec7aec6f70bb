package paginator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tweetharvest/internal/handoff"
	"tweetharvest/pkg/logger"
	"tweetharvest/pkg/ratelimit"
	"tweetharvest/pkg/twitter"
)

// Searcher fetches one page of results
type Searcher interface {
	Search(ctx context.Context, req twitter.SearchRequest) (*twitter.ResultPage, error)
}

// PageSink persists one page of results
type PageSink interface {
	WritePage(page *twitter.ResultPage) error
}

// Observer is notified of run progress. Implementations must be safe for
// use from the persister goroutine of a pipelined run.
type Observer interface {
	PageFetched(kind string, records int)
	PagePersisted(records int)
	StateChanged(from, to string)
}

// Options tune a run
type Options struct {
	// Target is the total number of results to collect
	Target int
	// PageSize is max_results for full pages, capped at twitter.MaxPageSize
	PageSize int
	// Pipeline overlaps persisting page k with fetching page k+1
	Pipeline bool
	// Pause runs before every request except the first
	Pause ratelimit.Limiter
	// Window runs before every request
	Window   ratelimit.Limiter
	Observer Observer
}

// Summary describes a finished run
type Summary struct {
	FinalState State
	Plan       Plan
	Requests   int
	Pages      int
	Records    int
	LastToken  string
	Duration   time.Duration
}

// Paginator drives the search endpoint through a result set, following the
// continuation token, and hands every page to the sink before (sequential)
// or while (pipelined) fetching the next one
type Paginator struct {
	searcher Searcher
	sink     PageSink
	template twitter.SearchRequest
	opts     Options
	plan     Plan
	logger   logger.Logger

	mu    sync.Mutex
	state State
}

// New creates a paginator. template supplies query, time range and fields;
// its page size and token are replaced on every request.
func New(searcher Searcher, sink PageSink, template twitter.SearchRequest, opts Options, log logger.Logger) *Paginator {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.PageSize <= 0 || opts.PageSize > twitter.MaxPageSize {
		opts.PageSize = twitter.MaxPageSize
	}
	if opts.Pause == nil {
		opts.Pause = ratelimit.NewPause(0)
	}
	if opts.Window == nil {
		opts.Window = ratelimit.NewWindow(0, 0)
	}

	return &Paginator{
		searcher: searcher,
		sink:     sink,
		template: template.WithNextToken(""),
		opts:     opts,
		plan:     NewPlan(opts.Target, opts.PageSize),
		logger:   log.WithField("component", "paginator"),
		state:    StateInit,
	}
}

// Plan returns the page plan of the run
func (p *Paginator) Plan() Plan {
	return p.plan
}

// State returns the current state
func (p *Paginator) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Paginator) transition(to State) {
	p.mu.Lock()
	from := p.state
	if from.Terminal() {
		p.mu.Unlock()
		p.logger.WarnWithFields("ignoring transition out of terminal state", map[string]interface{}{
			"from": from.String(),
			"to":   to.String(),
		})
		return
	}
	p.state = to
	p.mu.Unlock()

	if from == to {
		return
	}
	p.logger.DebugWithFields("state transition", map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	})
	if p.opts.Observer != nil {
		p.opts.Observer.StateChanged(from.String(), to.String())
	}
}

// run holds the bookkeeping of a single Run call. Pages and Records count
// completed writes and are updated from the persister goroutine when
// pipelining, so they are guarded by mu.
type run struct {
	summary Summary
	token   string
	handed  int
	emit    func(ctx context.Context, page *twitter.ResultPage) error

	mu sync.Mutex
}

// persisted adds one written page and returns the new record total
func (r *run) persisted(records int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Pages++
	r.summary.Records += records
	return r.summary.Records
}

// Run executes the plan. It returns the summary and, when the run ends in
// StateFailed, the error that caused it. Pages persisted before a failure
// stay persisted.
func (p *Paginator) Run(ctx context.Context) (Summary, error) {
	if p.State() != StateInit {
		return Summary{FinalState: p.State()}, errors.New("paginator already ran")
	}

	start := time.Now()
	r := &run{summary: Summary{Plan: p.plan}}

	p.logger.InfoWithFields("starting pagination", map[string]interface{}{
		"target":     p.plan.Target,
		"page_size":  p.plan.PageSize,
		"full_pages": p.plan.FullPages,
		"remainder":  p.plan.Remainder,
		"pipeline":   p.opts.Pipeline,
	})

	var persister *handoff.Persister[*twitter.ResultPage]
	if p.opts.Pipeline {
		persister = handoff.NewPersister(func(page *twitter.ResultPage) error {
			return p.persist(r, page)
		}, p.logger)
		persister.Start()
		r.emit = persister.Submit
	} else {
		r.emit = func(_ context.Context, page *twitter.ResultPage) error {
			return p.persist(r, page)
		}
	}

	err := p.fetchAll(ctx, r)

	if persister != nil {
		// A fetch failure is reported only after in-flight persistence completes
		if closeErr := persister.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("persist page: %w", closeErr)
		}
		p.logger.DebugWithFields("persister closed", map[string]interface{}{
			"handed_off": persister.Accepted(),
		})
	}

	r.summary.Duration = time.Since(start)
	r.summary.LastToken = r.token

	if err != nil {
		p.transition(StateFailed)
		r.summary.FinalState = StateFailed
		p.logger.WithError(err).ErrorWithFields("pagination failed", map[string]interface{}{
			"requests": r.summary.Requests,
			"pages":    r.summary.Pages,
			"records":  r.summary.Records,
		})
		return r.summary, err
	}

	p.transition(StateExhausted)
	r.summary.FinalState = StateExhausted
	p.logger.InfoWithFields("pagination finished", map[string]interface{}{
		"requests": r.summary.Requests,
		"pages":    r.summary.Pages,
		"records":  r.summary.Records,
		"duration": r.summary.Duration,
	})
	return r.summary, nil
}

// persist writes one page through the sink. In pipelined mode it runs on the
// persister goroutine.
func (p *Paginator) persist(r *run, page *twitter.ResultPage) error {
	if err := p.sink.WritePage(page); err != nil {
		return err
	}
	total := r.persisted(len(page.Records))
	if p.opts.Observer != nil {
		p.opts.Observer.PagePersisted(len(page.Records))
	}
	logger.LogProgress(p.logger, total, p.plan.Target)
	return nil
}

func (p *Paginator) fetchAll(ctx context.Context, r *run) error {
	for i := 0; i < p.plan.FullPages; i++ {
		page, err := p.fetch(ctx, r, KindFull, p.plan.PageSize)
		if err != nil {
			return err
		}
		if err := p.hand(ctx, r, page); err != nil {
			return err
		}
		r.token = page.NextToken()
		if !page.HasNext() {
			p.logger.InfoWithFields("result set exhausted", map[string]interface{}{
				"page":         i + 1,
				"planned_full": p.plan.FullPages,
			})
			return nil
		}
	}

	// Only reached when the full-page loop did not exhaust the result set,
	// so the token is active unless no full page was requested at all
	if p.plan.Remainder == 0 {
		return nil
	}

	page, err := p.fetch(ctx, r, KindRemainder, p.plan.Remainder)
	if err != nil {
		return err
	}
	if err := p.hand(ctx, r, page); err != nil {
		return err
	}
	r.token = page.NextToken()
	return nil
}

// fetch issues one request for size results from the current token
func (p *Paginator) fetch(ctx context.Context, r *run, kind PageKind, size int) (*twitter.ResultPage, error) {
	number := r.summary.Requests + 1

	if number > 1 {
		if err := p.opts.Pause.Wait(ctx); err != nil {
			return nil, fmt.Errorf("pause before request %d: %w", number, err)
		}
	}
	if err := p.opts.Window.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate window before request %d: %w", number, err)
	}

	p.transition(StateFetching)
	req := p.template.WithMaxResults(size).WithNextToken(r.token)

	start := time.Now()
	page, err := p.searcher.Search(ctx, req)
	r.summary.Requests = number
	if err != nil {
		return nil, fmt.Errorf("%s request %d: %w", kind, number, err)
	}

	logger.LogRequest(p.logger, string(kind), http.StatusOK, len(page.Records), time.Since(start).Milliseconds())
	if p.opts.Observer != nil {
		p.opts.Observer.PageFetched(string(kind), len(page.Records))
	}
	return page, nil
}

// hand passes a fetched page to persistence
func (p *Paginator) hand(ctx context.Context, r *run, page *twitter.ResultPage) error {
	p.transition(StatePersisting)
	r.handed++
	if err := r.emit(ctx, page); err != nil {
		return fmt.Errorf("persist page %d: %w", r.handed, err)
	}
	return nil
}
