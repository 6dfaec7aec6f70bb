package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"tweetharvest/pkg/config"
)

// Limiter blocks until the next request may be sent
type Limiter interface {
	Wait(ctx context.Context) error
}

// Pause is the fixed pacing delay inserted between successive page requests
type Pause struct {
	delay time.Duration
}

// NewPause creates a pause of the given delay. A non-positive delay never blocks.
func NewPause(delay time.Duration) *Pause {
	return &Pause{delay: delay}
}

// Delay returns the configured pause
func (p *Pause) Delay() time.Duration {
	return p.delay
}

// Wait sleeps for the configured delay or until ctx is done
func (p *Pause) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Window caps the number of requests over a rolling window, e.g. the
// full-archive quota of 300 requests per 15 minutes. Requests inside the
// quota pass immediately, later ones are spread evenly over the window.
type Window struct {
	limiter  *rate.Limiter
	requests int
	window   time.Duration
}

// NewWindow allows requests per window. requests <= 0 disables the limit.
func NewWindow(requests int, window time.Duration) *Window {
	if requests <= 0 || window <= 0 {
		return &Window{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Window{
		limiter:  rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests),
		requests: requests,
		window:   window,
	}
}

// allow reports whether a request may be sent now, consuming a slot if so
func (w *Window) allow() bool {
	return w.limiter.Allow()
}

// Wait blocks until a request slot is available or ctx is done
func (w *Window) Wait(ctx context.Context) error {
	return w.limiter.Wait(ctx)
}

// Unlimited reports whether the window imposes no cap
func (w *Window) Unlimited() bool {
	return w.limiter.Limit() == rate.Inf
}

// FromConfig builds the pause and window limiter of a run
func FromConfig(cfg config.RateLimitConfig) (*Pause, *Window) {
	return NewPause(cfg.PageDelay), NewWindow(cfg.RequestsPerWindow, cfg.Window)
}
