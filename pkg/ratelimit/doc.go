// Package ratelimit paces requests to the search endpoint.
//
// Two limiters are combined by the paginator: a fixed Pause between
// successive page requests, and a Window (golang.org/x/time/rate) that keeps
// the run within the per-window request quota of the endpoint.
//
//	pause, window := ratelimit.FromConfig(cfg.RateLimit)
//	if err := window.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
