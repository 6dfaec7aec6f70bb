// Package retry provides opt-in retry with backoff for search requests.
//
// Runs are configured with retry disabled, in which case FromSettings returns
// a single-attempt configuration and every failure surfaces immediately.
// When enabled only transport failures, rate limiting and server errors are
// retried (see DefaultRetryIf).
//
//	cfg := retry.FromSettings(appCfg.Retry, log)
//	page, err := retry.DoWithResult(ctx, func(ctx context.Context) (*twitter.ResultPage, error) {
//		return client.Search(ctx, req)
//	}, cfg)
package retry
