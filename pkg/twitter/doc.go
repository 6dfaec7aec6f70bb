// Package twitter provides the data model and HTTP client for the
// full-archive search endpoint.
//
// SearchRequest is an immutable description of one call; the paginator
// derives each request from the previous one with WithMaxResults and
// WithNextToken. Client.Search returns a ResultPage or a typed error from
// pkg/errors:
//
//	client := twitter.NewClientFromConfig(cfg, token, collector, log)
//	req := twitter.NewSearchRequest(query, start, end, twitter.DefaultFields)
//	page, err := client.Search(ctx, req.WithMaxResults(300))
//	if errs.Is(err, errs.ErrorTypeRateLimit) { ... }
package twitter
