// Package paginator walks a full-archive search result set page by page.
//
// A target of N results at page size P is fetched as N/P full pages
// followed by one remainder page of N%P results. The run stops early when a
// page carries no continuation token; that page is still persisted and no
// remainder is requested. Any request or persistence failure ends the run in
// StateFailed with the pages persisted so far left in place.
//
// In sequential mode page k is persisted before page k+1 is requested. In
// pipelined mode pages go through a depth-1 hand-off to a single persister
// goroutine, which keeps the output order and reports a fetch failure only
// after the in-flight write has finished.
package paginator
