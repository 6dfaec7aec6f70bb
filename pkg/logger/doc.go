// Package logger provides the structured logging interface used across tweetharvest.
//
// It wraps zerolog with a small Logger interface so that packages depend on
// the interface and tests can substitute NewTestLogger or NewNopLogger.
// Console output goes to stderr; an optional log file receives the same events.
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "paginator")
//	log.InfoWithFields("Page persisted", map[string]interface{}{
//	    "records": 500,
//	    "kind":    "full",
//	})
package logger
