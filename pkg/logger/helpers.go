package logger

// LogRequest logs a completed search request at a level matching its status
func LogRequest(log Logger, kind string, statusCode int, records int, durationMs int64) {
	fields := map[string]interface{}{
		"kind":        kind,
		"status_code": statusCode,
		"records":     records,
		"duration_ms": durationMs,
	}

	switch {
	case statusCode >= 500:
		log.ErrorWithFields("Search request server error", fields)
	case statusCode >= 400:
		log.WarnWithFields("Search request client error", fields)
	default:
		log.DebugWithFields("Search request completed", fields)
	}
}

// LogProgress logs cumulative harvest progress against the target
func LogProgress(log Logger, collected, target int) {
	percentage := 0.0
	if target > 0 {
		percentage = float64(collected) / float64(target) * 100
	}

	log.InfoWithFields("Harvest progress", map[string]interface{}{
		"collected":  collected,
		"target":     target,
		"percentage": percentage,
	})
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
