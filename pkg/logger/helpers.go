package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs an HTTP exchange against the portal
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	default:
		l.WarnWithFields("HTTP request client error", fields)
	}
}

// LogFetch logs the outcome of a single document download
func LogFetch(l Logger, id, outcome string, size int, err error) {
	entry := l.WithFields(map[string]interface{}{
		"document_id": id,
		"outcome":     outcome,
		"size":        size,
	})

	if err != nil {
		entry.WithError(err).Warn("Document fetch failed")
		return
	}
	entry.Info("Document fetched")
}

// LogListing logs what a listing scrape produced
func LogListing(l Logger, kept, skipped int, detailsFile string) {
	l.InfoWithFields("Listing scraped", map[string]interface{}{
		"documents":    kept,
		"skipped_rows": skipped,
		"details_file": detailsFile,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, fields map[string]interface{}) {
	entry := l.WithField("component", component)
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogMetrics logs end-of-run counters
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := mergeFields(map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}, metrics)
	l.InfoWithFields("Run metrics", fields)
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
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
