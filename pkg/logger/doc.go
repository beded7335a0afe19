// Package logger provides the structured logging interface used across bilagscraper.
//
// It wraps zerolog with a small Logger interface so components can take a
// logger as a dependency and tests can swap in NewTestLogger or NewNopLogger.
// Console output uses coloured four-letter levels; when LoggingConfig.File is
// set, JSON lines are also appended to that file.
//
// Basic Usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("document_id", "101").Info("Document fetched")
//
// Components log through an injected Logger:
//
//	log := logger.GetLogger().WithField("component", "listing")
//	log.InfoWithFields("Listing scraped", map[string]interface{}{
//	    "documents":    12,
//	    "skipped_rows": 1,
//	})
package logger
