package downloader

import (
	"fmt"
	"time"
)

// Outcome classifies what happened to one document
type Outcome string

const (
	OutcomeDownloaded     Outcome = "downloaded"
	OutcomeAuthFailed     Outcome = "auth_failed"
	OutcomeHTTPError      Outcome = "http_error"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeSaveError      Outcome = "save_error"
	OutcomeSessionExpired Outcome = "session_expired"
	OutcomeCancelled      Outcome = "cancelled"
)

// Outcomes lists every outcome in report order
var Outcomes = []Outcome{
	OutcomeDownloaded,
	OutcomeAuthFailed,
	OutcomeHTTPError,
	OutcomeTransportError,
	OutcomeSaveError,
	OutcomeSessionExpired,
	OutcomeCancelled,
}

// Job is one document to fetch. Index is its position in the id list.
type Job struct {
	Index int
	ID    string
	URL   string
}

// Result is the per-document record of a fetch
type Result struct {
	Index       int
	ID          string
	URL         string
	Outcome     Outcome
	StatusCode  int
	ContentType string
	Path        string
	Size        int
	Err         error
	Duration    time.Duration
}

// OK reports whether the image was written
func (r Result) OK() bool {
	return r.Outcome == OutcomeDownloaded
}

// Message is the line printed for this result
func (r Result) Message() string {
	switch r.Outcome {
	case OutcomeDownloaded:
		return fmt.Sprintf("Downloaded %s.jpg", r.ID)
	case OutcomeAuthFailed:
		return fmt.Sprintf("Authentication failed for %s - check that the session cookie is valid.", r.URL)
	case OutcomeHTTPError:
		return fmt.Sprintf("ERROR: Failed to download %s.jpg - status code %d", r.ID, r.StatusCode)
	case OutcomeSaveError:
		return fmt.Sprintf("ERROR: Failed to save %s.jpg - %v", r.ID, r.Err)
	case OutcomeSessionExpired:
		return fmt.Sprintf("Session expired before downloading %s.jpg - sign in again.", r.ID)
	case OutcomeCancelled:
		return fmt.Sprintf("Cancelled before downloading %s.jpg", r.ID)
	default:
		return fmt.Sprintf("ERROR: Failed to download %s.jpg - %v", r.ID, r.Err)
	}
}

// Tally counts results per outcome
func Tally(results []Result) map[Outcome]int {
	counts := make(map[Outcome]int, len(Outcomes))
	for _, r := range results {
		counts[r.Outcome]++
	}
	return counts
}

// Reporter is told about every finished document, from worker goroutines
type Reporter interface {
	Report(Result)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(Result)

func (f ReporterFunc) Report(r Result) { f(r) }
