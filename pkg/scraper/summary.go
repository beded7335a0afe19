package scraper

import (
	"time"

	"bilagscraper/internal/downloader"
	"bilagscraper/pkg/listing"
	"bilagscraper/pkg/manifest"
)

// Summary describes a finished run
type Summary struct {
	Email       string
	StartedAt   time.Time
	FinishedAt  time.Time
	DetailsFile string
	DownloadDir string

	Documents []listing.Document
	Skipped   int
	Results   []downloader.Result
	Counts    map[downloader.Outcome]int
}

// Listed is the number of ids the listing produced
func (s *Summary) Listed() int {
	return len(s.Documents)
}

// Downloaded counts the documents saved to disk
func (s *Summary) Downloaded() int {
	return s.Counts[downloader.OutcomeDownloaded]
}

// Failed counts the documents that were not saved
func (s *Summary) Failed() int {
	return len(s.Results) - s.Downloaded()
}

// Duration is the wall time of the run
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Manifest converts the summary into its stored form
func (s *Summary) Manifest() *manifest.Manifest {
	mf := &manifest.Manifest{
		Version:     manifest.Version,
		Email:       s.Email,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
		Listed:      s.Listed(),
		Skipped:     s.Skipped,
		DetailsFile: s.DetailsFile,
		DownloadDir: s.DownloadDir,
		Counts:      make(map[string]int, len(s.Counts)),
		Items:       make([]manifest.Item, 0, len(s.Results)),
	}
	for o, n := range s.Counts {
		mf.Counts[string(o)] = n
	}
	for _, r := range s.Results {
		item := manifest.Item{
			ID:         r.ID,
			URL:        r.URL,
			Outcome:    string(r.Outcome),
			StatusCode: r.StatusCode,
			Path:       r.Path,
			Size:       r.Size,
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		mf.Items = append(mf.Items, item)
	}
	return mf
}
