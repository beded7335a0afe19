package downloader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	errs "bilagscraper/pkg/errors"
	"bilagscraper/pkg/logger"
	"bilagscraper/pkg/portal"
	"bilagscraper/pkg/ratelimit"
	"bilagscraper/pkg/session"
)

// ImageClient downloads one image with a Cookie header
type ImageClient interface {
	DownloadURL(id string) string
	FetchImage(ctx context.Context, id, cookieHeader string) (*portal.Image, error)
}

// ImageStore writes downloaded images
type ImageStore interface {
	SaveImage(r io.Reader, id string) (string, error)
}

// Fetcher downloads every listed document, one result per id
type Fetcher struct {
	client   ImageClient
	store    ImageStore
	limiter  ratelimit.Limiter
	workers  int
	reporter Reporter
	logger   logger.Logger
	now      func() time.Time
}

// NewFetcher creates a Fetcher. workers below 2 fetch sequentially in order.
func NewFetcher(client ImageClient, store ImageStore, limiter ratelimit.Limiter, workers int, reporter Reporter, log logger.Logger) *Fetcher {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if reporter == nil {
		reporter = ReporterFunc(func(Result) {})
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		client:   client,
		store:    store,
		limiter:  limiter,
		workers:  workers,
		reporter: reporter,
		logger:   log.WithField("component", "fetcher"),
		now:      time.Now,
	}
}

// Fetch attempts every id, duplicates included, and returns the results in
// input order. A failed item never stops the batch; items not reached before
// ctx is cancelled come back as OutcomeCancelled.
func (f *Fetcher) Fetch(ctx context.Context, ids []string, sess *session.Session) []Result {
	results := make([]Result, len(ids))
	done := make([]bool, len(ids))
	if len(ids) == 0 {
		return results
	}

	logger.LogComponentStart(f.logger, "fetcher", map[string]interface{}{
		"documents": len(ids),
		"workers":   f.workers,
	})

	process := func(ctx context.Context, job Job) Result {
		return f.process(ctx, job, sess)
	}

	pool := NewWorkerPool(ctx, f.workers, process, f.logger)
	pool.Start()

	go func() {
		defer pool.Stop()
		for i, id := range ids {
			job := Job{Index: i, ID: id, URL: f.client.DownloadURL(id)}
			if err := pool.Submit(job); err != nil {
				return
			}
		}
	}()

	for r := range pool.Results() {
		results[r.Index] = r
		done[r.Index] = true
	}

	for i, id := range ids {
		if done[i] {
			continue
		}
		r := Result{
			Index:   i,
			ID:      id,
			URL:     f.client.DownloadURL(id),
			Outcome: OutcomeCancelled,
			Err:     ctx.Err(),
		}
		results[i] = r
		f.reporter.Report(r)
	}

	logger.LogComponentStop(f.logger, "fetcher", "batch finished")
	return results
}

func (f *Fetcher) process(ctx context.Context, job Job, sess *session.Session) Result {
	start := f.now()
	result := Result{Index: job.Index, ID: job.ID, URL: job.URL}
	defer func() {
		result.Duration = f.now().Sub(start)
		logger.LogFetch(f.logger, result.ID, string(result.Outcome), result.Size, result.Err)
		f.reporter.Report(result)
	}()

	if err := sess.Validate(f.now()); err != nil {
		result.Outcome = OutcomeSessionExpired
		result.Err = err
		return result
	}

	if err := f.limiter.Wait(ctx); err != nil {
		result.Outcome = OutcomeCancelled
		result.Err = err
		return result
	}

	img, err := f.client.FetchImage(ctx, job.ID, sess.Header())
	if img != nil {
		result.StatusCode = img.StatusCode
		result.ContentType = img.ContentType
	}
	if err != nil {
		result.Err = err
		result.Outcome = classify(ctx, err)
		return result
	}

	path, err := f.store.SaveImage(bytes.NewReader(img.Data), job.ID)
	if err != nil {
		result.Outcome = OutcomeSaveError
		result.Err = errs.Wrap(errs.ErrorTypeIO, "save "+job.ID+".jpg", err)
		return result
	}

	result.Outcome = OutcomeDownloaded
	result.Path = path
	result.Size = len(img.Data)
	return result
}

func classify(ctx context.Context, err error) Outcome {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return OutcomeCancelled
	}

	switch errs.TypeOf(err) {
	case errs.ErrorTypeAuth:
		return OutcomeAuthFailed
	case errs.ErrorTypeStatus, errs.ErrorTypeRateLimit, errs.ErrorTypeServerError:
		return OutcomeHTTPError
	default:
		return OutcomeTransportError
	}
}
