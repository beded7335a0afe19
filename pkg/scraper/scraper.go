package scraper

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"bilagscraper/internal/downloader"
	"bilagscraper/pkg/auth"
	"bilagscraper/pkg/browser"
	"bilagscraper/pkg/config"
	errs "bilagscraper/pkg/errors"
	"bilagscraper/pkg/listing"
	"bilagscraper/pkg/logger"
	"bilagscraper/pkg/manifest"
	"bilagscraper/pkg/portal"
	"bilagscraper/pkg/ratelimit"
	"bilagscraper/pkg/session"
	"bilagscraper/pkg/storage"
	"bilagscraper/pkg/ui"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("bilagscraper/scraper")

// Browser is the headless browser a run signs in and lists with
type Browser interface {
	session.Driver
	listing.PageSource
	Close() error
}

// BrowserFactory starts a browser for one run
type BrowserFactory func(ctx context.Context) (Browser, error)

// ChromeFactory starts Chrome through chromedp
func ChromeFactory(cfg *config.BrowserConfig, log logger.Logger) BrowserFactory {
	return func(ctx context.Context) (Browser, error) {
		b, err := browser.Open(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// Option customizes a Scraper
type Option func(*Scraper)

// WithBrowserFactory replaces the Chrome launcher
func WithBrowserFactory(f BrowserFactory) Option {
	return func(s *Scraper) { s.newBrowser = f }
}

// WithImageClient replaces the portal download client
func WithImageClient(c downloader.ImageClient) Option {
	return func(s *Scraper) { s.client = c }
}

// WithReporter receives every fetch result as it completes
func WithReporter(r downloader.Reporter) Option {
	return func(s *Scraper) { s.reporter = r }
}

// WithManifest stores the run manifest with m. A nil m disables it.
func WithManifest(m *manifest.Manager) Option {
	return func(s *Scraper) { s.manifests = m }
}

// WithNotifier sends desktop notifications with n. A nil n disables them.
func WithNotifier(n *ui.Notifier) Option {
	return func(s *Scraper) { s.notifier = n }
}

// WithOutput sets where the summary table is written. nil hides it.
func WithOutput(w io.Writer) Option {
	return func(s *Scraper) { s.out = w }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// Scraper runs sign-in, listing and download for one account
type Scraper struct {
	config     *config.Config
	account    *auth.Account
	newBrowser BrowserFactory
	client     downloader.ImageClient
	limiter    ratelimit.Limiter
	reporter   downloader.Reporter
	manifests  *manifest.Manager
	notifier   *ui.Notifier
	out        io.Writer
	logger     logger.Logger
	now        func() time.Time
}

// New creates a Scraper for account. Without options it drives Chrome,
// prints each fetch and the summary to stdout, and keeps the manifest and
// notifications as cfg says.
func New(cfg *config.Config, account *auth.Account, opts ...Option) (*Scraper, error) {
	if cfg == nil {
		return nil, errs.New(errs.ErrorTypeConfig, "configuration is required")
	}

	s := &Scraper{
		config:   cfg,
		account:  account,
		limiter:  ratelimit.New(cfg.RateLimit.RequestsPerMinute),
		reporter: ui.FetchReporter{},
		out:      os.Stdout,
		logger:   logger.GetLogger(),
		now:      time.Now,
	}
	if cfg.Output.ManifestEnabled {
		m, err := manifest.NewManager()
		if err != nil {
			return nil, fmt.Errorf("failed to create manifest manager: %w", err)
		}
		s.manifests = m
	}
	if cfg.Notifications.Enabled {
		s.notifier = ui.NewNotifier(cfg.Notifications.OnComplete, cfg.Notifications.OnError)
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.WithField("component", "scraper")
	if s.newBrowser == nil {
		s.newBrowser = ChromeFactory(&cfg.Browser, s.logger)
	}
	if s.client == nil {
		s.client = portal.NewClient(cfg, s.logger)
	}
	return s, nil
}

// Run executes the pipeline. A run that reaches the download stage returns
// its Summary even when items failed; the error is only set when the run
// itself could not complete.
func (s *Scraper) Run(ctx context.Context) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "scraper.Run")
	defer span.End()

	summary, err := s.run(ctx)
	if summary != nil {
		span.SetAttributes(
			attribute.Int("listed", summary.Listed()),
			attribute.Int("downloaded", summary.Downloaded()),
			attribute.Int("failed", summary.Failed()),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WithError(err).Error("Run failed")
		if s.notifier != nil {
			if nerr := s.notifier.NotifyError(err); nerr != nil {
				s.logger.WithError(nerr).Debug("Failed to send notification")
			}
		}
	}
	return summary, err
}

func (s *Scraper) run(ctx context.Context) (*Summary, error) {
	started := s.now()

	if s.account == nil || !s.account.Complete() {
		return nil, errs.Wrap(errs.ErrorTypeConfig, "cannot sign in", config.ErrMissingCredentials)
	}

	store, err := storage.NewManager(s.config.Download.Directory)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, "cannot prepare download directory", err)
	}

	logger.LogComponentStart(s.logger, "scraper", map[string]interface{}{
		"email":        s.account.Email,
		"portal":       s.config.Portal.BaseURL,
		"download_dir": s.config.Download.Directory,
	})

	sess, listed, err := s.signInAndList(ctx)
	if err != nil {
		return nil, err
	}

	fetcher := downloader.NewFetcher(s.client, store, s.limiter, s.config.Download.Concurrency, s.reporter, s.logger)
	results := fetcher.Fetch(ctx, listed.IDs, sess)

	summary := &Summary{
		Email:       s.account.Email,
		StartedAt:   started,
		FinishedAt:  s.now(),
		DetailsFile: listed.DetailsFile,
		DownloadDir: s.config.Download.Directory,
		Documents:   listed.Documents,
		Skipped:     listed.Skipped,
		Results:     results,
		Counts:      downloader.Tally(results),
	}
	s.finish(summary)

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("download interrupted: %w", err)
	}
	logger.LogComponentStop(s.logger, "scraper", "completed")
	return summary, nil
}

// withBrowser starts a browser, hands it to fn and closes it before
// returning, whatever fn did
func (s *Scraper) withBrowser(ctx context.Context, fn func(Browser) error) error {
	b, err := s.newBrowser(ctx)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close browser")
		}
	}()
	return fn(b)
}

// signInAndList runs inside withBrowser so that no download overlaps with
// the browser
func (s *Scraper) signInAndList(ctx context.Context) (sess *session.Session, listed *listing.Result, err error) {
	err = s.withBrowser(ctx, func(b Browser) error {
		establisher := session.NewEstablisher(b, session.OptionsFromConfig(s.config), s.logger)
		sess, err = establisher.SignIn(ctx, s.config.Portal.LoginURL(), s.account)
		if err != nil {
			return err
		}

		listCtx, cancel := context.WithTimeout(ctx, s.config.Browser.ListingTimeout)
		defer cancel()

		lister := listing.NewLister(b, s.config.Portal.Selectors, s.config.Output.DetailsFile, s.logger)
		listed, err = lister.Scrape(listCtx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, listed, nil
}

func (s *Scraper) finish(summary *Summary) {
	metrics := map[string]interface{}{
		"listed":       summary.Listed(),
		"skipped_rows": summary.Skipped,
		"duration_ms":  summary.Duration().Milliseconds(),
	}
	for o, n := range summary.Counts {
		metrics[string(o)] = n
	}
	logger.LogMetrics(s.logger, "run", metrics)

	if s.out != nil {
		ui.RenderSummary(s.out, ui.RunTotals{
			Listed:   summary.Listed(),
			Skipped:  summary.Skipped,
			Duration: summary.Duration(),
		}, summary.Results)
	}

	if s.manifests != nil {
		if err := s.manifests.Save(summary.Manifest()); err != nil {
			s.logger.WithError(err).Warn("Failed to save run manifest")
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifySummary(summary.Downloaded(), summary.Failed()); err != nil {
			s.logger.WithError(err).Debug("Failed to send notification")
		}
	}
}
