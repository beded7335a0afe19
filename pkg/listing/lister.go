package listing

import (
	"context"
	"fmt"
	"strings"

	"bilagscraper/pkg/config"
	errs "bilagscraper/pkg/errors"
	"bilagscraper/pkg/logger"
	"bilagscraper/pkg/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("bilagscraper/listing")

// PageSource exposes the rendered page of a signed-in browser tab
type PageSource interface {
	WaitVisible(ctx context.Context, selector string) error
	OuterHTML(ctx context.Context, selector string) (string, error)
}

// Result is what one listing scrape produced
type Result struct {
	Documents   []Document
	IDs         []string
	Skipped     int
	DetailsFile string
}

// Lister scrapes the document listing and persists the details file
type Lister struct {
	page        PageSource
	selectors   config.SelectorsConfig
	detailsFile string
	log         logger.Logger
}

// NewLister creates a Lister reading from page
func NewLister(page PageSource, selectors config.SelectorsConfig, detailsFile string, log logger.Logger) *Lister {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Lister{
		page:        page,
		selectors:   selectors,
		detailsFile: detailsFile,
		log:         log.WithField("component", "listing"),
	}
}

// List scrapes the page and returns the document ids in page order
func (l *Lister) List(ctx context.Context) ([]string, error) {
	res, err := l.Scrape(ctx)
	if err != nil {
		return nil, err
	}
	return res.IDs, nil
}

// Scrape waits for the listing container, parses every entry and rewrites the
// details file. The ids are only returned once the file has been replaced, so
// a failed scrape leaves neither a new file nor an id list behind.
func (l *Lister) Scrape(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "listing.Scrape")
	defer span.End()

	res, err := l.scrape(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("documents", len(res.IDs)),
		attribute.Int("skipped_rows", res.Skipped),
	)
	return res, nil
}

func (l *Lister) scrape(ctx context.Context) (*Result, error) {
	if err := l.page.WaitVisible(ctx, l.selectors.Container); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("wait for listing: %w", ctx.Err())
		}
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "listing container "+l.selectors.Container+" not visible", err)
	}

	html, err := l.page.OuterHTML(ctx, l.selectors.Container)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "failed to read listing page", err)
	}

	docs, skipped, err := Parse(strings.NewReader(html), l.selectors)
	if err != nil {
		return nil, err
	}

	if err := storage.WriteFileAtomic(l.detailsFile, Render(docs), 0644); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, "failed to write "+l.detailsFile, err)
	}

	logger.LogListing(l.log, len(docs), skipped, l.detailsFile)
	if skipped > 0 {
		l.log.DebugWithFields("Skipped listing rows without an id", map[string]interface{}{
			"skipped_rows": skipped,
		})
	}

	return &Result{
		Documents:   docs,
		IDs:         IDs(docs),
		Skipped:     skipped,
		DetailsFile: l.detailsFile,
	}, nil
}
