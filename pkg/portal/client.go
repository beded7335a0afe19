package portal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bilagscraper/pkg/config"
	errs "bilagscraper/pkg/errors"
	"bilagscraper/pkg/logger"
	"bilagscraper/pkg/retry"
	"bilagscraper/pkg/telemetry"

	"github.com/go-resty/resty/v2"
)

// JPEGContentType is the only Content-Type accepted as an image
const JPEGContentType = "image/jpeg"

// Image is a response from the download endpoint
type Image struct {
	URL         string
	StatusCode  int
	ContentType string
	Data        []byte
}

// Client downloads receipt images with a replayed session cookie
type Client struct {
	http   *resty.Client
	portal config.PortalConfig
	retry  *retry.Config
	log    logger.Logger
}

// NewClient creates a portal client. The resty cookie jar is disabled so the
// only cookies sent are the ones passed to FetchImage.
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "portal")

	httpClient := resty.New().
		SetCookieJar(nil).
		SetTimeout(cfg.Download.Timeout).
		SetHeader("Accept", "image/jpeg,image/*;q=0.8,*/*;q=0.5")
	if cfg.Browser.UserAgent != "" {
		httpClient.SetHeader("User-Agent", cfg.Browser.UserAgent)
	}
	telemetry.InstrumentResty(httpClient, "bilagscraper/portal")

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Download.MaxAttempts
	retryCfg.Logger = log

	return &Client{
		http:   httpClient,
		portal: cfg.Portal,
		retry:  retryCfg,
		log:    log,
	}
}

// DownloadURL returns the image URL for a document id
func (c *Client) DownloadURL(id string) string {
	return c.portal.DownloadURL(id)
}

// FetchImage downloads the image for id. It succeeds only on status 200 with
// Content-Type exactly image/jpeg. Otherwise the returned error is typed:
// ErrorTypeAuth for a 200 with another content type, a status error carrying
// the code for any other status, and ErrorTypeNetwork when no response came
// back. The Image is returned whenever a response was received.
func (c *Client) FetchImage(ctx context.Context, id, cookieHeader string) (*Image, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*Image, error) {
		return c.fetchOnce(ctx, id, cookieHeader)
	}, c.retry)
}

func (c *Client) fetchOnce(ctx context.Context, id, cookieHeader string) (*Image, error) {
	url := c.DownloadURL(id)
	start := time.Now()

	req := c.http.R().SetContext(ctx)
	if cookieHeader != "" {
		req.SetHeader("Cookie", cookieHeader)
	}

	resp, err := req.Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "request to "+url+" failed", err)
	}
	logger.LogRequest(c.log, http.MethodGet, url, resp.StatusCode(), time.Since(start))

	img := &Image{
		URL:         url,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Data:        resp.Body(),
	}

	if img.StatusCode != http.StatusOK {
		e := errs.FromStatus(img.StatusCode, fmt.Sprintf("unexpected status downloading %s", url))
		return img, e
	}
	if img.ContentType != JPEGContentType {
		return img, errs.New(errs.ErrorTypeAuth,
			fmt.Sprintf("got %q instead of %s from %s", img.ContentType, JPEGContentType, url))
	}
	return img, nil
}
