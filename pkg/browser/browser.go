package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"bilagscraper/pkg/config"
	errs "bilagscraper/pkg/errors"
	"bilagscraper/pkg/logger"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Browser is a single Chrome tab driven over the DevTools protocol. It is
// released by Close, which is safe to call more than once.
type Browser struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	log         logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open launches Chrome with one tab. The process ends when Close is called or
// ctx is cancelled.
func Open(ctx context.Context, cfg *config.BrowserConfig, log logger.Logger) (*Browser, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	b := &Browser{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		log:         log.WithField("component", "browser"),
	}

	// The first Run must use the tab context itself; it starts the process.
	start := time.Now()
	if err := chromedp.Run(tabCtx); err != nil {
		b.Close()
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "failed to start browser", err)
	}

	b.log.DebugWithFields("Browser started", map[string]interface{}{
		"headless": cfg.Headless,
		"startup":  time.Since(start),
	})
	return b, nil
}

// Close shuts the browser down and releases its process
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		if err := chromedp.Cancel(b.ctx); err != nil && err != context.Canceled {
			b.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		b.cancelTab()
		b.cancelAlloc()
		b.log.Debug("Browser closed")
	})
	return b.closeErr
}

// run executes actions on the tab, bounded by ctx's deadline and cancellation
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Navigate loads url in the tab and waits for the load event
func (b *Browser) Navigate(ctx context.Context, url string) error {
	b.log.DebugWithFields("Navigating", map[string]interface{}{"url": url})
	return b.run(ctx, chromedp.Navigate(url))
}

// WaitVisible blocks until an element matching selector is visible
func (b *Browser) WaitVisible(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// SendKeys types text into the element matching selector
func (b *Browser) SendKeys(ctx context.Context, selector, text string) error {
	return b.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// Click clicks the element matching selector
func (b *Browser) Click(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// Location returns the tab's current URL
func (b *Browser) Location(ctx context.Context) (string, error) {
	var location string
	if err := b.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

// OuterHTML returns the markup of the first element matching selector
func (b *Browser) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	if err := b.run(ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Cookies returns the cookies visible to the current page, in browser order
func (b *Browser) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var raw []*network.Cookie
	err := b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, toHTTPCookie(c))
	}
	return cookies, nil
}

func toHTTPCookie(c *network.Cookie) *http.Cookie {
	cookie := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
	}
	if !c.Session && c.Expires > 0 {
		sec := int64(c.Expires)
		nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
		cookie.Expires = time.Unix(sec, nsec)
	}
	return cookie
}
