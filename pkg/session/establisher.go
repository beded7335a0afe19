package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bilagscraper/pkg/auth"
	"bilagscraper/pkg/config"
	errs "bilagscraper/pkg/errors"
	"bilagscraper/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrLoginTimeout is returned when the portal does not finish signing in
// within the login timeout
var ErrLoginTimeout = errs.New(errs.ErrorTypeTimeout, "login timed out")

var tracer = otel.Tracer("bilagscraper/session")

// Driver is the part of a browser the sign-in flow needs
type Driver interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	Location(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// Options controls selectors, the cookie allow-list and the readiness waits
type Options struct {
	EmailSelector    string
	PasswordSelector string
	SubmitSelector   string
	AllowList        []string

	PageLoadTimeout time.Duration
	LoginTimeout    time.Duration
	PollInterval    time.Duration
}

// OptionsFromConfig collects the sign-in settings from cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		EmailSelector:    cfg.Portal.Selectors.EmailField,
		PasswordSelector: cfg.Portal.Selectors.PasswordField,
		SubmitSelector:   cfg.Portal.Selectors.SubmitButton,
		AllowList:        cfg.Portal.CookieAllowList,
		PageLoadTimeout:  cfg.Browser.PageLoadTimeout,
		LoginTimeout:     cfg.Browser.LoginTimeout,
		PollInterval:     cfg.Browser.PollInterval,
	}
}

// Establisher signs in through a browser and captures the session cookies
type Establisher struct {
	driver Driver
	opts   Options
	log    logger.Logger
	now    func() time.Time
}

// NewEstablisher creates an Establisher driving d
func NewEstablisher(d Driver, opts Options, log logger.Logger) *Establisher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Establisher{
		driver: d,
		opts:   opts,
		log:    log.WithField("component", "session"),
		now:    time.Now,
	}
}

// SignIn loads loginURL, submits the account's credentials and waits until
// the portal has signed the browser in. It returns the allow-listed cookies
// as a Session; a Session without cookies is not an error.
func (e *Establisher) SignIn(ctx context.Context, loginURL string, account *auth.Account) (*Session, error) {
	ctx, span := tracer.Start(ctx, "session.SignIn", trace.WithAttributes(
		attribute.String("login_url", loginURL),
	))
	defer span.End()

	sess, err := e.signIn(ctx, loginURL, account)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.StringSlice("cookies", sess.Names()),
		attribute.Bool("empty", sess.Empty()),
	)
	return sess, nil
}

func (e *Establisher) signIn(ctx context.Context, loginURL string, account *auth.Account) (*Session, error) {
	if loginURL == "" {
		return nil, errs.New(errs.ErrorTypeConfig, "login URL is required")
	}
	if account == nil || account.Email == "" || account.Password == "" {
		return nil, fmt.Errorf("sign in: %w", config.ErrMissingCredentials)
	}

	e.log.InfoWithFields("Signing in", map[string]interface{}{
		"url":   loginURL,
		"email": account.Email,
	})

	loginLocation, err := e.submitLogin(ctx, loginURL, account)
	if err != nil {
		return nil, err
	}

	if err := e.waitUntilSignedIn(ctx, loginLocation); err != nil {
		return nil, err
	}

	cookies, err := e.driver.Cookies(ctx)
	if err != nil {
		return nil, e.stageError(ctx, "read cookies", err)
	}

	sess := New(FilterCookies(cookies, e.opts.AllowList), e.now())
	if sess.Empty() {
		e.log.WarnWithFields("No session cookies captured; downloads will likely fail authentication", map[string]interface{}{
			"allow_list":     e.opts.AllowList,
			"cookies_in_tab": len(cookies),
		})
	} else {
		e.log.InfoWithFields("Session captured", map[string]interface{}{
			"cookies": sess.Names(),
		})
	}
	return sess, nil
}

// submitLogin fills and submits the login form and returns the URL the form
// was served from
func (e *Establisher) submitLogin(ctx context.Context, loginURL string, account *auth.Account) (string, error) {
	loadCtx, cancel := context.WithTimeout(ctx, e.opts.PageLoadTimeout)
	defer cancel()

	if err := e.driver.Navigate(loadCtx, loginURL); err != nil {
		return "", e.stageError(ctx, "navigate to login page", err)
	}
	if err := e.driver.WaitVisible(loadCtx, e.opts.EmailSelector); err != nil {
		return "", e.stageError(ctx, "wait for "+e.opts.EmailSelector, err)
	}

	loginLocation, err := e.driver.Location(loadCtx)
	if err != nil {
		return "", e.stageError(ctx, "read login page location", err)
	}

	if err := e.driver.SendKeys(loadCtx, e.opts.EmailSelector, account.Email); err != nil {
		return "", e.stageError(ctx, "fill "+e.opts.EmailSelector, err)
	}
	if err := e.driver.SendKeys(loadCtx, e.opts.PasswordSelector, account.Password); err != nil {
		return "", e.stageError(ctx, "fill "+e.opts.PasswordSelector, err)
	}
	if err := e.driver.Click(loadCtx, e.opts.SubmitSelector); err != nil {
		return "", e.stageError(ctx, "click "+e.opts.SubmitSelector, err)
	}

	return loginLocation, nil
}

// waitUntilSignedIn polls until the browser has left the login page or holds
// every allow-listed cookie
func (e *Establisher) waitUntilSignedIn(ctx context.Context, loginLocation string) error {
	pollCtx, cancel := context.WithTimeout(ctx, e.opts.LoginTimeout)
	defer cancel()

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	start := e.now()
	for polls := 1; ; polls++ {
		ready, err := e.signedIn(pollCtx, loginLocation)
		if ready {
			e.log.DebugWithFields("Login completed", map[string]interface{}{
				"polls":   polls,
				"elapsed": e.now().Sub(start),
			})
			return nil
		}
		if err != nil && pollCtx.Err() == nil {
			e.log.WithError(err).Debug("Login readiness probe failed")
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return fmt.Errorf("wait for login: %w", ctx.Err())
			}
			return fmt.Errorf("%w after %s", ErrLoginTimeout, e.opts.LoginTimeout)
		case <-ticker.C:
		}
	}
}

func (e *Establisher) signedIn(ctx context.Context, loginLocation string) (bool, error) {
	location, err := e.driver.Location(ctx)
	if err != nil {
		return false, err
	}
	if location != "" && location != loginLocation {
		return true, nil
	}

	cookies, err := e.driver.Cookies(ctx)
	if err != nil {
		return false, err
	}
	return len(FilterCookies(cookies, e.opts.AllowList)) >= len(e.opts.AllowList), nil
}

// stageError marks a failed browser step as a navigation error unless the
// caller's context ended first
func (e *Establisher) stageError(ctx context.Context, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", stage, ctxErr)
	}
	return errs.Wrap(errs.ErrorTypeNavigation, stage, err)
}
