package session

import (
	"net/http"
	"strings"
	"time"

	errs "bilagscraper/pkg/errors"
)

// ErrSessionExpired is returned by Validate once a captured cookie has expired
var ErrSessionExpired = errs.New(errs.ErrorTypeAuth, "session expired")

// Session is the authenticated context captured from the browser. Its
// cookies are replayed on plain HTTP requests through Header.
type Session struct {
	cookies    []*http.Cookie
	capturedAt time.Time
}

// New builds a Session from already filtered cookies
func New(cookies []*http.Cookie, capturedAt time.Time) *Session {
	kept := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c != nil {
			copied := *c
			kept = append(kept, &copied)
		}
	}
	return &Session{cookies: kept, capturedAt: capturedAt}
}

// FilterCookies keeps the cookies whose names are in allowList, in their
// original order
func FilterCookies(cookies []*http.Cookie, allowList []string) []*http.Cookie {
	allowed := make(map[string]struct{}, len(allowList))
	for _, name := range allowList {
		allowed[name] = struct{}{}
	}

	out := make([]*http.Cookie, 0, len(allowList))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		if _, ok := allowed[c.Name]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Header renders the Cookie header value, "name=value; name=value"
func (s *Session) Header() string {
	if s == nil {
		return ""
	}
	pairs := make([]string, 0, len(s.cookies))
	for _, c := range s.cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// Empty reports whether no allow-listed cookie was captured
func (s *Session) Empty() bool {
	return s == nil || len(s.cookies) == 0
}

// Names lists the captured cookie names
func (s *Session) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.cookies))
	for _, c := range s.cookies {
		names = append(names, c.Name)
	}
	return names
}

// CapturedAt is when the cookies were read from the browser
func (s *Session) CapturedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.capturedAt
}

// ExpiresAt returns the earliest expiry among persistent cookies. Session
// cookies have no expiry and ok is false when every cookie is one.
func (s *Session) ExpiresAt() (t time.Time, ok bool) {
	if s == nil {
		return time.Time{}, false
	}
	for _, c := range s.cookies {
		if c.Expires.IsZero() {
			continue
		}
		if !ok || c.Expires.Before(t) {
			t, ok = c.Expires, true
		}
	}
	return t, ok
}

// Validate returns ErrSessionExpired when the session has expired at now.
// An empty session is not invalid here; the portal decides that at fetch time.
func (s *Session) Validate(now time.Time) error {
	if expires, ok := s.ExpiresAt(); ok && !now.Before(expires) {
		return ErrSessionExpired
	}
	return nil
}
