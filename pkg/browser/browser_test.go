package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"bilagscraper/pkg/config"
	"bilagscraper/pkg/logger"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<!doctype html>
<html><body>
<form method="post" action="/login">
  <input id="Email" name="Email">
  <input id="Password" name="Password" type="password">
  <button class="btn btn-primary btn-large" type="submit">Log ind</button>
</form>
</body></html>`

const listingPage = `<!doctype html>
<html><body>
<ul class="documents clearfix"><li id="101"><span class="label date">01-02-2024</span></li></ul>
</body></html>`

func findChrome(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no Chrome binary found")
	return ""
}

func newPortal(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/bilag", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("Email") != "user@example.com" {
			http.Error(w, "bad login", http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "ASP.NET_SessionId", Value: "abc", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "SessionKey", Value: "k", Path: "/", Expires: time.Now().Add(time.Hour)})
		http.Redirect(w, r, "/bilag/oversigt", http.StatusFound)
	})
	mux.HandleFunc("/bilag/oversigt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBrowserSignInFlow(t *testing.T) {
	chrome := findChrome(t)
	srv := newPortal(t)

	cfg := config.DefaultConfig().Browser
	cfg.ExecPath = chrome

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	b, err := Open(ctx, &cfg, logger.NewNopLogger())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Navigate(ctx, srv.URL+"/bilag"))
	require.NoError(t, b.WaitVisible(ctx, "#Email"))
	require.NoError(t, b.SendKeys(ctx, "#Email", "user@example.com"))
	require.NoError(t, b.SendKeys(ctx, "#Password", "hunter2"))
	require.NoError(t, b.Click(ctx, "button.btn.btn-primary.btn-large"))
	require.NoError(t, b.WaitVisible(ctx, ".documents.clearfix"))

	location, err := b.Location(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(location, "/bilag/oversigt"), "location %q", location)

	html, err := b.OuterHTML(ctx, ".documents.clearfix")
	require.NoError(t, err)
	assert.Contains(t, html, `id="101"`)

	cookies, err := b.Cookies(ctx)
	require.NoError(t, err)
	names := make(map[string]*http.Cookie)
	for _, c := range cookies {
		names[c.Name] = c
	}
	require.Contains(t, names, "ASP.NET_SessionId")
	require.Contains(t, names, "SessionKey")
	assert.Equal(t, "abc", names["ASP.NET_SessionId"].Value)
	assert.True(t, names["ASP.NET_SessionId"].Expires.IsZero())
	assert.False(t, names["SessionKey"].Expires.IsZero())

	require.NoError(t, b.Close())
	assert.NoError(t, b.Close(), "Close must be idempotent")
}

func TestBrowserHonoursCallerDeadline(t *testing.T) {
	chrome := findChrome(t)
	srv := newPortal(t)

	cfg := config.DefaultConfig().Browser
	cfg.ExecPath = chrome

	b, err := Open(context.Background(), &cfg, logger.NewNopLogger())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Navigate(context.Background(), srv.URL+"/bilag"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = b.WaitVisible(ctx, "#does-not-exist")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestToHTTPCookie(t *testing.T) {
	persistent := toHTTPCookie(&network.Cookie{
		Name:     "SessionKey",
		Value:    "k",
		Domain:   "mine.spiir.dk",
		Path:     "/",
		Expires:  1700000000.5,
		Secure:   true,
		HTTPOnly: true,
	})
	assert.Equal(t, "SessionKey", persistent.Name)
	assert.Equal(t, "mine.spiir.dk", persistent.Domain)
	assert.True(t, persistent.Secure)
	assert.True(t, persistent.HttpOnly)
	assert.Equal(t, time.Unix(1700000000, 500000000), persistent.Expires)

	session := toHTTPCookie(&network.Cookie{Name: "ASP.NET_SessionId", Value: "abc", Session: true, Expires: -1})
	assert.True(t, session.Expires.IsZero())
}
