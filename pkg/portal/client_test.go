package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bilagscraper/pkg/config"
	errs "bilagscraper/pkg/errors"
	"bilagscraper/pkg/logger"
	"bilagscraper/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 'J', 'F', 'I', 'F'}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Portal.BaseURL = srv.URL
	cfg.Download.Timeout = 2 * time.Second

	return NewClient(cfg, logger.NewNopLogger()), srv
}

func TestFetchImageSuccess(t *testing.T) {
	var gotCookie, gotPath string
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpeg)
	})

	img, err := client.FetchImage(context.Background(), "101", "ASP.NET_SessionId=abc; SessionKey=xyz")
	require.NoError(t, err)

	assert.Equal(t, jpeg, img.Data)
	assert.Equal(t, http.StatusOK, img.StatusCode)
	assert.Equal(t, srv.URL+"/bilag/download/101.jpg", img.URL)
	assert.Equal(t, "/bilag/download/101.jpg", gotPath)
	assert.Equal(t, "ASP.NET_SessionId=abc; SessionKey=xyz", gotCookie)
}

func TestFetchImageClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		wantType    errs.ErrorType
	}{
		{"login page instead of image", http.StatusOK, "text/html; charset=utf-8", errs.ErrorTypeAuth},
		{"jpeg with parameters", http.StatusOK, "image/jpeg; charset=binary", errs.ErrorTypeAuth},
		{"png", http.StatusOK, "image/png", errs.ErrorTypeAuth},
		{"forbidden", http.StatusForbidden, "text/html", errs.ErrorTypeStatus},
		{"not found", http.StatusNotFound, "image/jpeg", errs.ErrorTypeStatus},
		{"throttled", http.StatusTooManyRequests, "text/plain", errs.ErrorTypeRateLimit},
		{"server error", http.StatusInternalServerError, "text/plain", errs.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			})

			img, err := client.FetchImage(context.Background(), "7", "")
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errs.TypeOf(err))
			require.NotNil(t, img, "a received response is always returned")
			assert.Equal(t, tt.status, img.StatusCode)
		})
	}
}

func TestFetchImageRedirectToLogin(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Account/Login" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<form id=login></form>"))
			return
		}
		http.Redirect(w, r, "/Account/Login", http.StatusFound)
	})

	img, err := client.FetchImage(context.Background(), "101", "SessionKey=stale")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
	assert.Equal(t, http.StatusOK, img.StatusCode)
}

func TestFetchImageNoCookieJar(t *testing.T) {
	var cookies []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cookies = append(cookies, r.Header.Get("Cookie"))
		http.SetCookie(w, &http.Cookie{Name: "tracking", Value: "1", Path: "/"})
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpeg)
	})

	_, err := client.FetchImage(context.Background(), "1", "SessionKey=a")
	require.NoError(t, err)
	_, err = client.FetchImage(context.Background(), "2", "SessionKey=a")
	require.NoError(t, err)

	assert.Equal(t, []string{"SessionKey=a", "SessionKey=a"}, cookies)
}

func TestFetchImageTransportError(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	img, err := client.FetchImage(context.Background(), "1", "")
	require.Error(t, err)
	assert.Nil(t, img)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestFetchImageRetriesServerErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpeg)
	})
	client.retry.MaxAttempts = 3
	client.retry.Backoff = &retry.ConstantBackoff{Delay: time.Millisecond}

	img, err := client.FetchImage(context.Background(), "1", "")
	require.NoError(t, err)
	assert.Equal(t, jpeg, img.Data)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchImageDoesNotRetryAuthFailures(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("login"))
	})
	client.retry.MaxAttempts = 3
	client.retry.Backoff = &retry.ConstantBackoff{Delay: time.Millisecond}

	_, err := client.FetchImage(context.Background(), "1", "")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchImageCancelled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.FetchImage(ctx, "1", "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
