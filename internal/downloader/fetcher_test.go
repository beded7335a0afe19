package downloader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	errs "bilagscraper/pkg/errors"
	"bilagscraper/pkg/logger"
	"bilagscraper/pkg/portal"
	"bilagscraper/pkg/ratelimit"
	"bilagscraper/pkg/session"
	"bilagscraper/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockClient answers per id from a table. Unknown ids get a jpeg.
type MockClient struct {
	responses map[string]func() (*portal.Image, error)
	delay     time.Duration
	calls     int32

	mu      sync.Mutex
	cookies []string
}

func (m *MockClient) DownloadURL(id string) string {
	return "https://mine.spiir.dk/bilag/download/" + id + ".jpg"
}

func (m *MockClient) FetchImage(ctx context.Context, id, cookieHeader string) (*portal.Image, error) {
	atomic.AddInt32(&m.calls, 1)
	m.mu.Lock()
	m.cookies = append(m.cookies, cookieHeader)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fn, ok := m.responses[id]; ok {
		return fn()
	}
	return &portal.Image{
		URL:         m.DownloadURL(id),
		StatusCode:  http.StatusOK,
		ContentType: portal.JPEGContentType,
		Data:        []byte("jpeg-" + id),
	}, nil
}

func (m *MockClient) GetDownloadCount() int {
	return int(atomic.LoadInt32(&m.calls))
}

type failingStore struct{}

func (failingStore) SaveImage(r io.Reader, id string) (string, error) {
	return "", errors.New("disk full")
}

func validSession() *session.Session {
	return session.New([]*http.Cookie{
		{Name: "ASP.NET_SessionId", Value: "abc"},
		{Name: "SessionKey", Value: "xyz"},
	}, time.Now())
}

func newStore(t *testing.T) *storage.Manager {
	t.Helper()
	m, err := storage.NewManager(filepath.Join(t.TempDir(), "bilag"))
	require.NoError(t, err)
	return m
}

type recordingReporter struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingReporter) Report(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, res.Message())
}

func TestFetchClassifiesEachItem(t *testing.T) {
	client := &MockClient{responses: map[string]func() (*portal.Image, error){
		"102": func() (*portal.Image, error) {
			return &portal.Image{StatusCode: 403, ContentType: "text/html"}, errs.FromStatus(403, "forbidden")
		},
		"103": func() (*portal.Image, error) {
			return &portal.Image{StatusCode: 200, ContentType: "text/html"}, errs.New(errs.ErrorTypeAuth, "not an image")
		},
		"104": func() (*portal.Image, error) {
			return nil, errs.Wrap(errs.ErrorTypeNetwork, "request failed", errors.New("connection reset"))
		},
	}}
	store := newStore(t)
	reporter := &recordingReporter{}
	log := logger.NewTestLogger()

	f := NewFetcher(client, store, nil, 1, reporter, log)
	results := f.Fetch(context.Background(), []string{"101", "102", "103", "104", "105"}, validSession())

	require.Len(t, results, 5)
	want := []Outcome{OutcomeDownloaded, OutcomeHTTPError, OutcomeAuthFailed, OutcomeTransportError, OutcomeDownloaded}
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, want[i], r.Outcome, "result %d (%s)", i, r.ID)
	}

	assert.Equal(t, 403, results[1].StatusCode)
	assert.Equal(t, 200, results[2].StatusCode)

	assert.Equal(t, []string{
		"Downloaded 101.jpg",
		"ERROR: Failed to download 102.jpg - status code 403",
		"Authentication failed for https://mine.spiir.dk/bilag/download/103.jpg - check that the session cookie is valid.",
		"ERROR: Failed to download 104.jpg - network error: request failed: connection reset",
		"Downloaded 105.jpg",
	}, reporter.messages)

	data, err := os.ReadFile(store.ImagePath("101"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-101", string(data))
	for _, id := range []string{"102", "103", "104"} {
		_, err := os.Stat(store.ImagePath(id))
		assert.True(t, os.IsNotExist(err), "%s.jpg must not be written", id)
	}

	assert.Len(t, log.GetMessagesByLevel("WARN"), 3)
	assert.Equal(t, map[Outcome]int{
		OutcomeDownloaded:     2,
		OutcomeHTTPError:      1,
		OutcomeAuthFailed:     1,
		OutcomeTransportError: 1,
	}, Tally(results))
}

func TestFetchSendsSessionCookie(t *testing.T) {
	client := &MockClient{}
	f := NewFetcher(client, newStore(t), nil, 1, nil, logger.NewNopLogger())

	f.Fetch(context.Background(), []string{"1", "2"}, validSession())
	assert.Equal(t, []string{
		"ASP.NET_SessionId=abc; SessionKey=xyz",
		"ASP.NET_SessionId=abc; SessionKey=xyz",
	}, client.cookies)

	client.cookies = nil
	f.Fetch(context.Background(), []string{"3"}, session.New(nil, time.Now()))
	assert.Equal(t, []string{""}, client.cookies, "an empty session still attempts the fetch")
}

func TestFetchDuplicatesFetchedPerOccurrence(t *testing.T) {
	client := &MockClient{}
	store := newStore(t)

	results := NewFetcher(client, store, nil, 1, nil, logger.NewNopLogger()).
		Fetch(context.Background(), []string{"7", "7"}, validSession())

	require.Len(t, results, 2)
	assert.Equal(t, 2, client.GetDownloadCount())
	assert.True(t, results[0].OK())
	assert.True(t, results[1].OK())
	assert.Equal(t, 1, store.SavedCount())
}

func TestFetchExpiredSession(t *testing.T) {
	client := &MockClient{}
	expired := session.New([]*http.Cookie{
		{Name: "SessionKey", Value: "x", Expires: time.Now().Add(-time.Minute)},
	}, time.Now().Add(-time.Hour))

	results := NewFetcher(client, newStore(t), nil, 1, nil, logger.NewNopLogger()).
		Fetch(context.Background(), []string{"1", "2"}, expired)

	for _, r := range results {
		assert.Equal(t, OutcomeSessionExpired, r.Outcome)
		assert.ErrorIs(t, r.Err, session.ErrSessionExpired)
	}
	assert.Equal(t, 0, client.GetDownloadCount(), "no request is sent with an expired session")
}

func TestFetchSaveError(t *testing.T) {
	results := NewFetcher(&MockClient{}, failingStore{}, nil, 1, nil, logger.NewNopLogger()).
		Fetch(context.Background(), []string{"1"}, validSession())

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeSaveError, results[0].Outcome)
	assert.Equal(t, errs.ErrorTypeIO, errs.TypeOf(results[0].Err))
	assert.Contains(t, results[0].Message(), "disk full")
}

func TestFetchConcurrentKeepsInputOrder(t *testing.T) {
	client := &MockClient{delay: 20 * time.Millisecond}
	ids := []string{"10", "11", "12", "13", "14", "15", "16", "17"}

	start := time.Now()
	results := NewFetcher(client, newStore(t), nil, 4, nil, logger.NewNopLogger()).
		Fetch(context.Background(), ids, validSession())
	elapsed := time.Since(start)

	require.Len(t, results, len(ids))
	for i, r := range results {
		assert.Equal(t, ids[i], r.ID)
		assert.True(t, r.OK())
	}
	assert.Less(t, elapsed, time.Duration(len(ids))*client.delay, "workers should overlap")
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &MockClient{delay: 50 * time.Millisecond}
	reporter := &recordingReporter{}

	go func() {
		time.Sleep(70 * time.Millisecond)
		cancel()
	}()

	results := NewFetcher(client, newStore(t), nil, 1, reporter, logger.NewNopLogger()).
		Fetch(ctx, []string{"1", "2", "3", "4", "5"}, validSession())

	require.Len(t, results, 5)
	assert.Equal(t, OutcomeDownloaded, results[0].Outcome)
	for _, r := range results[1:] {
		assert.Equal(t, OutcomeCancelled, r.Outcome, "id %s", r.ID)
	}
	assert.Len(t, reporter.messages, 5, "every id is reported once")
}

func TestFetchRateLimited(t *testing.T) {
	limiter := ratelimit.NewTokenBucket(1, 100*time.Millisecond)
	client := &MockClient{}

	start := time.Now()
	results := NewFetcher(client, newStore(t), limiter, 1, nil, logger.NewNopLogger()).
		Fetch(context.Background(), []string{"1", "2"}, validSession())

	assert.True(t, results[1].OK())
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFetchEmpty(t *testing.T) {
	results := NewFetcher(&MockClient{}, newStore(t), nil, 1, nil, logger.NewNopLogger()).
		Fetch(context.Background(), nil, validSession())
	assert.Empty(t, results)
}
