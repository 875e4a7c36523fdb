package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghactivity/activity"
	"ghactivity/fetcher"
	"ghactivity/logger"
	"ghactivity/models"
)

func init() {
	_ = logger.Initialize("debug")
}

type fakeEvents struct {
	events []models.GithubEvent
	err    error
}

func (f fakeEvents) FetchEvents(ctx context.Context, username string) ([]models.GithubEvent, error) {
	return f.events, f.err
}

type fakeLoader struct {
	calls atomic.Int32
	act   map[string]models.Activity
}

func (f *fakeLoader) LoadActivity(ctx context.Context, username string) models.Activity {
	f.calls.Add(1)
	if act, ok := f.act[username]; ok {
		return act
	}
	return models.NewActivity()
}

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func testActivity() models.Activity {
	return activity.Assemble(
		[]models.ActivityDay{
			{Date: "2023-12-30", Count: 2},
			{Date: "2024-01-01", Count: 1},
			{Date: "2024-03-01", Count: 0},
			{Date: "2024-03-02", Count: 5},
		},
		[]models.GithubEvent{
			{ID: "1", Type: "PushEvent", Kind: models.KindPush, Repo: "octocat/hello", Title: "Fix <b>bug</b>", URL: "https://github.com/octocat/hello/commit/abc", Date: "2024-03-02"},
			{ID: "2", Type: "WatchEvent", Kind: models.KindWatch, Repo: "octocat/hello", Title: "Starred octocat/hello", URL: "https://github.com/octocat/hello", Date: "2024-03-02"},
		},
	)
}

func newTestServer(t *testing.T, events fakeEvents) (*Server, *fakeLoader) {
	t.Helper()
	loader := &fakeLoader{act: map[string]models.Activity{
		"octocat": testActivity(),
		"other":   activity.Assemble([]models.ActivityDay{{Date: "2022-05-05", Count: 8}}, nil),
	}}
	s, err := New(Options{
		Username: "octocat",
		Events:   events,
		Loader:   loader,
		CacheTTL: time.Hour,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	return s, loader
}

func do(t *testing.T, s *Server, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresDependencies(t *testing.T) {
	testCases := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{name: "no username", opts: Options{Loader: &fakeLoader{}, Events: fakeEvents{}}, wantErr: ErrNoUsername},
		{name: "no loader", opts: Options{Username: "octocat", Events: fakeEvents{}}, wantErr: ErrNoLoader},
		{name: "no event service", opts: Options{Username: "octocat", Loader: &fakeLoader{}}, wantErr: ErrNoEvents},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.opts)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, s)
		})
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, fakeEvents{})

	rec := do(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","username":"octocat","loading":false,"generation":0}`, rec.Body.String())

	do(t, s, "/api/activity")

	rec = do(t, s, "/health")
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.False(t, body.Loading)
	assert.Equal(t, uint64(1), body.Generation)
	assert.NotNil(t, body.LoadedAt)
}

// slowLoader holds every load until release is closed.
type slowLoader struct {
	fakeLoader
	started chan struct{}
	once    sync.Once
	release chan struct{}
}

func (l *slowLoader) LoadActivity(ctx context.Context, username string) models.Activity {
	l.once.Do(func() { close(l.started) })
	<-l.release
	if ctx.Err() != nil {
		return models.NewActivity()
	}
	return l.fakeLoader.LoadActivity(ctx, username)
}

func TestOverlappingColdStartRequestsShareOneLoad(t *testing.T) {
	loader := &slowLoader{
		fakeLoader: fakeLoader{act: map[string]models.Activity{"octocat": testActivity()}},
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	s, err := New(Options{Username: "octocat", Events: fakeEvents{}, Loader: loader, CacheTTL: time.Hour, Now: func() time.Time { return now }})
	require.NoError(t, err)

	codes := make([]int, 2)
	var wg sync.WaitGroup
	get := func(i int) {
		defer wg.Done()
		codes[i] = do(t, s, "/api/activity/2024").Code
	}

	wg.Add(2)
	go get(0)
	<-loader.started
	go get(1)
	time.Sleep(50 * time.Millisecond)
	close(loader.release)
	wg.Wait()

	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)
	assert.Equal(t, int32(1), loader.calls.Load())
	assert.Equal(t, uint64(1), s.tracker.State().Generation)
}

func TestRefreshIgnoresCallerCancellation(t *testing.T) {
	loader := &slowLoader{
		fakeLoader: fakeLoader{act: map[string]models.Activity{"octocat": testActivity()}},
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	s, err := New(Options{Username: "octocat", Events: fakeEvents{}, Loader: loader, CacheTTL: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan activity.State, 1)
	go func() { done <- s.Refresh(ctx) }()

	<-loader.started
	cancel()
	close(loader.release)

	state := <-done
	assert.Equal(t, "octocat", state.Username)
	assert.Contains(t, state.Activity.Years, 2024)

	// a fresh copy is served without another load
	s.Refresh(context.Background())
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestGetEvents(t *testing.T) {
	sample := []models.GithubEvent{{ID: "1", Type: "PushEvent", Kind: models.KindPush, Repo: "o/r", Title: "fix", Date: "2024-03-02"}}

	testCases := []struct {
		name       string
		events     fakeEvents
		target     string
		wantStatus int
		wantEvents int
		wantError  string
	}{
		{name: "missing user", target: "/api/github-events", wantStatus: http.StatusBadRequest, wantError: "missing user param"},
		{name: "blank user", target: "/api/github-events?user=%20", wantStatus: http.StatusBadRequest, wantError: "missing user param"},
		{name: "events", events: fakeEvents{events: sample}, target: "/api/github-events?user=octocat", wantStatus: http.StatusOK, wantEvents: 1},
		{name: "empty feed", events: fakeEvents{}, target: "/api/github-events?user=octocat", wantStatus: http.StatusOK},
		{
			name:       "upstream failure",
			events:     fakeEvents{err: fmt.Errorf("%w: rate limited", fetcher.ErrUpstream)},
			target:     "/api/github-events?user=octocat",
			wantStatus: http.StatusBadGateway,
			wantError:  "upstream event feed error: rate limited",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestServer(t, tc.events)
			rec := do(t, s, tc.target)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body fetcher.EventsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.NotNil(t, body.Events, "events must always be an array")
			assert.Len(t, body.Events, tc.wantEvents)
			assert.Equal(t, tc.wantError, body.Error)
		})
	}
}

func TestGetActivity(t *testing.T) {
	s, loader := newTestServer(t, fakeEvents{})

	rec := do(t, s, "/api/activity")
	require.Equal(t, http.StatusOK, rec.Code)
	var act models.Activity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &act))
	assert.Equal(t, []int{2024, 2023}, act.Years)
	assert.Len(t, act.EventsByDate["2024-03-02"], 2)

	// the configured user is served from the tracker until it goes stale
	do(t, s, "/api/activity?user=octocat")
	assert.Equal(t, int32(1), loader.calls.Load())

	rec = do(t, s, "/api/activity?user=other")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &act))
	assert.Equal(t, []int{2022}, act.Years)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestGetYear(t *testing.T) {
	s, _ := newTestServer(t, fakeEvents{})

	t.Run("year with data", func(t *testing.T) {
		rec := do(t, s, "/api/activity/2024")
		require.Equal(t, http.StatusOK, rec.Code)

		var body yearResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 2024, body.Year)
		assert.Equal(t, 3, body.Total)
		require.NotEmpty(t, body.Weeks)
		for _, week := range body.Weeks {
			assert.Len(t, week, 7)
		}
		assert.Equal(t, "2023-12-31", body.Weeks[0][0].Date)

		var found bool
		for _, week := range body.Weeks {
			for _, c := range week {
				if c.Date == "2024-03-02" {
					found = true
					assert.Equal(t, 2, c.Count)
					assert.Equal(t, 2, c.Level)
				}
			}
		}
		assert.True(t, found)
	})

	t.Run("year without data", func(t *testing.T) {
		rec := do(t, s, "/api/activity/2019")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed year", func(t *testing.T) {
		rec := do(t, s, "/api/activity/latest")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestActivityPage(t *testing.T) {
	s, _ := newTestServer(t, fakeEvents{})

	rec := do(t, s, "/activity")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, `href="/activity?year=2024" class="active"`)
	assert.Contains(t, body, `href="/activity?year=2023"`)
	assert.Contains(t, body, "3 contributions in 2024")
	assert.Contains(t, body, `href="/activity/2024-03-02"`)
	// padding days of the previous year are inert
	assert.NotContains(t, body, `href="/activity/2023-12-31"`)

	rec = do(t, s, "/activity?year=2023")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2 contributions in 2023")
	assert.Contains(t, rec.Body.String(), `href="/activity/2023-12-30"`)

	rec = do(t, s, "/activity?year=1999")
	assert.Contains(t, rec.Body.String(), "in 2024")
}

func TestActivityPageEmpty(t *testing.T) {
	loader := &fakeLoader{}
	s, err := New(Options{Username: "nobody", Loader: loader, Events: fakeEvents{}})
	require.NoError(t, err)

	rec := do(t, s, "/activity")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No public activity found.")
}

func TestActivityPageScroll(t *testing.T) {
	s, _ := newTestServer(t, fakeEvents{})

	// 2023-12-31 through 2024-03-02 is nine weeks: 123px of content
	rec := do(t, s, "/activity?year=2024&offset=-50&width=40")
	body := rec.Body.String()
	assert.Contains(t, body, `viewBox="0 -14 40`)
	assert.Contains(t, body, `offset=83&width=40"`)
	assert.Contains(t, body, `offset=0&width=40" class="disabled"`)

	rec = do(t, s, "/activity?year=2024&offset=100000&width=40")
	assert.Contains(t, rec.Body.String(), `viewBox="83 -14 40`)
}

func TestActivityPageTheme(t *testing.T) {
	s, _ := newTestServer(t, fakeEvents{})

	rec := do(t, s, "/activity?theme=dark")
	assert.Contains(t, rec.Body.String(), `class="theme-dark"`)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "theme", cookies[0].Name)
	assert.Equal(t, "dark", cookies[0].Value)

	rec = do(t, s, "/activity/2024-03-02", cookies[0])
	assert.Contains(t, rec.Body.String(), `class="theme-dark"`)

	rec = do(t, s, "/activity?theme=neon")
	assert.Contains(t, rec.Body.String(), `class="theme-light"`)
	assert.Empty(t, rec.Result().Cookies())
}

func TestDayPage(t *testing.T) {
	s, _ := newTestServer(t, fakeEvents{})

	testCases := []struct {
		name         string
		target       string
		wantStatus   int
		wantLocation string
		wantBody     []string
	}{
		{name: "malformed date", target: "/activity/2024-3-2", wantStatus: http.StatusNotFound},
		{name: "absent date", target: "/activity/2024-03-05", wantStatus: http.StatusFound, wantLocation: "/activity"},
		{name: "absent year", target: "/activity/2025-01-01", wantStatus: http.StatusFound, wantLocation: "/activity"},
		{
			name:       "older than window although present",
			target:     "/activity/2024-01-01",
			wantStatus: http.StatusOK,
			wantBody:   []string{"no longer available"},
		},
		{
			name:       "no events",
			target:     "/activity/2024-03-01",
			wantStatus: http.StatusOK,
			wantBody:   []string{"No public activities on this day."},
		},
		{
			name:       "events",
			target:     "/activity/2024-03-02",
			wantStatus: http.StatusOK,
			wantBody: []string{
				"Saturday, March 2, 2024",
				"2 events",
				"Fix &lt;b&gt;bug&lt;/b&gt;",
				`href="https://github.com/octocat/hello/commit/abc"`,
				"Starred octocat/hello",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, tc.target)
			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantLocation != "" {
				assert.Equal(t, tc.wantLocation, rec.Header().Get("Location"))
			}
			for _, want := range tc.wantBody {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestRootRedirects(t *testing.T) {
	s, _ := newTestServer(t, fakeEvents{})
	rec := do(t, s, "/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/activity", rec.Header().Get("Location"))
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t, fakeEvents{err: errors.New("boom")})
	do(t, s, "/health")

	rec := do(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}
