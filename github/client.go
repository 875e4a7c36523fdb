package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"ghactivity/logger"
	"ghactivity/models"
)

const (
	// EventsPerPage is the page size requested from the public events feed.
	EventsPerPage = 100

	userAgent          = "ghactivity"
	maxRetries         = 3
	resolveConcurrency = 5
)

var upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ghactivity_github_requests_total",
	Help: "GitHub API requests by operation and outcome.",
}, []string{"operation", "outcome"})

// Client represents a GitHub API client scoped to the public events feed
type Client struct {
	gh *gh.Client
}

// NewClient creates a client. An empty token makes unauthenticated requests;
// an empty baseURL targets api.github.com.
func NewClient(token, baseURL string) (*Client, error) {
	var base http.RoundTripper = http.DefaultTransport
	if token != "" {
		base = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   http.DefaultTransport,
		}
	}

	httpClient := &http.Client{
		Transport: &rateLimitTransport{base: base},
		Timeout:   30 * time.Second,
	}

	client := gh.NewClient(httpClient)
	client.UserAgent = userAgent

	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		client.BaseURL = u
	}

	logger.Info("Initializing GitHub client",
		zap.String("base_url", client.BaseURL.String()),
		zap.Bool("authenticated", token != ""))

	return &Client{gh: client}, nil
}

// FetchEvents returns the most recent public events of username, newest first,
// transformed into display events.
func (c *Client) FetchEvents(ctx context.Context, username string) ([]models.GithubEvent, error) {
	opts := &gh.ListOptions{PerPage: EventsPerPage}
	raw, _, err := c.gh.Activity.ListEventsPerformedByUser(ctx, username, true, opts)
	if err != nil {
		upstreamRequests.WithLabelValues("list_events", "error").Inc()
		return nil, fmt.Errorf("failed to list events for %s: %w", username, err)
	}
	upstreamRequests.WithLabelValues("list_events", "ok").Inc()

	converted := make([]*models.GithubEvent, len(raw))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, ev := range raw {
		i, ev := i, ev
		g.Go(func() error {
			if out, ok := convertEvent(gCtx, ev, c.commitMessage); ok {
				converted[i] = &out
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	events := make([]models.GithubEvent, 0, len(converted))
	for _, ev := range converted {
		if ev != nil {
			events = append(events, *ev)
		}
	}

	logger.Info("Successfully fetched events",
		zap.String("username", username),
		zap.Int("raw", len(raw)),
		zap.Int("events", len(events)))

	return events, nil
}

// commitMessage looks up a single commit's message. Failures are soft.
func (c *Client) commitMessage(ctx context.Context, repo, sha string) (string, bool) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || sha == "" {
		return "", false
	}

	commit, _, err := c.gh.Repositories.GetCommit(ctx, owner, name, sha, nil)
	if err != nil {
		upstreamRequests.WithLabelValues("get_commit", "error").Inc()
		logger.Debug("Commit lookup failed",
			zap.String("repo", repo),
			zap.String("sha", sha),
			zap.Error(err))
		return "", false
	}
	upstreamRequests.WithLabelValues("get_commit", "ok").Inc()

	msg := commit.GetCommit().GetMessage()
	return msg, msg != ""
}

// rateLimitTransport wraps an http.RoundTripper and pauses when rate-limited.
type rateLimitTransport struct {
	base http.RoundTripper
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
			if wait, ok := nearExhaustion(resp); ok {
				logger.Warn("Approaching GitHub rate limit, pausing",
					zap.Duration("wait", wait.Round(time.Second)))
				if err := sleepContext(req.Context(), wait); err != nil {
					resp.Body.Close()
					return nil, err
				}
			}
			return resp, nil
		}

		secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
		if err != nil || secs <= 0 || secs >= 900 {
			return resp, nil
		}

		logger.Warn("Rate limited by GitHub, retrying",
			zap.Int("retry_after", secs),
			zap.Int("attempt", attempt+1))
		resp.Body.Close()
		if err := sleepContext(req.Context(), time.Duration(secs)*time.Second); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("github rate limit: retries exhausted after %d attempts", maxRetries)
}

// nearExhaustion reports how long to pause when ten or fewer requests remain.
func nearExhaustion(resp *http.Response) (time.Duration, bool) {
	remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if err != nil || remaining > 10 {
		return 0, false
	}
	reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return 0, false
	}
	wait := time.Until(time.Unix(reset, 0))
	if wait <= 0 || wait >= 15*time.Minute {
		return 0, false
	}
	return wait + time.Second, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
