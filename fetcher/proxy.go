package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"ghactivity/logger"
	"ghactivity/models"
)

// EventsResponse is the body served by /api/github-events.
type EventsResponse struct {
	Events []models.GithubEvent `json:"events"`
	Error  string               `json:"error,omitempty"`
}

// ProxyClient reads the event feed from a running server instead of GitHub.
type ProxyClient struct {
	httpClient *http.Client
	baseURL    *url.URL
}

// NewProxyClient creates a client for the server at baseURL.
func NewProxyClient(baseURL string) (*ProxyClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: scheme and host required", baseURL)
	}
	return &ProxyClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    u,
	}, nil
}

// FetchEvents requests the feed for username from the server.
func (p *ProxyClient) FetchEvents(ctx context.Context, username string) ([]models.GithubEvent, error) {
	reqURL := p.baseURL.JoinPath("api", "github-events")
	q := reqURL.Query()
	q.Set("user", username)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	defer resp.Body.Close()

	var body EventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode events response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Event proxy returned an error",
			zap.Int("status", resp.StatusCode),
			zap.String("error", body.Error))
		return nil, fmt.Errorf("failed to fetch events: status code %d: %s", resp.StatusCode, body.Error)
	}

	if body.Events == nil {
		body.Events = []models.GithubEvent{}
	}
	return body.Events, nil
}
