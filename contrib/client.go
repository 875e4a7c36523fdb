// Package contrib fetches daily contribution counts from the contributions API.
package contrib

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

// Client represents a contributions API client
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
}

// Response is the contributions feed payload.
type Response struct {
	Contributions []struct {
		Date  string `json:"date"`
		Count int    `json:"count"`
		Level int    `json:"level"`
	} `json:"contributions"`
}

// NewClient creates a client for the contributions API at baseURL.
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid contributions base url: %w", err)
	}
	logger.Info("Initializing contributions client", zap.String("base_url", u.String()))
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: u,
	}, nil
}

// FetchContributions returns the per-day contribution counts for username.
func (c *Client) FetchContributions(ctx context.Context, username string) ([]models.ActivityDay, error) {
	reqURL := c.baseURL.JoinPath("v4", username)

	logger.Debug("Fetching contributions",
		zap.String("username", username),
		zap.String("url", reqURL.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contributions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch contributions: status code %d", resp.StatusCode)
	}

	var body Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode contributions response: %w", err)
	}

	days := make([]models.ActivityDay, 0, len(body.Contributions))
	for _, d := range body.Contributions {
		if _, err := models.ParseDate(d.Date); err != nil {
			logger.Debug("Skipping malformed contribution day", zap.String("date", d.Date))
			continue
		}
		count := d.Count
		if count < 0 {
			count = 0
		}
		days = append(days, models.ActivityDay{Date: d.Date, Count: count})
	}

	logger.Info("Successfully fetched contributions",
		zap.String("username", username),
		zap.Int("days", len(days)))

	return days, nil
}
