// Package fetcher serves the public event feed through the cache.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ghactivity/cache"
	"ghactivity/logger"
	"ghactivity/models"
)

// ErrMissingUser is returned when no username is supplied.
var ErrMissingUser = errors.New("missing user param")

// ErrUpstream wraps failures of the upstream event feed.
var ErrUpstream = fmt.Errorf("upstream event feed error")

// GitHubClientInterface defines the GitHub client operations needed by the fetcher
type GitHubClientInterface interface {
	FetchEvents(ctx context.Context, username string) ([]models.GithubEvent, error)
}

// Service returns event feeds from the cache and falls back to GitHub on a
// miss. Fresh feeds are stored; failures are not.
type Service struct {
	client GitHubClientInterface
	cache  *cache.Cache
}

// NewService creates a Service. A nil cache gets an in-memory one with the
// default TTL.
func NewService(client GitHubClientInterface, c *cache.Cache) *Service {
	if c == nil {
		c = cache.New(cache.DefaultTTL)
	}
	return &Service{client: client, cache: c}
}

// FetchEvents returns the event feed for username.
func (s *Service) FetchEvents(ctx context.Context, username string) ([]models.GithubEvent, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrMissingUser
	}

	events, err := s.cache.GetOrLoad(ctx, username, s.load)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Service) load(ctx context.Context, username string) ([]models.GithubEvent, error) {
	logger.Info("Fetching events from GitHub", zap.String("username", username))

	events, err := s.client.FetchEvents(ctx, username)
	if err != nil {
		logger.Error("Failed to fetch events",
			zap.String("username", username),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	logger.Info("Stored events for user",
		zap.String("username", username),
		zap.Int("event_count", len(events)))
	return events, nil
}
