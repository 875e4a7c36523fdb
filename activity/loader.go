package activity

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ghactivity/logger"
	"ghactivity/models"
)

// ContributionSource provides daily contribution counts.
type ContributionSource interface {
	FetchContributions(ctx context.Context, username string) ([]models.ActivityDay, error)
}

// EventSource provides the recent public event feed.
type EventSource interface {
	FetchEvents(ctx context.Context, username string) ([]models.GithubEvent, error)
}

// Aggregator loads both feeds and merges them.
type Aggregator struct {
	contributions ContributionSource
	events        EventSource
}

// NewAggregator creates an Aggregator. Either source may be nil, in which case
// it contributes no data.
func NewAggregator(contributions ContributionSource, events EventSource) *Aggregator {
	return &Aggregator{contributions: contributions, events: events}
}

// LoadActivity fetches both feeds concurrently and merges them. Failures of
// either feed are logged and treated as empty data; LoadActivity never fails.
func (a *Aggregator) LoadActivity(ctx context.Context, username string) models.Activity {
	var (
		days   []models.ActivityDay
		events []models.GithubEvent
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if a.contributions == nil {
			return nil
		}
		d, err := a.contributions.FetchContributions(gCtx, username)
		if err != nil {
			logger.Warn("Contribution feed unavailable",
				zap.String("username", username),
				zap.Error(err))
			return nil
		}
		days = d
		return nil
	})
	g.Go(func() error {
		if a.events == nil {
			return nil
		}
		ev, err := a.events.FetchEvents(gCtx, username)
		if err != nil {
			logger.Warn("Event feed unavailable",
				zap.String("username", username),
				zap.Error(err))
			return nil
		}
		events = ev
		return nil
	})
	_ = g.Wait()

	act := Assemble(days, events)

	logger.Debug("Loaded activity",
		zap.String("username", username),
		zap.Int("days", len(act.Days)),
		zap.Int("event_days", len(act.EventsByDate)),
		zap.Ints("years", act.Years))

	return act
}
