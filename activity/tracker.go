package activity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ghactivity/logger"
	"ghactivity/models"
)

// Loader produces merged activity for a user.
type Loader interface {
	LoadActivity(ctx context.Context, username string) models.Activity
}

// State is the committed result of the most recent load.
type State struct {
	Username   string
	Activity   models.Activity
	Loading    bool
	Generation uint64
	LoadedAt   time.Time
}

// Tracker owns the displayed activity and guards it against stale loads: each
// Load takes a generation number when it starts and commits only if no newer
// Load has started since.
type Tracker struct {
	loader Loader
	now    func() time.Time

	mu         sync.Mutex
	generation uint64
	state      State
}

// NewTracker creates a Tracker backed by loader.
func NewTracker(loader Loader) *Tracker {
	return &Tracker{
		loader: loader,
		now:    time.Now,
		state:  State{Activity: models.NewActivity()},
	}
}

// Load fetches activity for username and commits it unless a newer Load was
// started in the meantime. It reports whether the result was committed.
func (t *Tracker) Load(ctx context.Context, username string) bool {
	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.state.Loading = true
	t.mu.Unlock()

	act := t.loader.LoadActivity(ctx, username)

	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation {
		logger.Debug("Discarding stale activity load",
			zap.String("username", username),
			zap.Uint64("generation", gen),
			zap.Uint64("current", t.generation))
		return false
	}

	t.state = State{
		Username:   username,
		Activity:   act,
		Loading:    false,
		Generation: gen,
		LoadedAt:   t.now(),
	}
	return true
}

// State returns the committed state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Fresh reports whether the committed state belongs to username and was
// loaded less than maxAge ago.
func (t *Tracker) Fresh(username string, maxAge time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Username == username &&
		!t.state.LoadedAt.IsZero() &&
		t.now().Sub(t.state.LoadedAt) < maxAge
}
