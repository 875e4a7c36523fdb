package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ghactivity/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// MockBacking is a mock implementation of the snapshot store
type MockBacking struct {
	mock.Mock
}

func (m *MockBacking) LoadSnapshot(ctx context.Context, username string) (*models.Snapshot, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Snapshot), args.Error(1)
}

func (m *MockBacking) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

var sampleEvents = []models.GithubEvent{
	{ID: "1", Type: "WatchEvent", Repo: "o/r", Date: "2024-03-01"},
}

func TestCacheExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := New(24*time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	_, ok := c.Get(ctx, "octocat")
	assert.False(t, ok)

	c.Set(ctx, "octocat", sampleEvents)

	clock.Advance(23 * time.Hour)
	events, ok := c.Get(ctx, "octocat")
	require.True(t, ok)
	assert.Equal(t, sampleEvents, events)

	clock.Advance(time.Hour)
	_, ok = c.Get(ctx, "octocat")
	assert.False(t, ok)
	c.mu.Lock()
	assert.Empty(t, c.entries)
	c.mu.Unlock()
}

func TestCacheKeyedByUser(t *testing.T) {
	c := New(time.Hour)
	ctx := context.Background()

	c.Set(ctx, "a", sampleEvents)
	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
}

func TestCacheReturnsCopies(t *testing.T) {
	c := New(time.Hour)
	ctx := context.Background()
	c.Set(ctx, "octocat", sampleEvents)

	events, ok := c.Get(ctx, "octocat")
	require.True(t, ok)
	events[0].Title = "mutated"

	again, _ := c.Get(ctx, "octocat")
	assert.Empty(t, again[0].Title)
}

func TestCacheDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, New(0).ttl)
	assert.Equal(t, DefaultTTL, New(-time.Minute).ttl)
}

func TestCacheBacking(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(*MockBacking)
		wantOK    bool
	}{
		{
			name: "fresh snapshot",
			setupMock: func(m *MockBacking) {
				m.On("LoadSnapshot", mock.Anything, "octocat").
					Return(&models.Snapshot{Username: "octocat", Events: sampleEvents, FetchedAt: base.Add(-time.Hour)}, nil).Once()
			},
			wantOK: true,
		},
		{
			name: "stale snapshot",
			setupMock: func(m *MockBacking) {
				m.On("LoadSnapshot", mock.Anything, "octocat").
					Return(&models.Snapshot{Username: "octocat", Events: sampleEvents, FetchedAt: base.Add(-25 * time.Hour)}, nil)
			},
		},
		{
			name: "store error",
			setupMock: func(m *MockBacking) {
				m.On("LoadSnapshot", mock.Anything, "octocat").Return(nil, assert.AnError)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backing := &MockBacking{}
			tt.setupMock(backing)

			c := New(24*time.Hour, WithClock(func() time.Time { return base }), WithBacking(backing))
			events, ok := c.Get(context.Background(), "octocat")
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, sampleEvents, events)
				// promoted into memory: the mock expects a single load
				_, ok = c.Get(context.Background(), "octocat")
				assert.True(t, ok)
			}
			backing.AssertExpectations(t)
		})
	}
}

func TestCacheSetPersists(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	backing := &MockBacking{}
	backing.On("SaveSnapshot", mock.Anything, mock.MatchedBy(func(s models.Snapshot) bool {
		return s.Username == "octocat" && s.FetchedAt.Equal(base) && len(s.Events) == 1
	})).Return(errors.New("disk full"))

	c := New(time.Hour, WithClock(func() time.Time { return base }), WithBacking(backing))
	c.Set(context.Background(), "octocat", sampleEvents)

	// persistence failures do not affect the memory tier
	events, ok := c.Get(context.Background(), "octocat")
	assert.True(t, ok)
	assert.Len(t, events, 1)
	backing.AssertExpectations(t)
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("loads once and caches", func(t *testing.T) {
		c := New(time.Hour)
		var calls atomic.Int32
		load := func(ctx context.Context, username string) ([]models.GithubEvent, error) {
			calls.Add(1)
			return sampleEvents, nil
		}

		for i := 0; i < 3; i++ {
			events, err := c.GetOrLoad(ctx, "octocat", load)
			require.NoError(t, err)
			assert.Equal(t, sampleEvents, events)
		}
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("errors are not cached", func(t *testing.T) {
		c := New(time.Hour)
		var calls atomic.Int32
		load := func(ctx context.Context, username string) ([]models.GithubEvent, error) {
			if calls.Add(1) == 1 {
				return nil, assert.AnError
			}
			return sampleEvents, nil
		}

		_, err := c.GetOrLoad(ctx, "octocat", load)
		assert.ErrorIs(t, err, assert.AnError)

		events, err := c.GetOrLoad(ctx, "octocat", load)
		require.NoError(t, err)
		assert.Len(t, events, 1)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("concurrent misses share one load", func(t *testing.T) {
		c := New(time.Hour)
		var calls atomic.Int32
		release := make(chan struct{})
		load := func(ctx context.Context, username string) ([]models.GithubEvent, error) {
			calls.Add(1)
			<-release
			return sampleEvents, nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				events, err := c.GetOrLoad(ctx, "octocat", load)
				assert.NoError(t, err)
				assert.Len(t, events, 1)
			}()
		}

		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
	})
	t.Run("caller cancellation does not fail the shared load", func(t *testing.T) {
		c := New(time.Hour)
		started := make(chan struct{})
		release := make(chan struct{})
		load := func(ctx context.Context, username string) ([]models.GithubEvent, error) {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return sampleEvents, nil
		}

		callerCtx, cancel := context.WithCancel(context.Background())
		type result struct {
			events []models.GithubEvent
			err    error
		}
		done := make(chan result, 1)
		go func() {
			events, err := c.GetOrLoad(callerCtx, "octocat", load)
			done <- result{events, err}
		}()

		<-started
		cancel()
		close(release)

		res := <-done
		require.NoError(t, res.err)
		assert.Equal(t, sampleEvents, res.events)

		events, ok := c.Get(context.Background(), "octocat")
		assert.True(t, ok)
		assert.Len(t, events, 1)
	})
}
