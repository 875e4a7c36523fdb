// Package server exposes the activity API and the heatmap pages over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ghactivity/activity"
	"ghactivity/cache"
	"ghactivity/logger"
	"ghactivity/models"
)

// requestTimeout bounds every request, including the upstream fetches it
// triggers.
const requestTimeout = 60 * time.Second

// Configuration errors
var (
	ErrNoUsername = errors.New("server requires a username")
	ErrNoLoader   = errors.New("server requires an activity loader")
	ErrNoEvents   = errors.New("server requires an event service")
)

// EventService serves the public event feed of any user.
type EventService interface {
	FetchEvents(ctx context.Context, username string) ([]models.GithubEvent, error)
}

// Options configures a Server.
type Options struct {
	// Username is the user whose heatmap the pages show.
	Username string
	Events   EventService
	// Loader aggregates activity for users other than Username.
	Loader activity.Loader
	// Tracker holds the activity of Username. A nil Tracker is created from
	// Loader.
	Tracker      *activity.Tracker
	CacheTTL     time.Duration
	DetailWindow time.Duration
	Now          func() time.Time
}

// Server handles HTTP requests
type Server struct {
	Router *chi.Mux

	username     string
	events       EventService
	loader       activity.Loader
	tracker      *activity.Tracker
	cacheTTL     time.Duration
	detailWindow time.Duration
	now          func() time.Time
	pages        *template.Template

	// refresh collapses concurrent reloads of the tracked user.
	refresh singleflight.Group
}

// New creates a server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Username == "" {
		return nil, ErrNoUsername
	}
	if opts.Loader == nil {
		return nil, ErrNoLoader
	}
	if opts.Events == nil {
		return nil, ErrNoEvents
	}

	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		username:     opts.Username,
		events:       opts.Events,
		loader:       opts.Loader,
		tracker:      opts.Tracker,
		cacheTTL:     opts.CacheTTL,
		detailWindow: opts.DetailWindow,
		now:          opts.Now,
		pages:        pages,
	}
	if s.tracker == nil {
		s.tracker = activity.NewTracker(s.loader)
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = cache.DefaultTTL
	}
	if s.detailWindow <= 0 {
		s.detailWindow = activity.DefaultDetailWindow
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", s.healthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/github-events", s.getEvents)
		r.Get("/activity", s.getActivity)
		r.Get("/activity/{year}", s.getYear)
	})

	r.Get("/activity", s.activityPage)
	r.Get("/activity/{date}", s.dayPage)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/activity", http.StatusFound)
	})

	s.Router = r
}

// ServeHTTP lets the server be mounted directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Refresh reloads the configured user's activity unless the committed copy
// is younger than the cache TTL. Concurrent callers share one load, which
// runs without the callers' cancellation.
func (s *Server) Refresh(ctx context.Context) activity.State {
	if s.tracker.Fresh(s.username, s.cacheTTL) {
		return s.tracker.State()
	}
	_, _, _ = s.refresh.Do(s.username, func() (any, error) {
		if !s.tracker.Fresh(s.username, s.cacheTTL) {
			s.tracker.Load(context.WithoutCancel(ctx), s.username)
		}
		return nil, nil
	})
	return s.tracker.State()
}

// currentActivity returns the configured user's activity, reloading it once
// the committed copy is older than the cache TTL.
func (s *Server) currentActivity(ctx context.Context) models.Activity {
	return s.Refresh(ctx).Activity
}

// activityFor returns activity for username, going through the tracker for
// the configured user.
func (s *Server) activityFor(ctx context.Context, username string) models.Activity {
	if username == "" || username == s.username {
		return s.currentActivity(ctx)
	}
	return s.loader.LoadActivity(ctx, username)
}

// requestLogger logs one line per request with the zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		reqLogger := logger.WithContext(zap.String("request_id", middleware.GetReqID(r.Context())))
		reqLogger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
