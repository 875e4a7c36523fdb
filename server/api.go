package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ghactivity/activity"
	"ghactivity/fetcher"
	"ghactivity/logger"
	"ghactivity/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

// cell is one grid day with its intensity level.
type cell struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Level int    `json:"level"`
}

type yearResponse struct {
	Year        int                 `json:"year"`
	Total       int                 `json:"total"`
	Weeks       [][]cell            `json:"weeks"`
	MonthLabels []models.MonthLabel `json:"monthLabels"`
}

type healthResponse struct {
	Status     string     `json:"status"`
	Username   string     `json:"username"`
	Loading    bool       `json:"loading"`
	Generation uint64     `json:"generation"`
	LoadedAt   *time.Time `json:"loadedAt,omitempty"`
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	state := s.tracker.State()
	resp := healthResponse{
		Status:     "healthy",
		Username:   s.username,
		Loading:    state.Loading,
		Generation: state.Generation,
	}
	if !state.LoadedAt.IsZero() {
		loadedAt := state.LoadedAt.UTC()
		resp.LoadedAt = &loadedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// getEvents serves the cached event feed of ?user=.
func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("user"))
	if username == "" {
		writeJSON(w, http.StatusBadRequest, fetcher.EventsResponse{
			Events: []models.GithubEvent{},
			Error:  fetcher.ErrMissingUser.Error(),
		})
		return
	}

	events, err := s.events.FetchEvents(r.Context(), username)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, fetcher.ErrMissingUser) {
			status = http.StatusBadRequest
		}
		logger.Error("Failed to serve events",
			zap.String("username", username),
			zap.Error(err))
		writeJSON(w, status, fetcher.EventsResponse{
			Events: []models.GithubEvent{},
			Error:  err.Error(),
		})
		return
	}
	if events == nil {
		events = []models.GithubEvent{}
	}

	writeJSON(w, http.StatusOK, fetcher.EventsResponse{Events: events})
}

// getActivity serves the merged activity of ?user=, defaulting to the
// configured user.
func (s *Server) getActivity(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("user"))
	writeJSON(w, http.StatusOK, s.activityFor(r.Context(), username))
}

// getYear serves one year's heatmap grid.
func (s *Server) getYear(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid year"})
		return
	}

	username := strings.TrimSpace(r.URL.Query().Get("user"))
	act := s.activityFor(r.Context(), username)
	if !act.HasYear(year) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no activity for year"})
		return
	}

	days := act.DaysByYear[year]
	grid := activity.BuildWeeks(days)

	resp := yearResponse{
		Year:        year,
		Weeks:       make([][]cell, 0, len(grid.Weeks)),
		MonthLabels: grid.MonthLabels,
	}
	for _, d := range days {
		resp.Total += d.Count
	}
	for _, week := range grid.Weeks {
		cells := make([]cell, 0, len(week))
		for _, d := range week {
			cells = append(cells, cell{Date: d.Date, Count: d.Count, Level: activity.ClassifyLevel(d.Count)})
		}
		resp.Weeks = append(resp.Weeks, cells)
	}

	writeJSON(w, http.StatusOK, resp)
}
