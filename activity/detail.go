package activity

import (
	"time"

	"ghactivity/models"
)

// DefaultDetailWindow is how far back per-day event detail is shown.
const DefaultDetailWindow = 30 * 24 * time.Hour

// DetailStatus is the outcome of a per-day detail lookup.
type DetailStatus int

const (
	DetailInvalid DetailStatus = iota
	DetailExpired
	DetailRedirect
	DetailEmpty
	DetailFound
)

func (s DetailStatus) String() string {
	switch s {
	case DetailInvalid:
		return "invalid"
	case DetailExpired:
		return "expired"
	case DetailRedirect:
		return "redirect"
	case DetailEmpty:
		return "empty"
	case DetailFound:
		return "found"
	}
	return "unknown"
}

// Detail is the per-day view model.
type Detail struct {
	Status DetailStatus
	Date   string
	Day    models.ActivityDay
	Events []models.GithubEvent
}

// DayDetail resolves the detail view for date. Dates older than window
// relative to now are reported as expired whether or not data exists for them.
func DayDetail(now time.Time, window time.Duration, date string, act models.Activity) Detail {
	d, err := models.ParseDate(date)
	if err != nil || models.FormatDate(d) != date {
		return Detail{Status: DetailInvalid, Date: date}
	}

	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if today.Sub(d) > window {
		return Detail{Status: DetailExpired, Date: date}
	}

	if !act.HasYear(d.Year()) {
		return Detail{Status: DetailRedirect, Date: date}
	}

	var (
		day   models.ActivityDay
		found bool
	)
	for _, candidate := range act.DaysByYear[d.Year()] {
		if candidate.Date == date {
			day, found = candidate, true
			break
		}
	}
	if !found {
		return Detail{Status: DetailRedirect, Date: date}
	}

	events := act.EventsByDate[date]
	if len(events) == 0 {
		return Detail{Status: DetailEmpty, Date: date, Day: day}
	}

	out := make([]models.GithubEvent, len(events))
	copy(out, events)
	return Detail{Status: DetailFound, Date: date, Day: day, Events: out}
}
