// Package activity merges contribution counts and events onto one calendar and
// shapes them into a week-bucketed grid.
package activity

import (
	"slices"
	"time"

	"ghactivity/models"
)

// ClassifyLevel maps a day's count to a heatmap intensity in [0, 4].
func ClassifyLevel(count int) int {
	switch {
	case count <= 0:
		return 0
	case count < 2:
		return 1
	case count < 4:
		return 2
	case count < 7:
		return 3
	default:
		return 4
	}
}

// BuildWeeks buckets days into Sunday-to-Saturday weeks covering the full span
// of the input, zero-filling missing days, and records a month label for the
// first week in which each month appears. Duplicate dates keep the last count.
func BuildWeeks(days []models.ActivityDay) models.Grid {
	grid := models.Grid{
		Weeks:       []models.Week{},
		MonthLabels: []models.MonthLabel{},
	}

	counts := make(map[string]int, len(days))
	dates := make([]time.Time, 0, len(days))
	for _, d := range days {
		t, err := models.ParseDate(d.Date)
		if err != nil {
			continue
		}
		key := models.FormatDate(t)
		if _, seen := counts[key]; !seen {
			dates = append(dates, t)
		}
		counts[key] = d.Count
	}
	if len(dates) == 0 {
		return grid
	}

	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

	start := dates[0]
	for start.Weekday() != time.Sunday {
		start = start.AddDate(0, 0, -1)
	}
	end := dates[len(dates)-1]
	for end.Weekday() != time.Saturday {
		end = end.AddDate(0, 0, 1)
	}

	lastMonth := -1
	var week models.Week
	closeWeek := func(last time.Time) {
		grid.Weeks = append(grid.Weeks, week)
		if month := int(last.Month()) - 1; month != lastMonth {
			grid.MonthLabels = append(grid.MonthLabels, models.MonthLabel{
				WeekIndex: len(grid.Weeks) - 1,
				Month:     month,
			})
			lastMonth = month
		}
		week = nil
	}

	var day time.Time
	for day = start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := models.FormatDate(day)
		week = append(week, models.ActivityDay{Date: key, Count: counts[key]})
		if day.Weekday() == time.Saturday {
			closeWeek(day)
		}
	}
	if len(week) > 0 {
		closeWeek(day.AddDate(0, 0, -1))
	}

	// A full year ends in the month it started with; drop the repeated label.
	labels := grid.MonthLabels
	if len(labels) > 1 && labels[len(labels)-1].Month == labels[0].Month {
		grid.MonthLabels = labels[:len(labels)-1]
	}

	return grid
}
