package activity

import (
	"slices"
	"strings"
	"time"

	"ghactivity/models"
)

// GroupEventsByDate partitions events by their ISO date, preserving feed order
// within each day.
func GroupEventsByDate(events []models.GithubEvent) map[string][]models.GithubEvent {
	byDate := make(map[string][]models.GithubEvent)
	for _, ev := range events {
		if ev.Date == "" {
			continue
		}
		byDate[ev.Date] = append(byDate[ev.Date], ev)
	}
	return byDate
}

// MergeDays overlays event counts onto contribution counts. A day with at
// least one event takes the number of events as its count. Without any
// contribution data the span between the first and last event day is
// synthesized from event counts alone. The result is sorted by date.
func MergeDays(contributions []models.ActivityDay, byDate map[string][]models.GithubEvent) []models.ActivityDay {
	if len(contributions) == 0 {
		return synthesizeDays(byDate)
	}

	counts := make(map[string]int, len(contributions)+len(byDate))
	for _, d := range contributions {
		counts[d.Date] = d.Count
	}
	for date, events := range byDate {
		if len(events) == 0 {
			continue
		}
		if _, err := models.ParseDate(date); err != nil {
			continue
		}
		counts[date] = len(events)
	}

	days := make([]models.ActivityDay, 0, len(counts))
	for date, count := range counts {
		days = append(days, models.ActivityDay{Date: date, Count: count})
	}
	sortDays(days)
	return days
}

func synthesizeDays(byDate map[string][]models.GithubEvent) []models.ActivityDay {
	var first, last time.Time
	for date := range byDate {
		t, err := models.ParseDate(date)
		if err != nil {
			continue
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if last.IsZero() || t.After(last) {
			last = t
		}
	}
	if first.IsZero() {
		return []models.ActivityDay{}
	}

	var days []models.ActivityDay
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := models.FormatDate(d)
		days = append(days, models.ActivityDay{Date: key, Count: len(byDate[key])})
	}
	return days
}

// PartitionByYear groups days by calendar year and lists the years present in
// descending order.
func PartitionByYear(days []models.ActivityDay) ([]int, map[int][]models.ActivityDay) {
	byYear := make(map[int][]models.ActivityDay)
	for _, d := range days {
		t, err := models.ParseDate(d.Date)
		if err != nil {
			continue
		}
		byYear[t.Year()] = append(byYear[t.Year()], d)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	slices.SortFunc(years, func(a, b int) int { return b - a })
	return years, byYear
}

// Assemble builds the merged Activity from both feeds. The result shares no
// containers with its inputs.
func Assemble(contributions []models.ActivityDay, events []models.GithubEvent) models.Activity {
	act := models.NewActivity()
	act.EventsByDate = GroupEventsByDate(events)
	act.Days = MergeDays(contributions, act.EventsByDate)
	act.Years, act.DaysByYear = PartitionByYear(act.Days)
	return act
}

func sortDays(days []models.ActivityDay) {
	slices.SortFunc(days, func(a, b models.ActivityDay) int {
		return strings.Compare(a.Date, b.Date)
	})
}
