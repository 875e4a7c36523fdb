// Package models defines the core data structures used throughout the application.
package models

import "time"

// DateLayout is the ISO-8601 calendar date layout used for every day key.
const DateLayout = "2006-01-02"

// ActivityDay represents one calendar day's contribution count
type ActivityDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Time parses the day's date as midnight UTC.
func (d ActivityDay) Time() (time.Time, error) {
	return ParseDate(d.Date)
}

// ParseDate parses a YYYY-MM-DD string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate formats t as a YYYY-MM-DD key.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// EventKind is the normalized kind of an upstream activity event
type EventKind string

const (
	KindPush          EventKind = "push"
	KindPullRequest   EventKind = "pull_request"
	KindIssues        EventKind = "issues"
	KindIssueComment  EventKind = "issue_comment"
	KindReviewComment EventKind = "review_comment"
	KindCreate        EventKind = "create"
	KindDelete        EventKind = "delete"
	KindFork          EventKind = "fork"
	KindWatch         EventKind = "watch"
	KindRelease       EventKind = "release"
	KindMember        EventKind = "member"
	KindOther         EventKind = "other"
)

var kindsByType = map[string]EventKind{
	"PushEvent":                     KindPush,
	"PullRequestEvent":              KindPullRequest,
	"IssuesEvent":                   KindIssues,
	"IssueCommentEvent":             KindIssueComment,
	"PullRequestReviewCommentEvent": KindReviewComment,
	"CreateEvent":                   KindCreate,
	"DeleteEvent":                   KindDelete,
	"ForkEvent":                     KindFork,
	"WatchEvent":                    KindWatch,
	"ReleaseEvent":                  KindRelease,
	"MemberEvent":                   KindMember,
}

// KindOf maps a provider event type such as "PushEvent" to its kind.
// Unrecognized types map to KindOther.
func KindOf(rawType string) EventKind {
	if kind, ok := kindsByType[rawType]; ok {
		return kind
	}
	return KindOther
}

// GithubEvent represents a single public activity event
type GithubEvent struct {
	ID    string    `json:"id"`
	Type  string    `json:"type"`
	Kind  EventKind `json:"kind,omitempty"`
	Repo  string    `json:"repo"`
	Title string    `json:"title,omitempty"`
	URL   string    `json:"url,omitempty"`
	Date  string    `json:"date"`
}

// Week is one Sunday-to-Saturday column of the activity grid.
type Week []ActivityDay

// MonthLabel marks the week in which a month begins
type MonthLabel struct {
	WeekIndex int `json:"weekIndex"`
	Month     int `json:"month"`
}

// Grid is the week-bucketed rendering model
type Grid struct {
	Weeks       []Week       `json:"weeks"`
	MonthLabels []MonthLabel `json:"monthLabels"`
}

// Activity is the merged result of the contribution and event feeds
type Activity struct {
	Days         []ActivityDay           `json:"days"`
	EventsByDate map[string][]GithubEvent `json:"eventsByDate"`
	Years        []int                   `json:"years"`
	DaysByYear   map[int][]ActivityDay   `json:"daysByYear"`
}

// NewActivity returns an Activity with empty, non-nil containers.
func NewActivity() Activity {
	return Activity{
		Days:         []ActivityDay{},
		EventsByDate: map[string][]GithubEvent{},
		Years:        []int{},
		DaysByYear:   map[int][]ActivityDay{},
	}
}

// HasYear reports whether any day of the given year is present.
func (a Activity) HasYear(year int) bool {
	for _, y := range a.Years {
		if y == year {
			return true
		}
	}
	return false
}

// Snapshot is a cached copy of a user's event feed
type Snapshot struct {
	Username  string        `db:"username" json:"username"`
	Events    []GithubEvent `json:"events"`
	FetchedAt time.Time     `db:"fetched_at" json:"fetched_at"`
}
