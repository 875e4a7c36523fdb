package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ghactivity/activity"
	"ghactivity/logger"
	"ghactivity/models"
	"ghactivity/view"
)

const (
	// defaultViewportWidth is the visible grid width when the client sends none.
	defaultViewportWidth = 480
	// monthBand is the space above the grid reserved for month labels.
	monthBand = 14
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	t, err := template.New("pages").Funcs(template.FuncMap{
		"monthName": func(m int) string { return time.Month(m + 1).String()[:3] },
		"plural": func(n int, word string) string {
			if n == 1 {
				return fmt.Sprintf("%d %s", n, word)
			}
			return fmt.Sprintf("%d %ss", n, word)
		},
		"longDate": longDate,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return t, nil
}

func longDate(date string) string {
	t, err := models.ParseDate(date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}

type cellView struct {
	Date        string
	Count       int
	Level       int
	Interactive bool
	Rect        view.Rect
	Tooltip     view.Point
}

type monthView struct {
	Month int
	X     int
}

type activityPage struct {
	Username   string
	Theme      string
	Years      []int
	Year       int
	Total      int
	Cells      []cellView
	Months     []monthView
	Viewport   view.Viewport
	Height     int
	CanPrev    bool
	CanNext    bool
	PrevOffset int
	NextOffset int
}

type dayPage struct {
	Username string
	Theme    string
	Date     string
	Year     int
	Count    int
	Status   string
	Events   []models.GithubEvent
}

// activityPage renders the heatmap of the configured user for ?year=,
// scrolled to ?offset=.
func (s *Server) activityPage(w http.ResponseWriter, r *http.Request) {
	bridge := newCookieBridge(w, r)
	if theme := r.URL.Query().Get("theme"); theme == view.ThemeLight || theme == view.ThemeDark {
		bridge.Set(view.ThemeKey, theme)
	}

	act := s.currentActivity(r.Context())
	page := activityPage{
		Username: s.username,
		Theme:    view.Theme(bridge),
		Years:    act.Years,
	}

	if len(act.Years) > 0 {
		page.Year = act.Years[0]
		if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil && act.HasYear(y) {
			page.Year = y
		}
		s.fillGrid(&page, act.DaysByYear[page.Year], queryInt(r, "offset", 0), queryInt(r, "width", defaultViewportWidth))
	}

	s.render(w, "activity.html", page)
}

func (s *Server) fillGrid(page *activityPage, days []models.ActivityDay, offset, width int) {
	for _, d := range days {
		page.Total += d.Count
	}

	grid := activity.BuildWeeks(days)
	vp := view.Viewport{
		Offset:        offset,
		ContentWidth:  view.ContentWidth(len(grid.Weeks)),
		ViewportWidth: width,
	}.Clamp()

	page.Viewport = vp
	page.Height = 7*view.WeekWidth - view.CellGap + monthBand
	page.CanPrev = vp.CanPrev()
	page.CanNext = vp.CanNext()
	page.PrevOffset = vp.Prev().Offset
	page.NextOffset = vp.Next().Offset

	page.Cells = make([]cellView, 0, len(grid.Weeks)*7)
	for wi, week := range grid.Weeks {
		for di, d := range week {
			rect := view.CellRect(wi, di)
			page.Cells = append(page.Cells, cellView{
				Date:        d.Date,
				Count:       d.Count,
				Level:       activity.ClassifyLevel(d.Count),
				Interactive: view.Interactive(d.Date, page.Year),
				Rect:        rect,
				Tooltip:     view.TooltipPosition(rect, vp.Offset),
			})
		}
	}

	page.Months = make([]monthView, 0, len(grid.MonthLabels))
	for _, label := range grid.MonthLabels {
		page.Months = append(page.Months, monthView{Month: label.Month, X: label.WeekIndex * view.WeekWidth})
	}
}

// dayPage renders the events of one day.
func (s *Server) dayPage(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	act := s.currentActivity(r.Context())

	detail := activity.DayDetail(s.now(), s.detailWindow, date, act)
	switch detail.Status {
	case activity.DetailInvalid:
		http.NotFound(w, r)
		return
	case activity.DetailRedirect:
		http.Redirect(w, r, "/activity", http.StatusFound)
		return
	}

	t, _ := models.ParseDate(date)
	s.render(w, "day.html", dayPage{
		Username: s.username,
		Theme:    view.Theme(newCookieBridge(w, r)),
		Date:     date,
		Year:     t.Year(),
		Count:    detail.Day.Count,
		Status:   detail.Status.String(),
		Events:   detail.Events,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("Failed to render page", zap.String("template", name), zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

var _ view.Bridge = (*cookieBridge)(nil)

// cookieBridge stores presentation state in cookies.
type cookieBridge struct {
	w http.ResponseWriter
	r *http.Request
	// set holds values written during this request so reads see them.
	set *view.MapBridge
}

func newCookieBridge(w http.ResponseWriter, r *http.Request) *cookieBridge {
	return &cookieBridge{w: w, r: r, set: view.NewMapBridge()}
}

func (b *cookieBridge) Get(key string) (string, bool) {
	if v, ok := b.set.Get(key); ok {
		return v, true
	}
	c, err := b.r.Cookie(key)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (b *cookieBridge) Set(key, value string) {
	b.set.Set(key, value)
	http.SetCookie(b.w, &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
