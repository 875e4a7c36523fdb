package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"ghactivity/activity"
	"ghactivity/contrib"
	"ghactivity/fetcher"
	"ghactivity/github"
	"ghactivity/models"
	"ghactivity/view"
)

var (
	gridUser   string
	gridYear   int
	gridServer string

	gridCmd = &cobra.Command{
		Use:   "grid",
		Short: "Print a user's activity heatmap",
		Args:  cobra.NoArgs,
		RunE:  runGrid,
	}
)

var (
	levelGlyphs = [5]string{"·", "░", "▒", "▓", "█"}
	levelStyles = [5]lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("#3D444D")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#0E4429")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#006D32")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#26A641")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#39D353")),
	}
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8D96A0"))
)

var weekdayLabels = [7]string{"", "Mon", "", "Wed", "", "Fri", ""}

func init() {
	gridCmd.Flags().StringVarP(&gridUser, "user", "u", "", "GitHub username (defaults to GITHUB_USERNAME)")
	gridCmd.Flags().IntVarP(&gridYear, "year", "y", 0, "year to show (defaults to the latest year with data)")
	gridCmd.Flags().StringVar(&gridServer, "server", "", "read events from a running ghactivity server instead of GitHub")
}

func runGrid(cmd *cobra.Command, args []string) error {
	username := gridUser
	if username == "" {
		if err := cfg.RequireUsername(); err != nil {
			return err
		}
		username = cfg.Username
	}

	contributions, err := contrib.NewClient(cfg.ContributionsURL)
	if err != nil {
		return err
	}

	var events activity.EventSource
	if gridServer != "" {
		proxy, err := fetcher.NewProxyClient(gridServer)
		if err != nil {
			return err
		}
		events = proxy
	} else {
		client, err := github.NewClient(cfg.GitHubToken, cfg.GitHubAPIURL)
		if err != nil {
			return err
		}
		events = fetcher.NewService(client, nil)
	}

	act := activity.NewAggregator(contributions, events).LoadActivity(cmd.Context(), username)
	if len(act.Years) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No public activity found for %s.\n", username)
		return nil
	}

	year := act.Years[0]
	if gridYear != 0 {
		if !act.HasYear(gridYear) {
			return fmt.Errorf("no activity for %s in %d", username, gridYear)
		}
		year = gridYear
	}

	renderGrid(cmd.OutOrStdout(), username, year, act.DaysByYear[year])
	return nil
}

// renderGrid prints one year as seven weekday rows, one column per week.
func renderGrid(w io.Writer, username string, year int, days []models.ActivityDay) {
	grid := activity.BuildWeeks(days)

	total := 0
	for _, d := range days {
		total += d.Count
	}

	const labelWidth = 4
	const cellWidth = 2

	header := []rune(strings.Repeat(" ", labelWidth+len(grid.Weeks)*cellWidth))
	end := 0
	for _, label := range grid.MonthLabels {
		name := time.Month(label.Month + 1).String()[:3]
		col := labelWidth + label.WeekIndex*cellWidth
		if col < end || col+len(name) > len(header) {
			continue
		}
		copy(header[col:], []rune(name))
		end = col + len(name) + 1
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s: %d contributions in %d", username, total, year)))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(strings.TrimRight(string(header), " ")))
	b.WriteString("\n")

	for row := 0; row < 7; row++ {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%-*s", labelWidth, weekdayLabels[row])))
		for _, week := range grid.Weeks {
			d := week[row]
			if !view.Interactive(d.Date, year) {
				b.WriteString("  ")
				continue
			}
			level := activity.ClassifyLevel(d.Count)
			b.WriteString(levelStyles[level].Render(levelGlyphs[level]))
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}

	b.WriteString(mutedStyle.Render("Less "))
	for level := range levelGlyphs {
		b.WriteString(levelStyles[level].Render(levelGlyphs[level]))
		b.WriteString(" ")
	}
	b.WriteString(mutedStyle.Render("More"))
	b.WriteString("\n")

	fmt.Fprint(w, b.String())
}
