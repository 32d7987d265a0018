package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/glabrego/laconic-cli/internal/storage"
	tuitheme "github.com/glabrego/laconic-cli/internal/tui/theme"
)

type VisitLineParams struct {
	Visit  storage.Visit
	Now    time.Time
	Active bool
	Width  int
}

func RenderVisitLine(p VisitLineParams, th tuitheme.Theme) string {
	cursor := " "
	if p.Active {
		cursor = ">"
	}
	prefix := fmt.Sprintf("  %s ", cursor)
	right := fmt.Sprintf("[%s · %dx]", RelativeTimeLabel(p.Now, p.Visit.VisitedAt), p.Visit.Count)

	label := strings.TrimSpace(p.Visit.Title)
	if label == "" {
		label = p.Visit.URL
	}
	available := p.Width - ansi.StringWidth(prefix) - 1 - ansi.StringWidth(right)
	if available < 1 {
		available = 1
	}
	label = ansi.Truncate(label, available, "...")
	gap := p.Width - ansi.StringWidth(prefix) - ansi.StringWidth(label) - ansi.StringWidth(right)
	if gap < 1 {
		gap = 1
	}
	line := prefix + th.MetaValue.Render(label) + strings.Repeat(" ", gap) + th.MetaLabel.Render(right)
	return th.RenderActiveLine(p.Active, line)
}

// History draws the rows of the visit list from start to end.
func History(visits []storage.Visit, cursor, start, end int, now time.Time, width int, th tuitheme.Theme) []string {
	if len(visits) == 0 {
		return []string{th.MetaLabel.Render("No pages visited yet.")}
	}
	lines := make([]string, 0, end-start+1)
	lines = append(lines, th.Section.Render("■ Recently visited"))
	for i := start; i < end && i < len(visits); i++ {
		lines = append(lines, RenderVisitLine(VisitLineParams{
			Visit:  visits[i],
			Now:    now,
			Active: i == cursor,
			Width:  width,
		}, th))
	}
	return lines
}

func RelativeTimeLabel(now, then time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	if then.IsZero() {
		return "unknown"
	}
	if then.After(now) {
		return "just now"
	}
	d := now.Sub(then)
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		n := int(d / time.Minute)
		if n == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", n)
	}
	if d < 24*time.Hour {
		n := int(d / time.Hour)
		if n == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", n)
	}
	n := int(d / (24 * time.Hour))
	if n == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", n)
}
