package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	tuitheme "github.com/glabrego/laconic-cli/internal/tui/theme"
)

func Toolbar(inHistory bool) string {
	if inHistory {
		return "j/k move | enter open | esc/h back | q quit"
	}
	return "hover: summary | click: follow | j/k scroll | b back | r reload | o open | y copy | h history | q quit"
}

// Header is the first screen row: the app name and the page title.
func Header(title string, width int, th tuitheme.Theme) string {
	left := th.Title.Render("laconic")
	if title != "" {
		left += " " + th.MetaLabel.Render("·") + " " + th.MetaValue.Render(title)
	}
	return Fit(left, width)
}

// Footer summarises the page position and the popup mode.
func Footer(url string, top, bodyHeight, total, links int, nested string, width int, th tuitheme.Theme) string {
	parts := []string{
		th.ModePill.Render(nested),
		th.MetaLabel.Render("links") + " " + th.MetaValue.Render(fmt.Sprintf("%d", links)),
		th.MetaLabel.Render("rows") + " " + th.MetaValue.Render(ScrollLabel(top, bodyHeight, total)),
	}
	if url != "" {
		parts = append(parts, th.MetaValue.Render(url))
	}
	return Fit(strings.Join(parts, " • "), width)
}

func ScrollLabel(top, bodyHeight, total int) string {
	if total <= 0 {
		return "0/0"
	}
	last := top + bodyHeight
	if last > total {
		last = total
	}
	return fmt.Sprintf("%d-%d/%d", top+1, last, total)
}

// Message is the status row. A transient status wins over the hovered link,
// which wins over the load state.
func Message(loading bool, warning, status, hover string, width int, th tuitheme.Theme) string {
	state := "idle"
	stateLabel := th.StateIdle.Render("state")
	switch {
	case warning != "":
		state = "warning"
		stateLabel = th.StateWarn.Render("state")
	case loading:
		state = "loading"
		stateLabel = th.StateLoad.Render("state")
	}
	main := th.MetaValue.Render("Ready")
	switch {
	case status != "":
		main = th.MetaValue.Render(status)
	case hover != "":
		main = hover
	case warning != "":
		main = th.MetaValue.Render(warning)
	case loading:
		main = th.MetaValue.Render("Loading page...")
	}
	return Fit(fmt.Sprintf("%s: %s | %s", stateLabel, state, main), width)
}

// Fit cuts s to width cells. A width of zero leaves s alone.
func Fit(s string, width int) string {
	if width <= 0 || ansi.StringWidth(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}
