package page

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// spliceLine draws over on top of base starting at column x, keeping the
// escape sequences of base intact on both sides. Nothing is drawn past
// limit.
func spliceLine(base, over string, x, limit int) string {
	if x < 0 || x >= limit || over == "" {
		return base
	}
	overWidth := ansi.StringWidth(over)
	if x+overWidth > limit {
		over = ansi.Truncate(over, limit-x, "")
		overWidth = limit - x
	}
	baseWidth := ansi.StringWidth(base)

	var b strings.Builder
	if x > 0 {
		prefix := ansi.Truncate(base, x, "")
		b.WriteString(prefix)
		if w := ansi.StringWidth(prefix); w < x {
			b.WriteString(strings.Repeat(" ", x-w))
		}
	}
	b.WriteString("\x1b[0m")
	b.WriteString(over)
	b.WriteString("\x1b[0m")
	if end := x + overWidth; end < baseWidth {
		b.WriteString(ansi.TruncateLeft(base, end, ""))
	}
	return b.String()
}
