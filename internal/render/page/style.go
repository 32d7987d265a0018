package page

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	cpMauve    = lipgloss.Color("#cba6f7")
	cpPeach    = lipgloss.Color("#fab387")
	cpYellow   = lipgloss.Color("#f9e2af")
	cpGreen    = lipgloss.Color("#a6e3a1")
	cpTeal     = lipgloss.Color("#94e2d5")
	cpBlue     = lipgloss.Color("#89b4fa")
	cpLavender = lipgloss.Color("#b4befe")
	cpSubtext0 = lipgloss.Color("#a6adc8")
	cpOverlay1 = lipgloss.Color("#7f849c")
	cpSurface2 = lipgloss.Color("#585b70")

	headingBars = []lipgloss.Color{cpBlue, cpMauve, cpTeal, cpGreen, cpYellow, cpPeach}
)

// DefaultPanelBackground is used when a panel names no usable color.
const DefaultPanelBackground = "#181825"

type segKind uint16

const (
	kindBold segKind = 1 << iota
	kindItalic
	kindCode
	kindLink
	kindHeading
	kindQuote
	kindMuted
	kindImage
	kindBorder
)

func segmentStyle(seg segment, bg lipgloss.Color, hasBG bool, highlighted bool) lipgloss.Style {
	st := lipgloss.NewStyle()
	switch {
	case seg.bar > 0:
		st = st.Bold(true).Foreground(headingBars[(seg.bar-1)%len(headingBars)])
	case seg.kind&kindBorder != 0:
		st = st.Foreground(cpSurface2)
	case seg.kind&kindHeading != 0:
		st = st.Bold(true).Foreground(cpLavender)
	case seg.kind&kindCode != 0:
		st = st.Foreground(cpPeach)
	case seg.kind&kindImage != 0:
		st = st.Foreground(cpMauve).Faint(true).Italic(true)
	case seg.kind&kindLink != 0:
		st = st.Foreground(cpBlue).Underline(true)
	case seg.kind&kindQuote != 0:
		st = st.Foreground(cpSubtext0)
	case seg.kind&kindMuted != 0:
		st = st.Foreground(cpOverlay1)
	}
	if seg.kind&kindBold != 0 {
		st = st.Bold(true)
	}
	if seg.kind&(kindItalic|kindQuote) != 0 {
		st = st.Italic(true)
	}
	if hasBG {
		st = st.Background(bg)
	}
	if highlighted {
		st = st.Reverse(true)
	}
	return st
}

var namedColors = map[string]string{
	"white":     "#ffffff",
	"black":     "#000000",
	"gray":      "#808080",
	"grey":      "#808080",
	"darkgray":  "#a9a9a9",
	"lightgray": "#d3d3d3",
	"silver":    "#c0c0c0",
	"navy":      "#000080",
}

// cssColor maps a CSS color value onto a terminal color. Only hex values
// and a few common names are understood.
func cssColor(raw string) (lipgloss.Color, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if hex, ok := namedColors[raw]; ok {
		return lipgloss.Color(hex), true
	}
	if !strings.HasPrefix(raw, "#") {
		return "", false
	}
	digits := raw[1:]
	if len(digits) == 3 {
		digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
	}
	if len(digits) != 6 || strings.Trim(digits, "0123456789abcdef") != "" {
		return "", false
	}
	return lipgloss.Color("#" + digits), true
}
