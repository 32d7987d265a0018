package page

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	nethtml "golang.org/x/net/html"

	"github.com/glabrego/laconic-cli/internal/dom"
)

const (
	defaultPanelWidth = 48
	minPanelWidth     = 8
	maxPanelCells     = 1024
	// panelInset is the border plus padding on each side of a panel.
	panelInset = 2
)

// panel is a positioned element drawn as a box over the text flow.
type panel struct {
	node  *nethtml.Node
	rect  dom.Rect
	z     int
	order int
	bg    lipgloss.Color
	lines []line
}

func (r renderer) collectPanel(node *nethtml.Node) {
	left, _ := styleCells(node, "left")
	top, _ := styleCells(node, "top")
	width, ok := styleCells(node, "width")
	if !ok {
		width = defaultPanelWidth
	}
	width = min(max(width, minPanelWidth), maxPanelCells)
	left = min(max(left, 0), maxPanelCells)
	top = max(top, 0)
	z, _ := styleCells(node, "z-index")

	bg := lipgloss.Color(DefaultPanelBackground)
	if raw, ok := dom.Style(node, "background-color"); ok {
		if color, ok := cssColor(raw); ok {
			bg = color
		}
	}

	p := &panel{node: node, z: z, order: *r.order, bg: bg}
	*r.order++
	p.lines = r.narrow(width - 2*panelInset).renderNodes(childNodes(node), 0)
	p.rect = dom.Rect{
		Left:   left,
		Top:    top,
		Right:  left + width - 1,
		Bottom: top + len(p.lines) + 1,
	}
	*r.panels = append(*r.panels, p)
}

func styleCells(node *nethtml.Node, property string) (int, bool) {
	raw, ok := dom.Style(node, property)
	if !ok {
		return 0, false
	}
	return cells(raw)
}

func (p *panel) width() int {
	return p.rect.Right - p.rect.Left + 1
}

// row draws line i of the box, counted from its top border.
func (p *panel) row(i int, highlight *nethtml.Node) string {
	w := p.width()
	border := segmentStyle(segment{kind: kindBorder}, p.bg, true, false)
	fill := lipgloss.NewStyle().Background(p.bg)
	switch {
	case i <= 0:
		return border.Render("╭" + strings.Repeat("─", w-2) + "╮")
	case i >= len(p.lines)+1:
		return border.Render("╰" + strings.Repeat("─", w-2) + "╯")
	}
	content := p.lines[i-1]
	pad := max(0, w-2*panelInset-content.width())
	return border.Render("│") +
		fill.Render(" ") +
		renderLine(content, highlight, p.bg, true) +
		fill.Render(strings.Repeat(" ", pad+1)) +
		border.Render("│")
}

// clampTop keeps the panel from starting below row limit.
func (p *panel) clampTop(limit int) {
	if p.rect.Top <= limit {
		return
	}
	shift := p.rect.Top - max(limit, 0)
	p.rect.Top -= shift
	p.rect.Bottom -= shift
}
