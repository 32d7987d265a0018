// Package page lays a wiki article out on a grid of terminal cells and
// draws it, positioned panels included.
package page

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	nethtml "golang.org/x/net/html"

	"github.com/glabrego/laconic-cli/internal/dom"
)

// hit is the run of cells one anchor covers on one row.
type hit struct {
	node     *nethtml.Node
	row      int
	from, to int
	panel    *panel
}

// Layout is the cell geometry of an article. Coordinates are relative to
// the article's top-left cell.
type Layout struct {
	width   int
	height  int
	article *nethtml.Node
	lines   []line
	panels  []*panel
	rects   map[*nethtml.Node]dom.Rect
	hits    []hit
}

// Compute flows article into lines of width cells. Positioned children are
// laid out as panels on top of the flow.
func Compute(article *nethtml.Node, width int) *Layout {
	l := &Layout{
		width:   max(1, width),
		article: article,
		rects:   make(map[*nethtml.Node]dom.Rect),
	}
	if article == nil {
		return l
	}

	var panels []*panel
	order := 0
	r := renderer{width: l.width, panels: &panels, order: &order}
	l.lines = r.renderNodes(childNodes(article), 0)
	sort.SliceStable(panels, func(i, j int) bool {
		if panels[i].z != panels[j].z {
			return panels[i].z < panels[j].z
		}
		return panels[i].order < panels[j].order
	})
	l.panels = panels

	l.height = len(l.lines)
	for row, ln := range l.lines {
		l.index(ln, row, 0, nil)
	}
	flowRows := l.height
	for _, p := range l.panels {
		p.clampTop(flowRows)
		l.rects[p.node] = p.rect
		l.height = max(l.height, p.rect.Bottom+1)
		for i, ln := range p.lines {
			l.index(ln, p.rect.Top+1+i, p.rect.Left+panelInset, p)
		}
	}
	return l
}

func (l *Layout) index(ln line, row, col int, p *panel) {
	for _, seg := range ln {
		w := ansi.StringWidth(seg.text)
		if seg.link != nil && w > 0 {
			rect := dom.Rect{Left: col, Top: row, Right: col + w - 1, Bottom: row}
			if prev, ok := l.rects[seg.link]; ok {
				rect = prev.Union(rect)
			}
			l.rects[seg.link] = rect
			if n := len(l.hits); n > 0 && l.hits[n-1].node == seg.link && l.hits[n-1].row == row && l.hits[n-1].to == col-1 {
				l.hits[n-1].to = col + w - 1
			} else {
				l.hits = append(l.hits, hit{node: seg.link, row: row, from: col, to: col + w - 1, panel: p})
			}
		}
		col += w
	}
}

func (l *Layout) Width() int {
	return l.width
}

// Height is the number of rows the flow and every panel occupy.
func (l *Layout) Height() int {
	return l.height
}

// Bounds returns the cells covered by the article, a drawn anchor or a
// panel. Anchors that wrap report the box around all of their rows.
func (l *Layout) Bounds(node *nethtml.Node) (dom.Rect, bool) {
	if node == nil {
		return dom.Rect{}, false
	}
	if node == l.article {
		return dom.Rect{Right: l.width - 1, Bottom: max(l.height, 1) - 1}, true
	}
	rect, ok := l.rects[node]
	return rect, ok
}

// HitTest returns the anchor drawn at (x, y), looking through panels from
// the topmost down. A panel hides the anchors beneath it.
func (l *Layout) HitTest(x, y int) *nethtml.Node {
	for i := len(l.panels) - 1; i >= 0; i-- {
		p := l.panels[i]
		if !p.rect.Contains(x, y) {
			continue
		}
		return l.hitIn(p, x, y)
	}
	return l.hitIn(nil, x, y)
}

func (l *Layout) hitIn(p *panel, x, y int) *nethtml.Node {
	for _, h := range l.hits {
		if h.panel == p && h.row == y && x >= h.from && x <= h.to {
			return h.node
		}
	}
	return nil
}

// View draws height rows starting at row top. highlight is drawn reversed.
func (l *Layout) View(top, height int, highlight *nethtml.Node) []string {
	out := make([]string, 0, max(height, 0))
	for row := top; row < top+height; row++ {
		s := ""
		if row >= 0 && row < len(l.lines) {
			s = renderLine(l.lines[row], highlight, "", false)
		}
		for _, p := range l.panels {
			if row < p.rect.Top || row > p.rect.Bottom {
				continue
			}
			s = spliceLine(s, p.row(row-p.rect.Top, highlight), p.rect.Left, l.width)
		}
		out = append(out, s)
	}
	return out
}

// Text draws every row without styling.
func (l *Layout) Text() string {
	rows := l.View(0, l.height, nil)
	for i, row := range rows {
		rows[i] = strings.TrimRight(ansi.Strip(row), " ")
	}
	return strings.Join(rows, "\n")
}

func renderLine(ln line, highlight *nethtml.Node, bg lipgloss.Color, hasBG bool) string {
	var b strings.Builder
	for _, seg := range ln {
		if seg.text == "" {
			continue
		}
		lit := highlight != nil && seg.link == highlight
		b.WriteString(segmentStyle(seg, bg, hasBG, lit).Render(seg.text))
	}
	return b.String()
}
