package tui

import (
	nethtml "golang.org/x/net/html"

	"github.com/glabrego/laconic-cli/internal/dom"
	renderpage "github.com/glabrego/laconic-cli/internal/render/page"
)

// surface answers geometry queries from the last computed layout. Its
// coordinates are article cells, the same ones the tracker receives.
type surface struct {
	layout     *renderpage.Layout
	background string
}

func (s *surface) Bounds(node *nethtml.Node) (dom.Rect, bool) {
	if s.layout == nil {
		return dom.Rect{}, false
	}
	return s.layout.Bounds(node)
}

func (s *surface) Background() string {
	if s.background != "" {
		return s.background
	}
	return renderpage.DefaultPanelBackground
}
