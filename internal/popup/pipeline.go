package popup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	nethtml "golang.org/x/net/html"

	"github.com/glabrego/laconic-cli/internal/dom"
	"github.com/glabrego/laconic-cli/internal/wiki"
)

const (
	overlayClass   = "laconic-popup"
	overlayBorder  = "darkgray"
	overlayPadding = 1
)

// load starts a fresh invocation of the summary pipeline for l. Any panel
// left over from an earlier invocation is dropped first.
func (c *Controller) load(l *Link) tea.Cmd {
	if l.Overlay != nil {
		dom.Detach(l.Overlay.Node)
		l.Overlay = nil
		c.revision++
		c.prune()
	}
	c.nextToken++
	l.invocation = c.nextToken
	l.RequestInFlight = true

	id, token, target := l.ID, l.invocation, l.Target
	fetcher := c.fetcher
	c.logger.Debug("Summary requested",
		zap.Int("link", int(id)),
		zap.String("target", target))
	return func() tea.Msg {
		if fetcher == nil {
			return responseMsg{link: id, token: token, err: errors.New("no fetcher configured")}
		}
		// The body outlives this command, so the context is never cancelled here.
		body, err := fetcher.Fetch(context.Background(), target)
		return responseMsg{link: id, token: token, body: body, err: err}
	}
}

func (c *Controller) response(msg responseMsg) tea.Cmd {
	l, ok := c.links[msg.link]
	if !ok {
		closeBody(msg.body)
		return nil
	}
	if msg.token != l.invocation {
		closeBody(msg.body)
		c.stale(l)
		return nil
	}
	if msg.err != nil {
		c.logger.Error("Summary fetch failed",
			zap.Int("link", int(l.ID)),
			zap.String("target", l.Target),
			zap.Error(msg.err))
		c.Clear(l.ID)
		return nil
	}
	l.RequestInFlight = false

	body, id, token := msg.body, msg.link, msg.token
	return func() tea.Msg {
		if body == nil {
			return documentMsg{link: id, token: token, err: errors.New("empty response body")}
		}
		defer body.Close()
		doc, err := wiki.ParseDocument(body)
		return documentMsg{link: id, token: token, doc: doc, err: err}
	}
}

// stale drops a result whose invocation is no longer current. Teardown
// already reset the link, and a newer cycle may own it by now.
func (c *Controller) stale(l *Link) {
	c.logger.Debug("Superseded summary dropped",
		zap.Int("link", int(l.ID)),
		zap.String("target", l.Target))
}

func (c *Controller) document(msg documentMsg) tea.Cmd {
	l, ok := c.links[msg.link]
	if !ok {
		return nil
	}
	if msg.token != l.invocation {
		c.stale(l)
		return nil
	}
	if msg.err != nil {
		c.logger.Error("Summary parse failed",
			zap.Int("link", int(l.ID)),
			zap.String("target", l.Target),
			zap.Error(msg.err))
		c.Clear(l.ID)
		return nil
	}
	c.render(l, msg.doc)
	return nil
}

// render writes the summary of doc into the link's panel and wires the
// links found inside it.
func (c *Controller) render(l *Link, doc *goquery.Document) {
	summary, err := wiki.ExtractSummary(doc)
	switch {
	case errors.Is(err, wiki.ErrNoSummary), errors.Is(err, wiki.ErrNoParagraph):
		c.logger.Debug("No summary to show",
			zap.Int("link", int(l.ID)),
			zap.String("target", l.Target),
			zap.Error(err))
		return
	case err != nil:
		c.logger.Error("Summary page unreadable",
			zap.Int("link", int(l.ID)),
			zap.String("target", l.Target),
			zap.Error(err))
		c.Clear(l.ID)
		return
	}

	container, ok := c.container(l)
	if !ok {
		c.Clear(l.ID)
		return
	}

	dom.RemoveChildren(container)
	heading := dom.Element("strong")
	heading.AppendChild(dom.Text(summary.Title))
	container.AppendChild(heading)
	dom.Detach(summary.Paragraph)
	dom.SetStyle(summary.Paragraph, "margin-top", "1")
	container.AppendChild(summary.Paragraph)

	if l.Role() == RoleRoot {
		c.place(l, container)
	} else if parent, ok := c.links[l.Parent]; ok {
		parent.Dirty = true
	}

	dom.SetAttr(l.Node, "title", "")
	c.revision++

	// A nested link's own anchor was just replaced, so it is pruned here.
	parentID, hasParent := l.ID, true
	if l.Role() == RoleNested {
		parentID = l.Parent
	}
	c.prune()

	if c.opts.Nested == NestedFlat {
		parentID, hasParent = 0, false
	}
	base, _ := url.Parse(l.Target)
	wired := 0
	for _, anchor := range dom.Anchors(container) {
		if c.wire(anchor, l.StackDepth+1, parentID, hasParent, base) {
			wired++
		}
	}
	c.logger.Debug("Summary shown",
		zap.Int("link", int(l.ID)),
		zap.String("title", summary.Title),
		zap.Int("nested_links", wired))
}

// container is the node the summary is written into: a new panel for a root
// link, the parent's panel for a nested one.
func (c *Controller) container(l *Link) (*nethtml.Node, bool) {
	if l.Role() == RoleRoot {
		if c.article == nil {
			return nil, false
		}
		node := dom.Element("div")
		dom.SetAttr(node, "class", overlayClass)
		return node, true
	}
	parent, ok := c.links[l.Parent]
	if !ok || parent.Overlay == nil {
		return nil, false
	}
	return parent.Overlay.Node, true
}

// place positions a root panel under the pointer, relative to the article,
// and inserts it as the article's first child.
func (c *Controller) place(l *Link, node *nethtml.Node) {
	x, y := c.tracker.Position()
	var origin dom.Rect
	background := ""
	if c.surface != nil {
		if rect, ok := c.surface.Bounds(c.article); ok {
			origin = rect
		}
		background = c.surface.Background()
	}
	overlay := &Overlay{
		Node:       node,
		Left:       max(x-origin.Left-c.opts.Width/2, 0),
		Top:        y - origin.Top + c.opts.Distance,
		Width:      c.opts.Width,
		Z:          l.StackDepth + 1,
		Background: background,
	}
	dom.SetAttr(node, "style", overlayStyle(overlay))
	dom.PrependChild(c.article, node)
	l.Overlay = overlay
}

func overlayStyle(o *Overlay) string {
	style := fmt.Sprintf("position: absolute; width: %dch; padding: %dch; border: 1px solid %s; z-index: %d !important; left: %dch; top: %dch;",
		o.Width, overlayPadding, overlayBorder, o.Z, o.Left, o.Top)
	if o.Background != "" {
		style += " background-color: " + o.Background + ";"
	}
	return style
}

func closeBody(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}
