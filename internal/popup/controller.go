package popup

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	nethtml "golang.org/x/net/html"

	"github.com/glabrego/laconic-cli/internal/dom"
	"github.com/glabrego/laconic-cli/internal/wiki"
)

// RootDepth is the stacking depth of links wired at page load.
const RootDepth = 100

type NestedMode int

const (
	// NestedInPlace links found in an overlay redraw that same overlay.
	NestedInPlace NestedMode = iota
	// NestedFlat links found in an overlay become roots one level higher.
	NestedFlat
)

func ParseNestedMode(raw string) (NestedMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "inplace":
		return NestedInPlace, nil
	case "flat":
		return NestedFlat, nil
	default:
		return NestedInPlace, fmt.Errorf("nested mode must be inplace or flat: %s", raw)
	}
}

func (m NestedMode) String() string {
	if m == NestedFlat {
		return "flat"
	}
	return "inplace"
}

type Options struct {
	Width    int
	Delay    time.Duration
	Distance int
	Nested   NestedMode
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Surface reports where nodes of the live page are drawn, in pointer
// coordinates.
type Surface interface {
	Bounds(node *nethtml.Node) (dom.Rect, bool)
	Background() string
}

type checkMsg struct {
	link LinkID
	gen  uint64
}

type responseMsg struct {
	link  LinkID
	token uint64
	body  io.ReadCloser
	err   error
}

type documentMsg struct {
	link  LinkID
	token uint64
	doc   *goquery.Document
	err   error
}

// Controller owns every link record of the current page. All methods run on
// the bubbletea update loop; none of them block.
type Controller struct {
	opts    Options
	fetcher Fetcher
	pattern wiki.Pattern
	tracker *Tracker
	surface Surface
	logger  *zap.Logger
	after   func(time.Duration, tea.Msg) tea.Cmd

	article *nethtml.Node
	links   map[LinkID]*Link
	byNode  map[*nethtml.Node]LinkID

	nextID    LinkID
	nextToken uint64
	revision  uint64
}

func NewController(fetcher Fetcher, pattern wiki.Pattern, tracker *Tracker, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Controller{
		opts:    opts,
		fetcher: fetcher,
		pattern: pattern,
		tracker: tracker,
		logger:  logger,
		after:   tickAfter,
		links:   make(map[LinkID]*Link),
		byNode:  make(map[*nethtml.Node]LinkID),
	}
}

func tickAfter(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}

func (c *Controller) SetSurface(s Surface) {
	c.surface = s
}

func (c *Controller) Options() Options {
	return c.opts
}

func (c *Controller) Tracker() *Tracker {
	return c.tracker
}

// Revision changes whenever the page tree or a tooltip was modified.
func (c *Controller) Revision() uint64 {
	return c.revision
}

// Prepare forgets the previous page and wires the article links of doc.
// It returns the number of interactive links.
func (c *Controller) Prepare(doc *goquery.Document, pageURL *url.URL) int {
	c.links = make(map[LinkID]*Link)
	c.byNode = make(map[*nethtml.Node]LinkID)
	c.article = nil
	c.revision++
	if doc == nil {
		return 0
	}
	if article := doc.Find(wiki.SelectorArticle).First(); article.Length() > 0 {
		c.article = article.Get(0)
	}
	doc.Find(wiki.SelectorArticleLink).Each(func(_ int, sel *goquery.Selection) {
		c.wire(sel.Get(0), RootDepth, 0, false, pageURL)
	})
	c.logger.Debug("Page links prepared",
		zap.Int("links", len(c.links)),
		zap.String("url", urlString(pageURL)))
	return len(c.links)
}

func (c *Controller) Lookup(node *nethtml.Node) (LinkID, bool) {
	id, ok := c.byNode[node]
	return id, ok
}

func (c *Controller) Links() []LinkID {
	ids := make([]LinkID, 0, len(c.links))
	for id := range c.links {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Controller) Snapshot(id LinkID) (Snapshot, bool) {
	l, ok := c.links[id]
	if !ok {
		return Snapshot{}, false
	}
	label, _ := dom.Attr(l.Node, "title")
	return Snapshot{
		ID:              l.ID,
		Role:            l.Role(),
		Target:          l.Target,
		Label:           label,
		StackDepth:      l.StackDepth,
		HasOverlay:      l.Overlay != nil,
		RequestInFlight: l.RequestInFlight,
		Loaded:          l.Loaded,
		Dirty:           l.Dirty,
		Hovering:        l.Hovering,
		Active:          l.Active,
	}, true
}

// Overlay returns the overlay owned by a root link.
func (c *Controller) Overlay(id LinkID) (*Overlay, bool) {
	l, ok := c.links[id]
	if !ok || l.Overlay == nil {
		return nil, false
	}
	return l.Overlay, true
}

// Enter handles the pointer entering a link.
func (c *Controller) Enter(id LinkID) tea.Cmd {
	l, ok := c.links[id]
	if !ok {
		return nil
	}
	started := l.Hovering || l.Active
	l.Hovering = true
	l.Active = true
	if started {
		return nil
	}
	return c.schedule(l)
}

// Leave handles the pointer leaving a link. A scheduled check still fires.
func (c *Controller) Leave(id LinkID) {
	if l, ok := c.links[id]; ok {
		l.Hovering = false
	}
}

func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case checkMsg:
		return c.check(msg)
	case responseMsg:
		return c.response(msg)
	case documentMsg:
		return c.document(msg)
	}
	return nil
}

func (c *Controller) schedule(l *Link) tea.Cmd {
	return c.after(c.opts.Delay, checkMsg{link: l.ID, gen: l.generation})
}

func (c *Controller) check(msg checkMsg) tea.Cmd {
	l, ok := c.links[msg.link]
	if !ok || msg.gen != l.generation || !l.Active {
		return nil
	}

	isClose := l.Hovering || c.near(c.overlayNode(l))
	if !isClose {
		if l.Role() == RoleRoot {
			c.Clear(l.ID)
		} else {
			// Nested links never dismiss themselves. Dropping Active lets the
			// next enter schedule a fresh check.
			l.Active = false
		}
		return nil
	}

	var load tea.Cmd
	if !l.Loaded || l.Dirty {
		l.Loaded = true
		l.Dirty = false
		load = c.load(l)
	}
	if l.Role() != RoleRoot {
		// Nested links check once per enter.
		l.Active = false
		return load
	}
	return tea.Batch(load, c.schedule(l))
}

// overlayNode is the panel a link's proximity is measured against.
func (c *Controller) overlayNode(l *Link) *nethtml.Node {
	if l.Role() == RoleRoot {
		if l.Overlay == nil {
			return nil
		}
		return l.Overlay.Node
	}
	parent, ok := c.links[l.Parent]
	if !ok || parent.Overlay == nil {
		return nil
	}
	return parent.Overlay.Node
}

func (c *Controller) near(node *nethtml.Node) bool {
	if node == nil || c.surface == nil {
		return false
	}
	rect, ok := c.surface.Bounds(node)
	return c.tracker.Near(rect, ok, c.opts.Distance)
}

// Clear tears a link down to its pre-hover state. Safe to repeat.
func (c *Controller) Clear(id LinkID) {
	l, ok := c.links[id]
	if !ok {
		return
	}
	if l.Overlay != nil {
		dom.Detach(l.Overlay.Node)
		c.revision++
	}
	l.Overlay = nil
	l.RequestInFlight = false
	l.Loaded = false
	l.Active = false
	l.Hovering = false
	l.Dirty = false
	l.invocation = 0
	l.generation++
	c.restoreLabel(l)
	c.prune()
}

func (c *Controller) restoreLabel(l *Link) {
	current, has := dom.Attr(l.Node, "title")
	if has == l.hadLabel && current == l.OriginalLabel {
		return
	}
	if l.hadLabel {
		dom.SetAttr(l.Node, "title", l.OriginalLabel)
	} else {
		dom.RemoveAttr(l.Node, "title")
	}
	c.revision++
}

// prune drops links whose anchor left the page, together with any overlay
// they still own, until nothing else detaches.
func (c *Controller) prune() {
	for {
		removed := false
		for id, l := range c.links {
			if c.article != nil && dom.Attached(l.Node, c.article) {
				continue
			}
			if l.Overlay != nil && dom.Detach(l.Overlay.Node) {
				c.revision++
			}
			delete(c.links, id)
			delete(c.byNode, l.Node)
			removed = true
			c.logger.Debug("Detached link dropped",
				zap.Int("link", int(id)),
				zap.String("target", l.Target))
		}
		if !removed {
			return
		}
	}
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}
