package popup

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	tea "github.com/charmbracelet/bubbletea"
	nethtml "golang.org/x/net/html"

	"github.com/glabrego/laconic-cli/internal/dom"
	"github.com/glabrego/laconic-cli/internal/wiki"
)

const (
	homeURL        = "https://tvtropes.org/pmwiki/pmwiki.php/Main/HomePage"
	gunSummary     = "https://tvtropes.org/pmwiki/pmwiki.php/Laconic/ChekhovsGun"
	foreshadowURL  = "https://tvtropes.org/pmwiki/pmwiki.php/Laconic/Foreshadowing"
	panelHeight    = 6
	articleWidth   = 80
	articleHeight  = 200
	testBackground = "#fdfdfd"
)

const homePage = `<html><body>
<div id="main-content" style="background-color: #fdfdfd">
<div id="main-article">
  <p>See the <a href="/pmwiki/pmwiki.php/Main/ChekhovsGun" title="Chekhov">gun</a> and <a href="https://example.com/x">elsewhere</a>.</p>
</div>
</div>
</body></html>`

func summaryPage(title, paragraph string) string {
	return `<html><body>
<h1 class="entry-title">Laconic / ` + title + `</h1>
<ul><li class="curr-subpage"><a href="#"><span class="laconic-icon"></span></a></li></ul>
<div id="main-article"><p>` + paragraph + `</p><p>More.</p></div>
</body></html>`
}

var testPages = map[string]string{
	gunSummary:    summaryPage("Chekhov's Gun", `Introduced early, <a href="/pmwiki/pmwiki.php/Main/Foreshadowing">pays off</a> later.`),
	foreshadowURL: summaryPage("Foreshadowing", `Hints at what is <a href="/pmwiki/pmwiki.php/Main/Payoff">coming</a>.`),
}

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

type fakeFetcher struct {
	pages  map[string]string
	err    error
	calls  map[string]int
	bodies []*trackedBody
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (io.ReadCloser, error) {
	f.calls[rawURL]++
	if f.err != nil {
		return nil, f.err
	}
	page, ok := f.pages[rawURL]
	if !ok {
		return nil, errors.New("not found: " + rawURL)
	}
	body := &trackedBody{Reader: strings.NewReader(page)}
	f.bodies = append(f.bodies, body)
	return body, nil
}

// fakeSurface lays the article out at the origin and reads panel geometry
// back from the style attribute.
type fakeSurface struct {
	article *nethtml.Node
}

func (s *fakeSurface) Bounds(node *nethtml.Node) (dom.Rect, bool) {
	if node == s.article {
		return dom.Rect{Right: articleWidth - 1, Bottom: articleHeight - 1}, true
	}
	if !dom.HasClass(node, overlayClass) || node.Parent == nil {
		return dom.Rect{}, false
	}
	left := styleCells(node, "left")
	top := styleCells(node, "top")
	width := styleCells(node, "width")
	return dom.Rect{Left: left, Top: top, Right: left + width - 1, Bottom: top + panelHeight - 1}, true
}

func (s *fakeSurface) Background() string {
	return testBackground
}

func styleCells(node *nethtml.Node, prop string) int {
	raw, _ := dom.Style(node, prop)
	n, _ := strconv.Atoi(strings.TrimSuffix(raw, "ch"))
	return n
}

type timer struct {
	delay time.Duration
	msg   tea.Msg
}

type harness struct {
	t       *testing.T
	c       *Controller
	fetcher *fakeFetcher
	doc     *goquery.Document
	article *nethtml.Node
	timers  []timer
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	pattern, err := wiki.NewPattern("https://tvtropes.org")
	if err != nil {
		t.Fatalf("NewPattern returned error: %v", err)
	}
	doc, err := wiki.ParseDocument(strings.NewReader(homePage))
	if err != nil {
		t.Fatalf("ParseDocument returned error: %v", err)
	}
	if opts.Width == 0 {
		opts.Width = 48
	}
	if opts.Delay == 0 {
		opts.Delay = 500 * time.Millisecond
	}
	if opts.Distance == 0 {
		opts.Distance = 2
	}
	h := &harness{t: t, fetcher: newFakeFetcher(testPages), doc: doc}
	h.c = NewController(h.fetcher, pattern, nil, opts, nil)
	h.c.after = func(d time.Duration, msg tea.Msg) tea.Cmd {
		h.timers = append(h.timers, timer{delay: d, msg: msg})
		return nil
	}
	base, _ := url.Parse(homeURL)
	h.c.Prepare(doc, base)
	h.article = doc.Find(wiki.SelectorArticle).Get(0)
	h.c.SetSurface(&fakeSurface{article: h.article})
	return h
}

// collect runs cmd and returns the messages it produced without
// dispatching them.
func (h *harness) collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, sub := range batch {
			out = append(out, h.collect(sub)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func (h *harness) deliver(msg tea.Msg) {
	for _, next := range h.collect(h.c.Update(msg)) {
		h.deliver(next)
	}
}

func (h *harness) run(cmd tea.Cmd) {
	for _, msg := range h.collect(cmd) {
		h.deliver(msg)
	}
}

// fire lets every pending check elapse.
func (h *harness) fire() {
	pending := h.timers
	h.timers = nil
	for _, tm := range pending {
		h.deliver(tm.msg)
	}
}

func (h *harness) linkByTarget(target string) LinkID {
	h.t.Helper()
	for _, id := range h.c.Links() {
		if snap, _ := h.c.Snapshot(id); snap.Target == target {
			return id
		}
	}
	h.t.Fatalf("no link for %s", target)
	return 0
}

func (h *harness) snapshot(id LinkID) Snapshot {
	h.t.Helper()
	snap, ok := h.c.Snapshot(id)
	if !ok {
		h.t.Fatalf("link %d is not wired", id)
	}
	return snap
}

func (h *harness) panels() []*nethtml.Node {
	var out []*nethtml.Node
	for child := h.article.FirstChild; child != nil; child = child.NextSibling {
		if dom.HasClass(child, overlayClass) {
			out = append(out, child)
		}
	}
	return out
}

// showRoot hovers the page's wiki link with the pointer at (x, y) and lets
// the delay pass.
func (h *harness) showRoot(x, y int) LinkID {
	h.t.Helper()
	id := h.linkByTarget(gunSummary)
	h.c.Tracker().Move(x, y)
	h.run(h.c.Enter(id))
	h.fire()
	if !h.snapshot(id).HasOverlay {
		h.t.Fatal("expected overlay after hover delay")
	}
	return id
}

func TestPrepare_WiresOnlyWikiLinks(t *testing.T) {
	h := newHarness(t, Options{})

	ids := h.c.Links()
	if len(ids) != 1 {
		t.Fatalf("expected one wired link, got %d", len(ids))
	}
	snap := h.snapshot(ids[0])
	if snap.Role != RoleRoot || snap.StackDepth != RootDepth {
		t.Fatalf("unexpected root link: %+v", snap)
	}
	if snap.Target != gunSummary {
		t.Fatalf("unexpected target: %s", snap.Target)
	}
	if snap.Label != "Chekhov" {
		t.Fatalf("unexpected label: %q", snap.Label)
	}

	external := h.doc.Find(`a[href="https://example.com/x"]`).Get(0)
	if _, ok := h.c.Lookup(external); ok {
		t.Fatal("external link must not be wired")
	}
	if _, has := dom.Attr(external, "title"); has {
		t.Fatal("external link must be left untouched")
	}
}

func TestEnter_SchedulesSingleCheck(t *testing.T) {
	h := newHarness(t, Options{Delay: 750 * time.Millisecond})
	id := h.linkByTarget(gunSummary)

	h.run(h.c.Enter(id))
	h.run(h.c.Enter(id))
	if len(h.timers) != 1 {
		t.Fatalf("expected one pending check, got %d", len(h.timers))
	}
	if h.timers[0].delay != 750*time.Millisecond {
		t.Fatalf("unexpected delay: %s", h.timers[0].delay)
	}
	if h.fetcher.calls[gunSummary] != 0 {
		t.Fatal("fetch must wait for the delay")
	}
	snap := h.snapshot(id)
	if !snap.Hovering || !snap.Active {
		t.Fatalf("unexpected state after enter: %+v", snap)
	}
}

func TestHover_ShowsSummaryPanel(t *testing.T) {
	h := newHarness(t, Options{})
	id := h.showRoot(30, 5)

	panels := h.panels()
	if len(panels) != 1 || h.article.FirstChild != panels[0] {
		t.Fatalf("expected panel as first article child, got %d panels", len(panels))
	}
	text := dom.TextContent(panels[0])
	if !strings.HasPrefix(text, "Chekhov's Gun") || !strings.Contains(text, "pays off") {
		t.Fatalf("unexpected panel text: %q", text)
	}
	if strings.Contains(text, "More.") {
		t.Fatalf("only the first paragraph belongs in the panel: %q", text)
	}
	strong := panels[0].FirstChild
	if strong == nil || strong.Data != "strong" {
		t.Fatalf("expected heading first, got %+v", strong)
	}
	if margin, _ := dom.Style(strong.NextSibling, "margin-top"); margin != "1" {
		t.Fatalf("unexpected paragraph margin: %q", margin)
	}

	overlay, ok := h.c.Overlay(id)
	if !ok {
		t.Fatal("expected overlay record")
	}
	if overlay.Left != 6 || overlay.Top != 7 || overlay.Width != 48 {
		t.Fatalf("unexpected overlay geometry: %+v", overlay)
	}
	if overlay.Z != RootDepth+1 || overlay.Background != testBackground {
		t.Fatalf("unexpected overlay stacking: %+v", overlay)
	}
	if z, _ := dom.Style(panels[0], "z-index"); z != "101" {
		t.Fatalf("unexpected z-index style: %q", z)
	}

	snap := h.snapshot(id)
	if snap.Label != "" {
		t.Fatalf("expected blank tooltip while shown, got %q", snap.Label)
	}
	if !snap.Loaded || snap.RequestInFlight || snap.Dirty {
		t.Fatalf("unexpected state after render: %+v", snap)
	}
	for _, body := range h.fetcher.bodies {
		if !body.closed {
			t.Fatal("expected response body to be closed")
		}
	}

	nested := h.linkByTarget(foreshadowURL)
	nsnap := h.snapshot(nested)
	if nsnap.Role != RoleNested || nsnap.StackDepth != RootDepth+1 {
		t.Fatalf("unexpected nested link: %+v", nsnap)
	}
	if len(h.timers) != 1 {
		t.Fatalf("expected root to keep polling, got %d checks", len(h.timers))
	}
}

func TestHover_ClampsPanelToArticleLeft(t *testing.T) {
	h := newHarness(t, Options{})
	id := h.showRoot(3, 1)

	overlay, _ := h.c.Overlay(id)
	if overlay.Left != 0 || overlay.Top != 3 {
		t.Fatalf("unexpected overlay position: %+v", overlay)
	}
}

func TestLeave_TearsDownAndRestoresTooltip(t *testing.T) {
	h := newHarness(t, Options{})
	id := h.showRoot(30, 5)

	h.c.Leave(id)
	h.c.Tracker().Move(79, 150)
	h.fire()

	snap := h.snapshot(id)
	if snap.HasOverlay || snap.Loaded || snap.Active || snap.Hovering {
		t.Fatalf("expected clean state after teardown: %+v", snap)
	}
	if snap.Label != "Chekhov" {
		t.Fatalf("expected tooltip restored, got %q", snap.Label)
	}
	if len(h.panels()) != 0 {
		t.Fatal("expected panel removed from article")
	}
	if len(h.c.Links()) != 1 {
		t.Fatalf("expected nested links dropped, got %d links", len(h.c.Links()))
	}
	if len(h.timers) != 0 {
		t.Fatalf("expected polling to stop, got %d checks", len(h.timers))
	}

	h.c.Clear(id)
	if again := h.snapshot(id); again != snap {
		t.Fatalf("second teardown changed state: %+v", again)
	}
}

func TestClear_RemovesTooltipAddedWhenNoneExisted(t *testing.T) {
	h := newHarness(t, Options{})
	dom.RemoveAttr(h.doc.Find(`a[title]`).Get(0), "title")
	base, _ := url.Parse(homeURL)
	h.c.Prepare(h.doc, base)
	id := h.linkByTarget(gunSummary)

	h.c.Tracker().Move(30, 5)
	h.run(h.c.Enter(id))
	h.fire()
	h.c.Clear(id)

	node := h.doc.Find(`a[href="/pmwiki/pmwiki.php/Main/ChekhovsGun"]`).Get(0)
	if _, has := dom.Attr(node, "title"); has {
		t.Fatal("expected tooltip attribute removed")
	}
}

func TestStayingNearPanelKeepsIt(t *testing.T) {
	h := newHarness(t, Options{})
	id := h.showRoot(30, 5)

	h.c.Leave(id)
	// Two cells right of the panel's right edge.
	h.c.Tracker().Move(6+48-1+2, 8)
	h.fire()

	if !h.snapshot(id).HasOverlay {
		t.Fatal("expected panel kept while pointer is near")
	}
	if h.fetcher.calls[gunSummary] != 1 {
		t.Fatalf("expected no refetch, got %d fetches", h.fetcher.calls[gunSummary])
	}
	if len(h.timers) != 1 {
		t.Fatal("expected root to keep polling")
	}
}

func TestHover_NoMarkerLeavesPageUnchanged(t *testing.T) {
	h := newHarness(t, Options{})
	h.fetcher.pages = map[string]string{
		gunSummary: strings.Replace(testPages[gunSummary], "curr-subpage", "subpage", 1),
	}
	id := h.linkByTarget(gunSummary)
	h.c.Tracker().Move(30, 5)
	h.run(h.c.Enter(id))
	h.fire()

	snap := h.snapshot(id)
	if snap.HasOverlay || len(h.panels()) != 0 {
		t.Fatal("expected no panel without a summary marker")
	}
	if snap.Label != "Chekhov" {
		t.Fatalf("expected tooltip untouched, got %q", snap.Label)
	}

	h.fire()
	if h.fetcher.calls[gunSummary] != 1 {
		t.Fatalf("expected a single fetch, got %d", h.fetcher.calls[gunSummary])
	}
}

func TestHover_FetchErrorTearsDown(t *testing.T) {
	h := newHarness(t, Options{})
	h.fetcher.err = errors.New("connection refused")
	id := h.linkByTarget(gunSummary)
	h.c.Tracker().Move(30, 5)
	h.run(h.c.Enter(id))
	h.fire()

	snap := h.snapshot(id)
	if snap.Loaded || snap.RequestInFlight || snap.Active || snap.HasOverlay {
		t.Fatalf("expected teardown after fetch error: %+v", snap)
	}

	h.fire()
	if h.fetcher.calls[gunSummary] != 1 {
		t.Fatalf("stale check must not refetch, got %d", h.fetcher.calls[gunSummary])
	}
}

func TestHover_MissingHeadingTearsDown(t *testing.T) {
	h := newHarness(t, Options{})
	h.fetcher.pages = map[string]string{gunSummary: `<html><body><p>nothing</p></body></html>`}
	id := h.linkByTarget(gunSummary)
	h.c.Tracker().Move(30, 5)
	h.run(h.c.Enter(id))
	h.fire()

	if snap := h.snapshot(id); snap.Loaded || snap.Active {
		t.Fatalf("expected teardown for page without heading: %+v", snap)
	}
}

func TestNestedHover_RedrawsParentPanel(t *testing.T) {
	h := newHarness(t, Options{})
	root := h.showRoot(30, 5)

	h.c.Leave(root)
	h.c.Tracker().Move(10, 8)
	nested := h.linkByTarget(foreshadowURL)
	h.run(h.c.Enter(nested))
	h.fire()

	panels := h.panels()
	if len(panels) != 1 {
		t.Fatalf("expected the same single panel, got %d", len(panels))
	}
	if text := dom.TextContent(panels[0]); !strings.HasPrefix(text, "Foreshadowing") {
		t.Fatalf("expected nested summary in parent panel, got %q", text)
	}
	if !h.snapshot(root).Dirty {
		t.Fatal("expected parent marked dirty")
	}
	if _, ok := h.c.Snapshot(nested); ok {
		t.Fatal("expected replaced nested anchor to be dropped")
	}
	payoff := h.snapshot(h.linkByTarget("https://tvtropes.org/pmwiki/pmwiki.php/Laconic/Payoff"))
	if payoff.Role != RoleNested || payoff.StackDepth != RootDepth+2 {
		t.Fatalf("unexpected second level link: %+v", payoff)
	}
	if parent, _ := h.c.links[payoff.ID].ParentID(); parent != root {
		t.Fatalf("expected parent %d, got %d", root, parent)
	}

	h.fire()
	panels = h.panels()
	if len(panels) != 1 {
		t.Fatalf("expected a single panel after reload, got %d", len(panels))
	}
	if text := dom.TextContent(panels[0]); !strings.HasPrefix(text, "Chekhov's Gun") {
		t.Fatalf("expected parent summary restored, got %q", text)
	}
	if h.fetcher.calls[gunSummary] != 2 {
		t.Fatalf("expected parent refetch, got %d", h.fetcher.calls[gunSummary])
	}
	if h.snapshot(root).Dirty {
		t.Fatal("expected dirty flag cleared")
	}
}

func TestNestedCheck_AwayDoesNothing(t *testing.T) {
	h := newHarness(t, Options{})
	root := h.showRoot(30, 5)
	nested := h.linkByTarget(foreshadowURL)

	h.run(h.c.Enter(nested))
	h.c.Leave(nested)
	h.timers = h.timers[1:]
	h.c.Tracker().Move(79, 150)
	h.fire()

	snap := h.snapshot(nested)
	if snap.Loaded || snap.Active {
		t.Fatalf("unexpected nested state: %+v", snap)
	}
	if !h.snapshot(root).HasOverlay {
		t.Fatal("nested check must not tear down the parent")
	}
	if len(h.timers) != 0 {
		t.Fatal("nested links never reschedule")
	}

	h.run(h.c.Enter(nested))
	if len(h.timers) != 1 {
		t.Fatalf("expected re-entering the nested link to schedule a check, got %d", len(h.timers))
	}
}

func TestResponse_SupersededIsDropped(t *testing.T) {
	h := newHarness(t, Options{})
	id := h.linkByTarget(gunSummary)
	h.c.Tracker().Move(30, 5)

	h.run(h.c.Enter(id))
	first := h.collect(h.c.Update(h.timers[0].msg))
	h.timers = nil
	if len(first) != 1 {
		t.Fatalf("expected one pending response, got %d", len(first))
	}

	h.c.Clear(id)
	h.run(h.c.Enter(id))
	h.fire()
	if !h.snapshot(id).HasOverlay {
		t.Fatal("expected second invocation to render")
	}

	h.deliver(first[0])
	if !h.snapshot(id).HasOverlay || len(h.panels()) != 1 {
		t.Fatal("superseded response must not disturb the current panel")
	}
	if !h.fetcher.bodies[0].closed {
		t.Fatal("expected superseded body closed")
	}
}

func TestResponse_AfterTeardownIsDiscarded(t *testing.T) {
	h := newHarness(t, Options{})
	id := h.linkByTarget(gunSummary)
	h.c.Tracker().Move(30, 5)

	h.run(h.c.Enter(id))
	pending := h.collect(h.c.Update(h.timers[0].msg))
	h.c.Clear(id)
	for _, msg := range pending {
		h.deliver(msg)
	}

	if snap := h.snapshot(id); snap.HasOverlay || snap.Loaded || snap.RequestInFlight {
		t.Fatalf("late response revived a torn down link: %+v", snap)
	}
	if !h.fetcher.bodies[0].closed {
		t.Fatal("expected late body closed unread")
	}
}

func TestResponse_AfterTeardownLeavesNewHoverAlone(t *testing.T) {
	h := newHarness(t, Options{})
	id := h.linkByTarget(gunSummary)
	h.c.Tracker().Move(30, 5)

	h.run(h.c.Enter(id))
	pending := h.collect(h.c.Update(h.timers[0].msg))
	h.timers = h.timers[1:]

	h.c.Leave(id)
	h.c.Tracker().Move(79, 150)
	h.fire()
	if snap := h.snapshot(id); snap.Active || snap.Hovering {
		t.Fatalf("expected teardown once the pointer left: %+v", snap)
	}

	h.c.Tracker().Move(30, 5)
	h.run(h.c.Enter(id))
	for _, msg := range pending {
		h.deliver(msg)
	}
	if snap := h.snapshot(id); !snap.Active || !snap.Hovering || len(h.timers) != 1 {
		t.Fatalf("late response disturbed the new hover: %+v, %d checks", snap, len(h.timers))
	}

	h.fire()
	if !h.snapshot(id).HasOverlay {
		t.Fatal("expected summary for the new hover")
	}
	if !h.fetcher.bodies[0].closed {
		t.Fatal("expected late body closed unread")
	}
}

func TestFlatMode_NestedLinksOwnPanels(t *testing.T) {
	h := newHarness(t, Options{Nested: NestedFlat})
	root := h.showRoot(30, 5)

	nested := h.linkByTarget(foreshadowURL)
	if snap := h.snapshot(nested); snap.Role != RoleRoot || snap.StackDepth != RootDepth+1 {
		t.Fatalf("unexpected flat link: %+v", snap)
	}

	h.c.Tracker().Move(10, 8)
	h.run(h.c.Enter(nested))
	h.fire()
	if len(h.panels()) != 2 {
		t.Fatalf("expected two panels, got %d", len(h.panels()))
	}
	overlay, _ := h.c.Overlay(nested)
	if overlay.Z != RootDepth+2 {
		t.Fatalf("unexpected flat z-index: %d", overlay.Z)
	}

	h.c.Leave(root)
	h.c.Leave(nested)
	h.c.Tracker().Move(79, 190)
	h.fire()
	if len(h.panels()) != 0 {
		t.Fatalf("expected all panels gone, got %d", len(h.panels()))
	}
	if len(h.c.Links()) != 1 {
		t.Fatalf("expected only the page link left, got %d", len(h.c.Links()))
	}
}

func TestPrepare_ResetsPreviousPage(t *testing.T) {
	h := newHarness(t, Options{})
	first := h.linkByTarget(gunSummary)
	rev := h.c.Revision()

	base, _ := url.Parse(homeURL)
	h.c.Prepare(h.doc, base)
	second := h.linkByTarget(gunSummary)
	if second == first {
		t.Fatal("expected fresh link ids after prepare")
	}
	if h.c.Revision() == rev {
		t.Fatal("expected revision bump")
	}
	if n := h.c.Prepare(nil, nil); n != 0 || len(h.c.Links()) != 0 {
		t.Fatalf("expected empty controller, got %d", n)
	}
}

func TestParseNestedMode(t *testing.T) {
	cases := map[string]NestedMode{"": NestedInPlace, "inplace": NestedInPlace, " FLAT ": NestedFlat}
	for raw, want := range cases {
		got, err := ParseNestedMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseNestedMode(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseNestedMode("stacked"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
