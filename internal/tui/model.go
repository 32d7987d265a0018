package tui

import (
	"net/url"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	nethtml "golang.org/x/net/html"

	"github.com/glabrego/laconic-cli/internal/app"
	"github.com/glabrego/laconic-cli/internal/dom"
	"github.com/glabrego/laconic-cli/internal/popup"
	renderpage "github.com/glabrego/laconic-cli/internal/render/page"
	"github.com/glabrego/laconic-cli/internal/storage"
	"github.com/glabrego/laconic-cli/internal/tui/actions"
	tuiplatform "github.com/glabrego/laconic-cli/internal/tui/platform"
	tuistate "github.com/glabrego/laconic-cli/internal/tui/state"
	tuitheme "github.com/glabrego/laconic-cli/internal/tui/theme"
	tuiview "github.com/glabrego/laconic-cli/internal/tui/view"
	"github.com/glabrego/laconic-cli/internal/wiki"
)

const (
	// headerRows and footerRows frame the page body on screen.
	headerRows   = 2
	footerRows   = 2
	defaultWidth = 80
	historyLimit = 50
	backLimit    = 100
	wheelStep    = 3
)

type Service = actions.Service

type clearStatusMsg struct {
	id int
}

type Model struct {
	service    Service
	controller *popup.Controller
	surface    *surface
	theme      tuitheme.Theme
	logger     *zap.Logger

	startURL string
	page     *app.Page
	article  *nethtml.Node
	back     *tuistate.BackStack

	layout      *renderpage.Layout
	layoutRev   uint64
	layoutWidth int
	top         int

	width  int
	height int

	pointerX   int
	pointerY   int
	hasPointer bool
	hovered    *nethtml.Node

	loading  bool
	warning  string
	status   string
	statusID int

	showHistory   bool
	visits        []storage.Visit
	historyCursor int

	openURLFn func(string) error
	copyURLFn func(string) error
	nowFn     func() time.Time
}

func NewModel(service Service, controller *popup.Controller, startURL string, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &surface{}
	if controller != nil {
		controller.SetSurface(s)
	}
	return Model{
		service:    service,
		controller: controller,
		surface:    s,
		theme:      tuitheme.Default(),
		logger:     logger,
		startURL:   strings.TrimSpace(startURL),
		back:       tuistate.NewBackStack(backLimit),
		loading:    service != nil && strings.TrimSpace(startURL) != "",
		openURLFn:  tuiplatform.OpenInBrowser,
		copyURLFn:  tuiplatform.CopyToClipboard,
		nowFn:      time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	if !m.loading {
		return nil
	}
	return actions.LoadPageCmd(m.service, m.startURL, actions.NavigateForward)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	next.relayout()
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if m.showHistory {
			return m.historyKey(msg)
		}
		return m.pageKey(msg)
	case tea.MouseMsg:
		if m.showHistory {
			return m, nil
		}
		return m.mouse(msg)
	case actions.PageLoadedMsg:
		return m.pageLoaded(msg), nil
	case actions.PageErrorMsg:
		m.loading = false
		m.warning = msg.Err.Error()
		if msg.Navigation == actions.NavigateBack {
			m.back.Push(msg.URL)
		}
		m.logger.Error("Page load failed",
			zap.String("url", msg.URL),
			zap.Error(msg.Err))
		return m, nil
	case actions.HistoryLoadedMsg:
		m.visits = msg.Visits
		m.historyCursor = 0
		return m, nil
	case actions.HistoryErrorMsg:
		m.showHistory = false
		m.warning = msg.Err.Error()
		return m, nil
	case actions.OpenURLSuccessMsg:
		m.status = msg.Status
		m.statusID++
		return m, clearStatusCmd(m.statusID, 3*time.Second)
	case actions.OpenURLErrorMsg:
		m.status = msg.Err.Error()
		m.statusID++
		return m, clearStatusCmd(m.statusID, 4*time.Second)
	case clearStatusMsg:
		if msg.id == m.statusID {
			m.status = ""
		}
		return m, nil
	}
	if m.controller == nil {
		return m, nil
	}
	return m, m.controller.Update(msg)
}

func (m Model) pageKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "down", "j":
		return m.scroll(1)
	case "up", "k":
		return m.scroll(-1)
	case "pgdown", "ctrl+f", " ":
		return m.scroll(tuistate.PageStep(m.bodyHeight()))
	case "pgup", "ctrl+b":
		return m.scroll(-tuistate.PageStep(m.bodyHeight()))
	case "g":
		return m.scroll(-m.top)
	case "G":
		if m.layout == nil {
			return m, nil
		}
		return m.scroll(m.layout.Height())
	case "esc":
		m.teardown()
		return m, nil
	case "b", "backspace":
		previous, ok := m.back.Pop()
		if !ok {
			m.status = "No previous page"
			m.statusID++
			return m, clearStatusCmd(m.statusID, 3*time.Second)
		}
		return m.navigate(previous, actions.NavigateBack)
	case "r":
		if m.page == nil {
			if m.startURL == "" {
				return m, nil
			}
			return m.navigate(m.startURL, actions.NavigateForward)
		}
		return m.navigate(m.page.URL.String(), actions.NavigateReload)
	case "o":
		target, err := tuiplatform.ValidateURL(m.focusURL())
		if err != nil {
			m.status = err.Error()
			m.statusID++
			return m, clearStatusCmd(m.statusID, 4*time.Second)
		}
		return m, actions.OpenURLCmd(target, m.openURLFn, m.copyURLFn)
	case "y":
		target, err := tuiplatform.ValidateURL(m.focusURL())
		if err != nil {
			m.status = err.Error()
			m.statusID++
			return m, clearStatusCmd(m.statusID, 4*time.Second)
		}
		return m, actions.CopyURLCmd(target, m.copyURLFn)
	case "h":
		if m.service == nil {
			return m, nil
		}
		m.showHistory = true
		m.visits = nil
		return m, actions.LoadHistoryCmd(m.service, historyLimit)
	}
	return m, nil
}

func (m Model) historyKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc", "h":
		m.showHistory = false
	case "down", "j":
		m.historyCursor = tuistate.ClampCursor(m.historyCursor+1, len(m.visits))
	case "up", "k":
		m.historyCursor = tuistate.ClampCursor(m.historyCursor-1, len(m.visits))
	case "enter":
		if len(m.visits) == 0 {
			return m, nil
		}
		m.showHistory = false
		return m.navigate(m.visits[m.historyCursor].URL, actions.NavigateForward)
	}
	return m, nil
}

func (m Model) mouse(msg tea.MouseMsg) (Model, tea.Cmd) {
	m.pointerX, m.pointerY = msg.X, msg.Y
	m.hasPointer = true

	if msg.Action == tea.MouseActionPress {
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			return m.scroll(-wheelStep)
		case tea.MouseButtonWheelDown:
			return m.scroll(wheelStep)
		case tea.MouseButtonLeft:
			cmd := m.syncHover()
			if m.hovered == nil {
				return m, cmd
			}
			return m.follow(m.hovered)
		}
	}
	return m, m.syncHover()
}

func (m Model) scroll(delta int) (Model, tea.Cmd) {
	if m.layout == nil {
		return m, nil
	}
	m.top = tuistate.ClampTop(m.top+delta, m.layout.Height(), m.bodyHeight())
	return m, m.syncHover()
}

// syncHover moves the tracker to the pointer and turns a change of the
// anchor under it into leave and enter events.
func (m *Model) syncHover() tea.Cmd {
	if !m.hasPointer || m.controller == nil {
		return nil
	}
	x, y := m.articlePoint()
	m.controller.Tracker().Move(x, y)

	var node *nethtml.Node
	if m.layout != nil && m.pointerY >= headerRows && m.pointerY < headerRows+m.bodyHeight() {
		node = m.layout.HitTest(x, y)
	}
	if node == m.hovered {
		return nil
	}
	if m.hovered != nil {
		if id, ok := m.controller.Lookup(m.hovered); ok {
			m.controller.Leave(id)
		}
	}
	m.hovered = node
	if node == nil {
		return nil
	}
	if id, ok := m.controller.Lookup(node); ok {
		return m.controller.Enter(id)
	}
	return nil
}

func (m Model) articlePoint() (int, int) {
	return m.pointerX, m.pointerY - headerRows + m.top
}

func (m Model) follow(node *nethtml.Node) (Model, tea.Cmd) {
	href, _ := dom.Attr(node, "href")
	target, err := tuiplatform.ValidateURL(wiki.Resolve(href, m.baseURL()))
	if err != nil {
		m.status = err.Error()
		m.statusID++
		return m, clearStatusCmd(m.statusID, 4*time.Second)
	}
	if !m.sameSite(target) {
		return m, actions.OpenURLCmd(target, m.openURLFn, m.copyURLFn)
	}
	return m.navigate(target, actions.NavigateForward)
}

// sameSite reports whether target lives on the host of the current page.
// Other links are handed to the browser.
func (m Model) sameSite(target string) bool {
	base := m.baseURL()
	if base == nil {
		return true
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, base.Host)
}

func (m Model) navigate(target string, nav actions.Navigation) (Model, tea.Cmd) {
	if m.service == nil {
		return m, nil
	}
	m.teardown()
	m.loading = true
	m.warning = ""
	m.status = ""
	return m, actions.LoadPageCmd(m.service, target, nav)
}

// teardown closes every summary panel on the page.
func (m *Model) teardown() {
	if m.controller == nil {
		return
	}
	for _, id := range m.controller.Links() {
		m.controller.Clear(id)
	}
}

func (m Model) pageLoaded(msg actions.PageLoadedMsg) Model {
	m.loading = false
	m.warning = ""
	p := msg.Page
	if p == nil {
		return m
	}
	if msg.Navigation == actions.NavigateForward && m.page != nil && m.page.URL.String() != p.URL.String() {
		m.back.Push(m.page.URL.String())
	}
	if msg.Navigation != actions.NavigateReload {
		m.top = 0
	}
	m.page = p
	m.article = nil
	if p.Document != nil {
		if sel := p.Document.Find(wiki.SelectorArticle).First(); sel.Length() > 0 {
			m.article = sel.Get(0)
		}
	}
	m.surface.background = p.Background
	m.hovered = nil
	m.layout = nil

	links := 0
	if m.controller != nil {
		links = m.controller.Prepare(p.Document, p.URL)
	}
	m.logger.Info("Page loaded",
		zap.String("url", p.URL.String()),
		zap.String("title", p.Title),
		zap.Int("links", links),
		zap.Duration("duration", msg.Duration))
	return m
}

// relayout redraws the article when the tree or the width changed since the
// last layout. A hovered anchor that is no longer drawn is left.
func (m *Model) relayout() {
	if m.page == nil {
		return
	}
	var rev uint64
	if m.controller != nil {
		rev = m.controller.Revision()
	}
	width := m.contentWidth()
	if m.layout != nil && rev == m.layoutRev && width == m.layoutWidth {
		return
	}
	m.layout = renderpage.Compute(m.article, width)
	m.layoutRev = rev
	m.layoutWidth = width
	m.surface.layout = m.layout
	m.top = tuistate.ClampTop(m.top, m.layout.Height(), m.bodyHeight())

	if m.hovered == nil {
		return
	}
	if _, ok := m.layout.Bounds(m.hovered); ok {
		return
	}
	if m.controller != nil {
		if id, ok := m.controller.Lookup(m.hovered); ok {
			m.controller.Leave(id)
		}
	}
	m.hovered = nil
}

func (m Model) View() string {
	var b strings.Builder
	title := ""
	if m.page != nil {
		title = m.page.Title
	}
	b.WriteString(tuiview.Header(title, m.width, m.theme))
	b.WriteString("\n")
	b.WriteString(tuiview.Fit(tuiview.Toolbar(m.showHistory), m.width))
	b.WriteString("\n")

	body := m.bodyLines()
	height := m.bodyHeight()
	for i := 0; i < height; i++ {
		if i < len(body) {
			b.WriteString(body[i])
		}
		b.WriteString("\n")
	}

	b.WriteString(tuiview.Message(m.loading, m.warning, m.status, m.hoverText(), m.width, m.theme))
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) bodyLines() []string {
	height := m.bodyHeight()
	if m.showHistory {
		if m.visits == nil {
			return []string{"Loading history..."}
		}
		start, end := tuistate.CenteredWindow(len(m.visits), m.historyCursor, height-1)
		return tuiview.History(m.visits, m.historyCursor, start, end, m.nowFn(), m.contentWidth(), m.theme)
	}
	switch {
	case m.page == nil && m.loading:
		return []string{"Loading page..."}
	case m.page == nil:
		return []string{"No page loaded."}
	case m.article == nil:
		return []string{"No article content on this page."}
	case m.layout == nil:
		return nil
	}
	return m.layout.View(m.top, height, m.hovered)
}

func (m Model) hoverText() string {
	if m.hovered == nil {
		return ""
	}
	href, _ := dom.Attr(m.hovered, "href")
	tooltip, _ := dom.Attr(m.hovered, "title")
	return m.theme.RenderHover(strings.TrimSpace(tooltip), wiki.Resolve(href, m.baseURL()))
}

func (m Model) footer() string {
	url := ""
	if m.page != nil {
		url = m.page.URL.String()
	}
	total, links := 0, 0
	if m.layout != nil {
		total = m.layout.Height()
	}
	nested := popup.NestedInPlace.String()
	if m.controller != nil {
		links = len(m.controller.Links())
		nested = m.controller.Options().Nested.String()
	}
	return tuiview.Footer(url, m.top, m.bodyHeight(), total, links, nested, m.width, m.theme)
}

// focusURL is the hovered link if any, otherwise the current page.
func (m Model) focusURL() string {
	if m.hovered != nil {
		href, _ := dom.Attr(m.hovered, "href")
		if resolved := wiki.Resolve(href, m.baseURL()); resolved != "" {
			return resolved
		}
	}
	if m.page != nil {
		return m.page.URL.String()
	}
	return ""
}

func (m Model) baseURL() *url.URL {
	if m.page == nil {
		return nil
	}
	return m.page.URL
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return defaultWidth
	}
	return m.width
}

func (m Model) bodyHeight() int {
	if m.height <= 0 {
		return 20
	}
	h := m.height - headerRows - footerRows
	if h < 1 {
		h = 1
	}
	return h
}

func clearStatusCmd(id int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return clearStatusMsg{id: id}
	})
}
