package page

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
	nethtml "golang.org/x/net/html"

	"github.com/glabrego/laconic-cli/internal/dom"
)

// segment is a run of text drawn with one style. link is the anchor the
// text belongs to, if any.
type segment struct {
	text string
	kind segKind
	link *nethtml.Node
	bar  int
}

type line []segment

func (l line) width() int {
	n := 0
	for _, seg := range l {
		n += ansi.StringWidth(seg.text)
	}
	return n
}

func (l line) blank() bool {
	for _, seg := range l {
		if strings.TrimSpace(seg.text) != "" {
			return false
		}
	}
	return true
}

func (l line) append(seg segment) line {
	if seg.text == "" {
		return l
	}
	if n := len(l); n > 0 {
		last := &l[n-1]
		if last.kind == seg.kind && last.link == seg.link && last.bar == seg.bar {
			last.text += seg.text
			return l
		}
	}
	return append(l, seg)
}

// token is one word of inline content, or a forced line break.
type token struct {
	text  string
	kind  segKind
	link  *nethtml.Node
	space bool
	brk   bool
}

type inlineCollector struct {
	tokens  []token
	pending bool
}

func (ic *inlineCollector) text(s string, kind segKind, link *nethtml.Node) {
	var word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		ic.tokens = append(ic.tokens, token{text: word.String(), kind: kind, link: link, space: ic.pending})
		ic.pending = false
		word.Reset()
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			flush()
			ic.pending = true
			continue
		}
		word.WriteRune(r)
	}
	flush()
}

func (ic *inlineCollector) lineBreak() {
	ic.tokens = append(ic.tokens, token{brk: true})
	ic.pending = false
}

// glue appends text that sticks to the previous word.
func (ic *inlineCollector) glue(s string, kind segKind, link *nethtml.Node) {
	ic.tokens = append(ic.tokens, token{text: s, kind: kind, link: link, space: ic.pending})
	ic.pending = false
}

func (ic *inlineCollector) empty() bool {
	for _, tok := range ic.tokens {
		if !tok.brk {
			return false
		}
	}
	return true
}

func (ic *inlineCollector) reset() {
	ic.tokens = ic.tokens[:0]
	ic.pending = false
}

func (ic *inlineCollector) node(node *nethtml.Node, kind segKind, link *nethtml.Node) {
	if node == nil {
		return
	}
	switch node.Type {
	case nethtml.TextNode:
		ic.text(node.Data, kind, link)
		return
	case nethtml.ElementNode:
	default:
		return
	}
	if isPositioned(node) {
		return
	}
	switch strings.ToLower(node.Data) {
	case "script", "style", "noscript", "img":
		return
	case "br":
		ic.lineBreak()
		return
	case "a":
		if _, ok := dom.Attr(node, "href"); ok {
			link = node
			kind |= kindLink
		}
	case "strong", "b":
		kind |= kindBold
	case "em", "i", "cite", "var":
		kind |= kindItalic
	case "code", "kbd", "samp", "tt":
		kind |= kindCode
	case "q":
		ic.glue(`"`, kind, link)
		ic.children(node, kind, link)
		ic.tokens = append(ic.tokens, token{text: `"`, kind: kind, link: link})
		return
	}
	ic.children(node, kind, link)
}

func (ic *inlineCollector) children(node *nethtml.Node, kind segKind, link *nethtml.Node) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		ic.node(child, kind, link)
	}
}

// wrapTokens flows tokens into lines of at most width cells. first and rest
// are drawn at the start of the first and following lines.
func wrapTokens(tokens []token, width int, first, rest line) []line {
	width = max(1, width)
	out := make([]line, 0, 4)
	cur := append(line(nil), first...)
	start := cur.width()
	col := start
	used := false
	var prev *nethtml.Node

	newLine := func() {
		out = append(out, cur)
		cur = append(line(nil), rest...)
		start = cur.width()
		col = start
		used = false
		prev = nil
	}

	for _, tok := range tokens {
		if tok.brk {
			newLine()
			continue
		}
		w := ansi.StringWidth(tok.text)
		sep := tok.space && used
		need := w
		if sep {
			need++
		}
		if col+need > width && used {
			newLine()
			sep = false
		}
		if sep {
			space := segment{text: " ", kind: tok.kind &^ kindLink}
			if prev != nil && prev == tok.link {
				space.kind, space.link = tok.kind, tok.link
			}
			cur = cur.append(space)
			col++
		}
		text := tok.text
		for w > width-col && width-col > 0 && col == start {
			head, tail := splitWidth(text, width-col)
			if head == "" {
				break
			}
			cur = cur.append(segment{text: head, kind: tok.kind, link: tok.link})
			used = true
			newLine()
			text = tail
			w = ansi.StringWidth(text)
		}
		if text == "" {
			continue
		}
		cur = cur.append(segment{text: text, kind: tok.kind, link: tok.link})
		col += w
		used = true
		prev = tok.link
	}
	if used {
		out = append(out, cur)
	}
	return out
}

// splitWidth cuts s after at most n cells.
func splitWidth(s string, n int) (string, string) {
	w := 0
	for i, r := range s {
		rw := ansi.StringWidth(string(r))
		if w+rw > n {
			return s[:i], s[i:]
		}
		w += rw
	}
	return s, ""
}

func textLine(s string, kind segKind) line {
	return line{segment{text: s, kind: kind}}
}
