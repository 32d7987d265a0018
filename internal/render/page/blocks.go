package page

import (
	"fmt"
	"strconv"
	"strings"

	nethtml "golang.org/x/net/html"

	"github.com/glabrego/laconic-cli/internal/dom"
)

type renderer struct {
	width  int
	panels *[]*panel
	order  *int
}

func (r renderer) narrow(width int) renderer {
	return renderer{width: max(1, width), panels: r.panels, order: r.order}
}

func (r renderer) renderNodes(nodes []*nethtml.Node, listDepth int) []line {
	lines := make([]line, 0, len(nodes)*2)
	var ic inlineCollector
	flushInline := func() {
		if ic.empty() {
			ic.reset()
			return
		}
		block := wrapTokens(ic.tokens, r.width, nil, nil)
		ic.reset()
		lines = separate(lines, 1)
		lines = append(lines, block...)
	}

	for _, node := range nodes {
		switch node.Type {
		case nethtml.TextNode:
			ic.node(node, 0, nil)
		case nethtml.ElementNode:
			if isPositioned(node) {
				r.collectPanel(node)
				continue
			}
			if isBlockElement(node.Data) {
				flushInline()
				block := r.renderBlock(node, listDepth)
				if len(block) == 0 {
					continue
				}
				gap, ok := marginTop(node)
				if !ok {
					gap = 1
				}
				lines = separate(lines, gap)
				lines = append(lines, block...)
				continue
			}
			ic.node(node, 0, nil)
		}
	}
	flushInline()
	return trimBlankLines(lines)
}

func (r renderer) renderBlock(node *nethtml.Node, listDepth int) []line {
	tag := strings.ToLower(node.Data)
	switch tag {
	case "script", "style", "noscript", "head", "title":
		return nil
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(tag[1] - '0')
		first := headingPrefix(level)
		rest := line{segment{text: strings.Repeat(" ", first.width())}}
		var ic inlineCollector
		ic.children(node, kindHeading, nil)
		return wrapTokens(ic.tokens, r.width, first, rest)
	case "blockquote":
		inner := r.narrow(r.width - 2).renderNodes(childNodes(node), listDepth)
		out := make([]line, 0, len(inner))
		for _, ln := range inner {
			if ln.blank() {
				out = append(out, nil)
				continue
			}
			quoted := line{segment{text: "│ ", kind: kindMuted}}
			for _, seg := range ln {
				seg.kind |= kindQuote
				quoted = quoted.append(seg)
			}
			out = append(out, quoted)
		}
		return out
	case "ul":
		return r.renderList(node, false, listDepth+1)
	case "ol":
		return r.renderList(node, true, listDepth+1)
	case "li":
		return r.renderListItem(node, listDepth, "- ")
	case "dl":
		return r.renderDefinitionList(node, listDepth)
	case "table":
		return r.renderTable(node)
	case "figure":
		return r.renderNodes(childNodes(node), listDepth)
	case "figcaption", "caption":
		var ic inlineCollector
		ic.children(node, kindItalic|kindMuted, nil)
		return wrapTokens(ic.tokens, r.width, textLine("— ", kindMuted), textLine("  ", 0))
	case "img":
		return r.renderImage(node)
	case "pre":
		text := strings.ReplaceAll(dom.TextContent(node), "\r\n", "\n")
		text = strings.ReplaceAll(text, "\t", "    ")
		out := make([]line, 0, 8)
		for _, raw := range strings.Split(text, "\n") {
			raw = strings.TrimRight(raw, " ")
			if raw == "" {
				out = append(out, nil)
				continue
			}
			out = append(out, line{segment{text: "    "}, segment{text: raw, kind: kindCode}})
		}
		return trimBlankLines(out)
	case "hr":
		return []line{textLine(strings.Repeat("-", min(max(r.width, 3), 24)), kindMuted)}
	default:
		if hasBlockChild(node) {
			return r.renderNodes(childNodes(node), listDepth)
		}
		var ic inlineCollector
		ic.children(node, 0, nil)
		if ic.empty() {
			return nil
		}
		return wrapTokens(ic.tokens, r.width, nil, nil)
	}
}

func (r renderer) renderList(node *nethtml.Node, ordered bool, listDepth int) []line {
	lines := make([]line, 0, 16)
	itemIndex := 0
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != nethtml.ElementNode || strings.ToLower(child.Data) != "li" {
			continue
		}
		itemIndex++
		marker := unorderedListMarker(listDepth)
		if ordered {
			marker = fmt.Sprintf("%d. ", itemIndex)
		}
		lines = append(lines, r.renderListItem(child, listDepth, marker)...)
	}
	return trimBlankLines(lines)
}

func (r renderer) renderListItem(node *nethtml.Node, listDepth int, marker string) []line {
	indent := strings.Repeat("  ", max(0, listDepth-1))
	first := line{segment{text: indent}, segment{text: marker, kind: kindMuted}}
	rest := line{segment{text: indent + strings.Repeat(" ", len([]rune(marker)))}}

	var ic inlineCollector
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if isList(child) {
			continue
		}
		ic.node(child, 0, nil)
	}
	lines := make([]line, 0, 8)
	if !ic.empty() {
		lines = append(lines, wrapTokens(ic.tokens, r.width, first, rest)...)
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if !isList(child) {
			continue
		}
		lines = append(lines, r.renderList(child, strings.EqualFold(child.Data, "ol"), listDepth+1)...)
	}
	return lines
}

func (r renderer) renderDefinitionList(node *nethtml.Node, listDepth int) []line {
	lines := make([]line, 0, 8)
	indent := strings.Repeat("  ", max(0, listDepth-1))
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != nethtml.ElementNode {
			continue
		}
		var ic inlineCollector
		switch strings.ToLower(child.Data) {
		case "dt":
			ic.children(child, kindBold, nil)
			if ic.empty() {
				continue
			}
			lines = append(lines, wrapTokens(ic.tokens, r.width, textLine(indent+"• ", 0), textLine(indent+"  ", 0))...)
		case "dd":
			ic.children(child, 0, nil)
			if ic.empty() {
				continue
			}
			lines = append(lines, wrapTokens(ic.tokens, r.width, textLine(indent+"  ", 0), textLine(indent+"  ", 0))...)
		}
	}
	return trimBlankLines(lines)
}

func (r renderer) renderTable(node *nethtml.Node) []line {
	rows := tableRows(node)
	if len(rows) == 0 {
		return nil
	}
	border := token{text: "|", kind: kindBorder, space: true}
	lines := make([]line, 0, len(rows)+1)
	for i, row := range rows {
		header := i == 0 && rowHasHeader(row)
		var ic inlineCollector
		ic.tokens = append(ic.tokens, token{text: "|", kind: kindBorder})
		columns := 0
		for _, cell := range row {
			kind := segKind(0)
			if header {
				kind = kindBold
			}
			ic.pending = true
			ic.children(cell, kind, nil)
			ic.tokens = append(ic.tokens, border)
			ic.pending = false
			columns++
		}
		lines = append(lines, wrapTokens(ic.tokens, r.width, nil, nil)...)
		if header {
			sep := "|" + strings.Repeat(" --- |", columns)
			lines = append(lines, textLine(sep, kindBorder))
		}
	}
	return lines
}

func (r renderer) renderImage(node *nethtml.Node) []line {
	text, _ := dom.Attr(node, "alt")
	if strings.TrimSpace(text) == "" {
		text, _ = dom.Attr(node, "title")
	}
	var ic inlineCollector
	ic.text("◌◌◌ Image", kindImage, nil)
	ic.pending = true
	ic.text(text, kindItalic, nil)
	return wrapTokens(ic.tokens, r.width, nil, nil)
}

// tableRows returns the cell elements of every row, nested tables included.
func tableRows(table *nethtml.Node) [][]*nethtml.Node {
	rows := make([][]*nethtml.Node, 0, 8)
	var walk func(*nethtml.Node)
	walk = func(node *nethtml.Node) {
		if node.Type == nethtml.ElementNode && strings.EqualFold(node.Data, "tr") {
			row := make([]*nethtml.Node, 0, 4)
			for c := node.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == nethtml.ElementNode && (strings.EqualFold(c.Data, "td") || strings.EqualFold(c.Data, "th")) {
					row = append(row, c)
				}
			}
			if len(row) > 0 {
				rows = append(rows, row)
			}
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

func rowHasHeader(row []*nethtml.Node) bool {
	for _, cell := range row {
		if strings.EqualFold(cell.Data, "th") {
			return true
		}
	}
	return false
}

func headingPrefix(level int) line {
	level = min(max(level, 1), len(headingBars))
	return line{
		segment{text: "▌", bar: level},
		segment{text: strings.Repeat(" ", max(1, level-1))},
	}
}

func unorderedListMarker(listDepth int) string {
	switch listDepth {
	case 1:
		return "• "
	case 2:
		return "◦ "
	case 3:
		return "▪ "
	default:
		return "▫ "
	}
}

// separate ends lines with exactly gap blank lines, unless lines is empty.
func separate(lines []line, gap int) []line {
	if len(lines) == 0 {
		return lines
	}
	trailing := 0
	for i := len(lines) - 1; i >= 0 && lines[i].blank(); i-- {
		trailing++
	}
	for ; trailing < gap; trailing++ {
		lines = append(lines, nil)
	}
	return lines
}

func trimBlankLines(lines []line) []line {
	start := 0
	for start < len(lines) && lines[start].blank() {
		start++
	}
	end := len(lines)
	for end > start && lines[end-1].blank() {
		end--
	}
	if start == end {
		return nil
	}
	return lines[start:end]
}

func childNodes(node *nethtml.Node) []*nethtml.Node {
	children := make([]*nethtml.Node, 0, 4)
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, child)
	}
	return children
}

func isList(node *nethtml.Node) bool {
	return node.Type == nethtml.ElementNode && (strings.EqualFold(node.Data, "ul") || strings.EqualFold(node.Data, "ol"))
}

func isBlockElement(tag string) bool {
	switch strings.ToLower(tag) {
	case "h1", "h2", "h3", "h4", "h5", "h6",
		"p", "div", "section", "article", "main", "header", "footer", "aside", "nav",
		"blockquote", "ul", "ol", "li", "table", "thead", "tbody", "tfoot", "tr", "td", "th", "img",
		"dl", "dt", "dd", "pre", "figure", "figcaption", "caption", "hr",
		"script", "style", "noscript":
		return true
	default:
		return false
	}
}

func hasBlockChild(node *nethtml.Node) bool {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == nethtml.ElementNode && isBlockElement(child.Data) {
			return true
		}
	}
	return false
}

// isPositioned reports whether node is taken out of the text flow.
func isPositioned(node *nethtml.Node) bool {
	position, _ := dom.Style(node, "position")
	return strings.EqualFold(position, "absolute")
}

func marginTop(node *nethtml.Node) (int, bool) {
	raw, ok := dom.Style(node, "margin-top")
	if !ok {
		return 0, false
	}
	return cells(raw)
}

// cells reads a length such as "12", "12ch" or "12px" as a cell count.
func cells(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && (raw[end] == '-' && end == 0 || raw[end] >= '0' && raw[end] <= '9') {
		end++
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
