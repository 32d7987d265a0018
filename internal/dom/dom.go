package dom

import (
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Rect is an inclusive cell rectangle.
type Rect struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

func (r Rect) Contains(x, y int) bool {
	return x >= r.Left && x <= r.Right && y >= r.Top && y <= r.Bottom
}

// Expand grows the rectangle by d cells on every side.
func (r Rect) Expand(d int) Rect {
	return Rect{Left: r.Left - d, Top: r.Top - d, Right: r.Right + d, Bottom: r.Bottom + d}
}

func (r Rect) Union(o Rect) Rect {
	return Rect{
		Left:   min(r.Left, o.Left),
		Top:    min(r.Top, o.Top),
		Right:  max(r.Right, o.Right),
		Bottom: max(r.Bottom, o.Bottom),
	}
}

func (r Rect) Translate(dx, dy int) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

func Element(tag string) *nethtml.Node {
	return &nethtml.Node{Type: nethtml.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

func Text(s string) *nethtml.Node {
	return &nethtml.Node{Type: nethtml.TextNode, Data: s}
}

func Attr(node *nethtml.Node, name string) (string, bool) {
	if node == nil {
		return "", false
	}
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, name) {
			return attr.Val, true
		}
	}
	return "", false
}

func SetAttr(node *nethtml.Node, name, value string) {
	for i, attr := range node.Attr {
		if strings.EqualFold(attr.Key, name) {
			node.Attr[i].Val = value
			return
		}
	}
	node.Attr = append(node.Attr, nethtml.Attribute{Key: name, Val: value})
}

func RemoveAttr(node *nethtml.Node, name string) {
	out := node.Attr[:0]
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, name) {
			continue
		}
		out = append(out, attr)
	}
	node.Attr = out
}

func HasClass(node *nethtml.Node, class string) bool {
	raw, ok := Attr(node, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(raw) {
		if c == class {
			return true
		}
	}
	return false
}

// Style returns one declaration of the inline style attribute.
func Style(node *nethtml.Node, property string) (string, bool) {
	raw, ok := Attr(node, "style")
	if !ok {
		return "", false
	}
	for _, decl := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), property) {
			value = strings.TrimSpace(value)
			value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))
			return value, true
		}
	}
	return "", false
}

// SetStyle replaces or appends one declaration, keeping the others in order.
func SetStyle(node *nethtml.Node, property, value string) {
	raw, _ := Attr(node, "style")
	decls := make([]string, 0, 8)
	replaced := false
	for _, decl := range strings.Split(raw, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		key, _, _ := strings.Cut(decl, ":")
		if strings.EqualFold(strings.TrimSpace(key), property) {
			decls = append(decls, property+": "+value)
			replaced = true
			continue
		}
		decls = append(decls, decl)
	}
	if !replaced {
		decls = append(decls, property+": "+value)
	}
	SetAttr(node, "style", strings.Join(decls, "; ")+";")
}

func RemoveChildren(node *nethtml.Node) {
	for node.FirstChild != nil {
		node.RemoveChild(node.LastChild)
	}
}

// Detach removes node from its parent. It reports whether anything changed.
func Detach(node *nethtml.Node) bool {
	if node == nil || node.Parent == nil {
		return false
	}
	node.Parent.RemoveChild(node)
	return true
}

func PrependChild(parent, child *nethtml.Node) {
	if parent.FirstChild == nil {
		parent.AppendChild(child)
		return
	}
	parent.InsertBefore(child, parent.FirstChild)
}

// Attached reports whether node is root or one of its descendants.
func Attached(node, root *nethtml.Node) bool {
	for n := node; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

// Anchors returns the descendant <a> elements of root in document order.
func Anchors(root *nethtml.Node) []*nethtml.Node {
	var out []*nethtml.Node
	var walk func(*nethtml.Node)
	walk = func(n *nethtml.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == nethtml.ElementNode && strings.EqualFold(c.Data, "a") {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

func TextContent(node *nethtml.Node) string {
	if node == nil {
		return ""
	}
	if node.Type == nethtml.TextNode {
		return node.Data
	}
	var b strings.Builder
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(TextContent(c))
	}
	return b.String()
}
