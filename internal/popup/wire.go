package popup

import (
	"net/url"

	"go.uber.org/zap"
	nethtml "golang.org/x/net/html"

	"github.com/glabrego/laconic-cli/internal/dom"
)

// wire turns an anchor into an interactive link. Anchors that are already
// wired or that do not point into the wiki are left untouched.
func (c *Controller) wire(node *nethtml.Node, depth int, parent LinkID, hasParent bool, base *url.URL) bool {
	if node == nil {
		return false
	}
	if _, ok := c.byNode[node]; ok {
		return false
	}
	href, _ := dom.Attr(node, "href")
	target, ok := c.pattern.Rewrite(href, base)
	if !ok {
		return false
	}
	label, hadLabel := dom.Attr(node, "title")

	c.nextID++
	l := &Link{
		ID:            c.nextID,
		Node:          node,
		Target:        target,
		OriginalLabel: label,
		hadLabel:      hadLabel,
		Parent:        parent,
		hasParent:     hasParent,
		StackDepth:    depth,
	}
	c.links[l.ID] = l
	c.byNode[node] = l.ID
	c.logger.Debug("Link wired",
		zap.Int("link", int(l.ID)),
		zap.String("role", l.Role().String()),
		zap.Int("depth", depth),
		zap.String("target", target))
	return true
}
