package popup

import "github.com/glabrego/laconic-cli/internal/dom"

// Tracker holds the last known pointer cell. It is written by mouse motion
// and read by every proximity check.
type Tracker struct {
	x, y int
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Move(x, y int) {
	t.x = x
	t.y = y
}

func (t *Tracker) Position() (int, int) {
	return t.x, t.y
}

// Near reports whether the pointer is inside rect grown by d cells. An
// absent element (ok == false) is never near.
func (t *Tracker) Near(rect dom.Rect, ok bool, d int) bool {
	if !ok {
		return false
	}
	return rect.Expand(d).Contains(t.x, t.y)
}
