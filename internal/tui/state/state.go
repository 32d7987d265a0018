package state

func ClampCursor(cursor, size int) int {
	if size <= 0 {
		return 0
	}
	if cursor >= size {
		return size - 1
	}
	if cursor < 0 {
		return 0
	}
	return cursor
}

// PageStep is how far pgup/pgdown move a body of the given height. A couple
// of rows overlap so the reader keeps context.
func PageStep(bodyHeight int) int {
	if bodyHeight <= 0 {
		return 10
	}
	step := bodyHeight - 2
	if step < 1 {
		step = 1
	}
	return step
}

// ClampTop keeps a scroll offset inside [0, total-height].
func ClampTop(top, total, height int) int {
	maxTop := total - height
	if maxTop < 0 {
		maxTop = 0
	}
	if top > maxTop {
		return maxTop
	}
	if top < 0 {
		return 0
	}
	return top
}

func CenteredWindow(totalRows, cursor, height int) (int, int) {
	if totalRows <= 0 {
		return 0, 0
	}
	if height <= 0 || totalRows <= height {
		return 0, totalRows
	}
	cursor = ClampCursor(cursor, totalRows)
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	maxStart := totalRows - height
	if start > maxStart {
		start = maxStart
	}
	return start, start + height
}

// BackStack remembers the pages left by following links.
type BackStack struct {
	urls  []string
	limit int
}

func NewBackStack(limit int) *BackStack {
	return &BackStack{limit: limit}
}

func (s *BackStack) Push(url string) {
	if url == "" {
		return
	}
	if n := len(s.urls); n > 0 && s.urls[n-1] == url {
		return
	}
	s.urls = append(s.urls, url)
	if s.limit > 0 && len(s.urls) > s.limit {
		s.urls = s.urls[len(s.urls)-s.limit:]
	}
}

func (s *BackStack) Pop() (string, bool) {
	if len(s.urls) == 0 {
		return "", false
	}
	last := s.urls[len(s.urls)-1]
	s.urls = s.urls[:len(s.urls)-1]
	return last, true
}

func (s *BackStack) Len() int {
	return len(s.urls)
}
