package popup

import (
	nethtml "golang.org/x/net/html"
)

type LinkID int

type Role int

const (
	// RoleRoot links own, position and poll their overlay.
	RoleRoot Role = iota
	// RoleNested links write into their parent's overlay.
	RoleNested
)

func (r Role) String() string {
	if r == RoleNested {
		return "nested"
	}
	return "root"
}

// Overlay is the floating panel of a root link.
type Overlay struct {
	Node       *nethtml.Node
	Left       int
	Top        int
	Width      int
	Z          int
	Background string
}

// Link is the interaction record of one wired anchor.
type Link struct {
	ID     LinkID
	Node   *nethtml.Node
	Target string

	OriginalLabel string
	hadLabel      bool

	Overlay    *Overlay
	Parent     LinkID
	hasParent  bool
	StackDepth int

	RequestInFlight bool
	Loaded          bool
	Dirty           bool
	Hovering        bool
	Active          bool

	// invocation is the token of the newest pipeline run; zero after teardown.
	invocation uint64
	// generation invalidates checks scheduled before the last teardown.
	generation uint64
}

func (l *Link) Role() Role {
	if l.hasParent {
		return RoleNested
	}
	return RoleRoot
}

// ParentID returns the parent link of a nested link.
func (l *Link) ParentID() (LinkID, bool) {
	return l.Parent, l.hasParent
}

// Snapshot is a copy of a link's state flags, for callers outside the loop.
type Snapshot struct {
	ID              LinkID
	Role            Role
	Target          string
	Label           string
	StackDepth      int
	HasOverlay      bool
	RequestInFlight bool
	Loaded          bool
	Dirty           bool
	Hovering        bool
	Active          bool
}
