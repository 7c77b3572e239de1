package permissions

import "fmt"

// Level is the named grant stored on an invitation or share.
type Level string

const (
	// LevelView grants read-only access.
	LevelView Level = "view"
	// LevelEdit grants write access.
	LevelEdit Level = "edit"
	// LevelManage grants write access plus sharing management.
	LevelManage Level = "manage"
)

// Capability is what a principal may do to a map. Capabilities are the unit
// stored in the permission link sets.
type Capability string

const (
	// CapabilityRead allows viewing a map.
	CapabilityRead Capability = "read"
	// CapabilityWrite allows mutating a map's content.
	CapabilityWrite Capability = "write"
	// CapabilityManage allows managing invitations and shares.
	CapabilityManage Capability = "manage"
)

// linkTable maps each level to the capability links stored for it. View-level
// shares are the only ones recorded in the read set; write and manage links
// imply read at evaluation time instead of being stored redundantly.
var linkTable = map[Level][]Capability{
	LevelView:   {CapabilityRead},
	LevelEdit:   {CapabilityWrite},
	LevelManage: {CapabilityWrite, CapabilityManage},
}

// impliedBy lists, per capability, the stored links whose presence satisfies
// a query for that capability.
var impliedBy = map[Capability][]Capability{
	CapabilityRead:   {CapabilityRead, CapabilityWrite, CapabilityManage},
	CapabilityWrite:  {CapabilityWrite, CapabilityManage},
	CapabilityManage: {CapabilityManage},
}

// Levels returns all permission levels in ascending order of access.
func Levels() []Level {
	return []Level{LevelView, LevelEdit, LevelManage}
}

// Valid reports whether the level is a member of the closed enum.
func (l Level) Valid() bool {
	_, ok := linkTable[l]
	return ok
}

// Valid reports whether the capability is a member of the closed enum.
func (c Capability) Valid() bool {
	_, ok := impliedBy[c]
	return ok
}

// Links returns the capability link set stored for a share at this level.
func (l Level) Links() []Capability {
	links := linkTable[l]
	out := make([]Capability, len(links))
	copy(out, links)
	return out
}

// Grants reports whether a share at this level satisfies the capability.
func (l Level) Grants(c Capability) bool {
	for _, link := range linkTable[l] {
		for _, satisfies := range impliedBy[c] {
			if link == satisfies {
				return true
			}
		}
	}
	return false
}

// Satisfying returns the stored link capabilities whose presence answers a
// query for cap.
func Satisfying(cap Capability) []Capability {
	links := impliedBy[cap]
	out := make([]Capability, len(links))
	copy(out, links)
	return out
}

// Delta computes the minimal link operations to move a principal from one
// level to another: the symmetric difference of the two link sets. Links
// present at both levels are untouched, so a transition never passes through
// a state with no capability.
func Delta(from, to Level) (add, remove []Capability, err error) {
	if !from.Valid() {
		return nil, nil, fmt.Errorf("permissions: invalid level %q", from)
	}
	if !to.Valid() {
		return nil, nil, fmt.Errorf("permissions: invalid level %q", to)
	}

	current := make(map[Capability]struct{}, 2)
	for _, link := range linkTable[from] {
		current[link] = struct{}{}
	}

	target := make(map[Capability]struct{}, 2)
	for _, link := range linkTable[to] {
		target[link] = struct{}{}
	}

	for _, link := range linkTable[to] {
		if _, held := current[link]; !held {
			add = append(add, link)
		}
	}
	for _, link := range linkTable[from] {
		if _, kept := target[link]; !kept {
			remove = append(remove, link)
		}
	}

	return add, remove, nil
}
