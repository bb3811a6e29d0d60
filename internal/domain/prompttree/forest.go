package prompttree

import (
	"fmt"
	"slices"

	"github.com/Strob0t/PromptStruct/internal/domain"
)

// DeleteMode selects how a node is removed.
type DeleteMode string

const (
	// DeleteAll removes the node with its whole subtree.
	DeleteAll DeleteMode = "all"
	// DeleteOnly removes only a group envelope and promotes its children
	// into the group's slot.
	DeleteOnly DeleteMode = "only"
)

// Valid reports whether m is a known delete mode.
func (m DeleteMode) Valid() bool {
	return m == DeleteAll || m == DeleteOnly
}

// Forest holds the positive and negative prompt trees. It is also the
// persisted document layout of a prompt file.
type Forest struct {
	Positive []*Node `json:"positive" yaml:"positive"`
	Negative []*Node `json:"negative" yaml:"negative"`
}

// Root returns the root sequence of a side, or nil for an unknown side.
func (f *Forest) Root(side Side) *[]*Node {
	switch side {
	case Positive:
		return &f.Positive
	case Negative:
		return &f.Negative
	}
	return nil
}

// Copy returns a deep copy of f with the same ids.
func (f *Forest) Copy() Forest {
	return Forest{Positive: CopyAll(f.Positive), Negative: CopyAll(f.Negative)}
}

// Find looks id up in the positive tree, then in the negative tree.
func (f *Forest) Find(id ID) (Match, bool) {
	if m, ok := FindParentAndItem(id, &f.Positive); ok {
		return m, true
	}
	return FindParentAndItem(id, &f.Negative)
}

// Resolve returns the sequence referenced by loc.
func (f *Forest) Resolve(loc Location) (*[]*Node, error) {
	root := f.Root(loc.Side)
	if root == nil {
		return nil, fmt.Errorf("unknown side %q: %w", loc.Side, domain.ErrValidation)
	}
	if loc.GroupID == 0 {
		return root, nil
	}
	m, ok := FindParentAndItem(loc.GroupID, root)
	if !ok {
		return nil, fmt.Errorf("group %d: %w", loc.GroupID, domain.ErrNotFound)
	}
	if !m.Node.IsGroup {
		return nil, fmt.Errorf("node %d is not a group: %w", loc.GroupID, domain.ErrStructure)
	}
	return &m.Node.Children, nil
}

// Insert places n into the sequence at loc. A negative index appends; an
// index past the end is clamped.
func (f *Forest) Insert(loc Location, n *Node, at int) error {
	seq, err := f.Resolve(loc)
	if err != nil {
		return err
	}
	if at < 0 || at > len(*seq) {
		at = len(*seq)
	}
	*seq = slices.Insert(*seq, at, n)
	return nil
}

// Remove detaches the node with the given id from wherever it lives.
func (f *Forest) Remove(id ID) (*Node, bool) {
	m, ok := f.Find(id)
	if !ok {
		return nil, false
	}
	*m.Parent = slices.Delete(*m.Parent, m.Index, m.Index+1)
	return m.Node, true
}

// Delete removes the node with the given id according to mode. It reports
// false when no such node exists.
func (f *Forest) Delete(id ID, mode DeleteMode) (bool, error) {
	if !mode.Valid() {
		return false, fmt.Errorf("unknown delete mode %q: %w", mode, domain.ErrValidation)
	}
	m, ok := f.Find(id)
	if !ok {
		return false, nil
	}
	if mode == DeleteOnly && !m.Node.IsGroup {
		return false, fmt.Errorf("cannot promote children of leaf %d: %w", id, domain.ErrStructure)
	}

	seq := slices.Delete(*m.Parent, m.Index, m.Index+1)
	if mode == DeleteOnly {
		seq = slices.Insert(seq, m.Index, nonNil(m.Node.Children)...)
	}
	*m.Parent = seq
	return true, nil
}

// Duplicate clones the node with the given id, which must sit directly in the
// sequence at parent, and inserts the clone right after it. It returns nil
// when the node is not in that sequence.
func (f *Forest) Duplicate(id ID, parent Location, ids *IDGenerator) (*Node, error) {
	seq, err := f.Resolve(parent)
	if err != nil {
		return nil, err
	}
	idx := IndexOf(*seq, id)
	if idx < 0 {
		return nil, nil
	}
	c := Clone((*seq)[idx], ids)
	markDuplicate(c)
	*seq = slices.Insert(*seq, idx+1, c)
	return c, nil
}

// Move detaches the node with the given id and appends it to dest. It
// reports false when the node does not exist. Moving a node into itself or
// one of its descendants fails with domain.ErrCycle and changes nothing.
func (f *Forest) Move(id ID, dest Location) (bool, error) {
	m, ok := f.Find(id)
	if !ok {
		return false, nil
	}
	if dest.GroupID != 0 && Contains(m.Node, dest.GroupID) {
		return false, fmt.Errorf("move %d into %d: %w", id, dest.GroupID, domain.ErrCycle)
	}
	seq, err := f.Resolve(dest)
	if err != nil {
		return false, err
	}

	*m.Parent = slices.Delete(*m.Parent, m.Index, m.Index+1)
	*seq = append(*seq, m.Node)
	return true, nil
}

// Replace overwrites the fields of the live node that has edited's id. The
// live child sequence is kept. It reports false when the node does not exist.
func (f *Forest) Replace(edited Node) (bool, error) {
	m, ok := f.Find(edited.ID)
	if !ok {
		return false, nil
	}
	if m.Node.IsGroup != edited.IsGroup {
		return false, fmt.Errorf("node %d cannot change between leaf and group: %w", edited.ID, domain.ErrStructure)
	}
	edited.Children = m.Node.Children
	*m.Node = edited
	return true, nil
}

// Toggle flips the enabled flag of a single node.
func (f *Forest) Toggle(id ID) bool {
	m, ok := f.Find(id)
	if !ok {
		return false
	}
	m.Node.Enabled = !m.Node.Enabled
	return true
}

// SetChildrenEnabled sets the enabled flag of every descendant of a group,
// leaving the group itself untouched.
func (f *Forest) SetChildrenEnabled(id ID, enabled bool) (bool, error) {
	m, ok := f.Find(id)
	if !ok {
		return false, nil
	}
	if !m.Node.IsGroup {
		return false, fmt.Errorf("node %d is not a group: %w", id, domain.ErrStructure)
	}
	Walk(m.Node.Children, func(n *Node) bool {
		n.Enabled = enabled
		return true
	})
	return true, nil
}

// SetAllGroupsOpen sets the UI expansion flag of every group in both trees.
func (f *Forest) SetAllGroupsOpen(open bool) {
	for _, seq := range [][]*Node{f.Positive, f.Negative} {
		Walk(seq, func(n *Node) bool {
			if n.IsGroup {
				n.IsOpen = open
			}
			return true
		})
	}
}

func nonNil(seq []*Node) []*Node {
	out := make([]*Node, 0, len(seq))
	for _, n := range seq {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
