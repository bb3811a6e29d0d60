// Package prompttree defines the prompt tree model shared by the positive and
// negative prompt trees, the structural operations on it, and the compiler
// that flattens a tree into a generation prompt.
package prompttree

import (
	"encoding/json"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/PromptStruct/internal/domain"
)

// NeutralWeight is the attention weight that leaves a fragment unannotated.
const NeutralWeight = 1.0

// ID identifies a node across both trees for the node's whole lifetime.
type ID int64

// UnmarshalJSON accepts integral and fractional ids. Fractional ids were
// written by older panels and are truncated.
func (id *ID) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("node id: %w", err)
	}
	*id = ID(math.Trunc(f))
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML documents.
func (id *ID) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if err := value.Decode(&f); err != nil {
		return fmt.Errorf("node id: %w", err)
	}
	*id = ID(math.Trunc(f))
	return nil
}

// Side selects one of the two prompt trees.
type Side string

const (
	Positive Side = "positive"
	Negative Side = "negative"
)

// Valid reports whether s names a tree.
func (s Side) Valid() bool {
	return s == Positive || s == Negative
}

// Location references a node sequence: the root of a tree when GroupID is
// zero, otherwise the children of that group.
type Location struct {
	Side    Side `json:"side"`
	GroupID ID   `json:"parent_id,omitempty"`
}

// Node is a prompt tree element. IsGroup selects the variant: a leaf carries
// Content, a group carries Children and the IsRandom join rule.
type Node struct {
	ID       ID      `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Content  string  `json:"content" yaml:"content"`
	Enabled  bool    `json:"enabled" yaml:"enabled"`
	Weight   float64 `json:"weight" yaml:"weight"`
	Memo     string  `json:"memo" yaml:"memo"`
	IsGroup  bool    `json:"is_group" yaml:"is_group"`
	IsOpen   bool    `json:"isOpen,omitempty" yaml:"isOpen,omitempty"`
	IsRandom bool    `json:"isRandom,omitempty" yaml:"isRandom,omitempty"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// plainNode has Node's layout without its coding hooks.
type plainNode Node

// wireNode is the encoded form of a node. Children is a pointer so that a
// group always writes its list, even when empty, and a leaf writes none.
type wireNode struct {
	ID       ID       `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Content  string   `json:"content" yaml:"content"`
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Weight   float64  `json:"weight" yaml:"weight"`
	Memo     string   `json:"memo" yaml:"memo"`
	IsGroup  bool     `json:"is_group" yaml:"is_group"`
	IsOpen   bool     `json:"isOpen,omitempty" yaml:"isOpen,omitempty"`
	IsRandom bool     `json:"isRandom,omitempty" yaml:"isRandom,omitempty"`
	Children *[]*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

func (n Node) wire() wireNode {
	w := wireNode{
		ID:       n.ID,
		Name:     n.Name,
		Content:  n.Content,
		Enabled:  n.Enabled,
		Weight:   n.Weight,
		Memo:     n.Memo,
		IsGroup:  n.IsGroup,
		IsOpen:   n.IsOpen,
		IsRandom: n.IsRandom,
	}
	switch {
	case n.Children != nil:
		w.Children = &n.Children
	case n.IsGroup:
		w.Children = &[]*Node{}
	}
	return w
}

// MarshalJSON encodes a node. Groups always carry a children list.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.wire())
}

// MarshalYAML encodes a node. Groups always carry a children list.
func (n Node) MarshalYAML() (any, error) {
	return n.wire(), nil
}

// UnmarshalJSON decodes a node, defaulting a missing weight to NeutralWeight
// and a group's missing children to an empty list.
func (n *Node) UnmarshalJSON(data []byte) error {
	p := plainNode{Weight: NeutralWeight}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*n = Node(p)
	n.normalize()
	return nil
}

// UnmarshalYAML decodes a node like UnmarshalJSON.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	p := plainNode{Weight: NeutralWeight}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*n = Node(p)
	n.normalize()
	return nil
}

func (n *Node) normalize() {
	if n.IsGroup && n.Children == nil {
		n.Children = []*Node{}
	}
}

// New returns a fresh node with the defaults used when a user adds an item.
func New(id ID, isGroup bool) *Node {
	n := &Node{
		ID:      id,
		Enabled: true,
		Weight:  NeutralWeight,
		IsGroup: isGroup,
	}
	if isGroup {
		n.IsOpen = true
		n.Children = []*Node{}
	}
	return n
}

// Validate checks the fields a user can edit.
func (n *Node) Validate() error {
	if n.ID <= 0 {
		return fmt.Errorf("id must be positive: %w", domain.ErrValidation)
	}
	if math.IsNaN(n.Weight) || math.IsInf(n.Weight, 0) {
		return fmt.Errorf("weight must be a finite number: %w", domain.ErrValidation)
	}
	return nil
}

// Copy returns a deep copy of n that keeps every id.
func Copy(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Children != nil {
		c.Children = CopyAll(n.Children)
	}
	return &c
}

// CopyAll deep-copies a sequence, keeping ids. Nil entries are dropped.
func CopyAll(seq []*Node) []*Node {
	out := make([]*Node, 0, len(seq))
	for _, n := range seq {
		if n != nil {
			out = append(out, Copy(n))
		}
	}
	return out
}
