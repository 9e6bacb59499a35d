package model

import (
	"fmt"
	"strings"
)

// TreeNode represents one entry in the hierarchy
type TreeNode struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Level     Level      `json:"level,omitempty" yaml:"level,omitempty"`
	Children  []TreeNode `json:"children,omitempty" yaml:"children,omitempty"`
	IsLoaded  bool       `json:"isLoaded,omitempty" yaml:"isLoaded,omitempty"`
	IsLoading bool       `json:"isLoading,omitempty" yaml:"isLoading,omitempty"`
}

// Clone creates a deep copy of the node and its entire subtree.
// The copy shares no slices with the original.
func (n TreeNode) Clone() TreeNode {
	clone := n
	if n.Children != nil {
		clone.Children = make([]TreeNode, len(n.Children))
		for i := range n.Children {
			clone.Children[i] = n.Children[i].Clone()
		}
	}
	return clone
}

// HasChildren reports whether the node currently holds any children.
// An unloaded node and a loaded leaf both report false.
func (n TreeNode) HasChildren() bool {
	return len(n.Children) > 0
}

// Walk visits the node and every descendant depth-first, pre-order.
// Returning false from fn stops the walk; Walk reports whether it ran to completion.
func (n TreeNode) Walk(fn func(node TreeNode, depth int) bool) bool {
	return n.walk(fn, 0)
}

func (n TreeNode) walk(fn func(node TreeNode, depth int) bool, depth int) bool {
	if !fn(n, depth) {
		return false
	}
	for _, child := range n.Children {
		if !child.walk(fn, depth+1) {
			return false
		}
	}
	return true
}

// Count returns the number of nodes in the subtree, including n itself.
func (n TreeNode) Count() int {
	total := 0
	n.Walk(func(TreeNode, int) bool {
		total++
		return true
	})
	return total
}

// IDs returns every id in the subtree in pre-order.
func (n TreeNode) IDs() []string {
	var ids []string
	n.Walk(func(node TreeNode, _ int) bool {
		ids = append(ids, node.ID)
		return true
	})
	return ids
}

// Validate checks if the subtree is structurally valid: non-empty ids and
// names, and no id used twice.
func (n TreeNode) Validate() error {
	seen := make(map[string]bool)
	var err error
	n.Walk(func(node TreeNode, depth int) bool {
		switch {
		case node.ID == "":
			err = fmt.Errorf("node at depth %d: id cannot be empty", depth)
		case strings.TrimSpace(node.Name) == "":
			err = fmt.Errorf("node %q: name cannot be empty", node.ID)
		case seen[node.ID]:
			err = fmt.Errorf("duplicate node id %q", node.ID)
		}
		seen[node.ID] = true
		return err == nil
	})
	return err
}

// Level is a depth-derived classification tag (A, B, C, ...)
type Level string

// DefaultLevels is the ordered tag sequence used when none is configured.
// The last tag is reused for every depth beyond it.
var DefaultLevels = []Level{"A", "B", "C", "D", "E", "F", "G", "H"}

// LevelForDepth returns the tag for a structural depth (root = 0), clamped
// to the deepest tag. An empty sequence falls back to DefaultLevels.
func LevelForDepth(levels []Level, depth int) Level {
	if len(levels) == 0 {
		levels = DefaultLevels
	}
	if depth < 0 {
		depth = 0
	}
	if depth >= len(levels) {
		depth = len(levels) - 1
	}
	return levels[depth]
}

// IsValid returns true if the level is non-empty
func (l Level) IsValid() bool {
	return l != ""
}

// Position says where a relocated node lands relative to its target
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
	PositionInside Position = "inside"
)

// IsValid returns true if the position is a recognized value
func (p Position) IsValid() bool {
	switch p {
	case PositionBefore, PositionAfter, PositionInside:
		return true
	}
	return false
}

// ParsePosition converts user input into a Position.
func ParsePosition(s string) (Position, error) {
	p := Position(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid position %q (want before, after or inside)", s)
	}
	return p, nil
}
