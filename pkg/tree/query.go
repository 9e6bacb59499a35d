// Package tree implements the tree state engine: pure query and
// copy-on-write mutation helpers over model.TreeNode values, and the Store
// that owns the current snapshot and orchestrates lazy loads.
package tree

import "github.com/vanderheijden86/lazytree/pkg/model"

// Find returns the first node with the given id in depth-first order.
// The returned value shares its children with root; clone it before handing
// it out.
func Find(root model.TreeNode, id string) (model.TreeNode, bool) {
	if root.ID == id {
		return root, true
	}
	for _, child := range root.Children {
		if found, ok := Find(child, id); ok {
			return found, true
		}
	}
	return model.TreeNode{}, false
}

// Contains reports whether id occurs anywhere in the subtree.
func Contains(root model.TreeNode, id string) bool {
	_, ok := Find(root, id)
	return ok
}

// Depth returns the distance from root to the node (root = 0).
// A missing id yields 0; use DepthOf when absence matters.
func Depth(root model.TreeNode, id string) int {
	d, _ := DepthOf(root, id)
	return d
}

// DepthOf returns the distance from root to the node and whether it exists.
func DepthOf(root model.TreeNode, id string) (int, bool) {
	return depthFrom(root, id, 0)
}

func depthFrom(node model.TreeNode, id string, depth int) (int, bool) {
	if node.ID == id {
		return depth, true
	}
	for _, child := range node.Children {
		if d, ok := depthFrom(child, id, depth+1); ok {
			return d, true
		}
	}
	return 0, false
}

// IsAncestor reports whether a subtree rooted at ancestorID exists and
// contains descendantID. It is reflexive: every existing node is its own
// ancestor.
func IsAncestor(root model.TreeNode, ancestorID, descendantID string) bool {
	ancestor, ok := Find(root, ancestorID)
	if !ok {
		return false
	}
	return Contains(ancestor, descendantID)
}

// ParentOf returns the parent of id and the index of id among its siblings.
// The root has no parent.
func ParentOf(root model.TreeNode, id string) (model.TreeNode, int, bool) {
	for i, child := range root.Children {
		if child.ID == id {
			return root, i, true
		}
		if parent, idx, ok := ParentOf(child, id); ok {
			return parent, idx, true
		}
	}
	return model.TreeNode{}, -1, false
}

// PathTo returns the ids from root down to id inclusive, or nil if id is
// not in the tree.
func PathTo(root model.TreeNode, id string) []string {
	if root.ID == id {
		return []string{root.ID}
	}
	for _, child := range root.Children {
		if path := PathTo(child, id); path != nil {
			return append([]string{root.ID}, path...)
		}
	}
	return nil
}
