package tree

import (
	"fmt"

	"github.com/vanderheijden86/lazytree/pkg/model"
)

// Every function in this file returns a new root and leaves its input
// untouched. Only the nodes on the path to the change are copied; untouched
// subtrees are shared with the previous snapshot, so shared children slices
// must never be written in place.

// update rebuilds the path to id with fn applied to the matching node.
func update(root model.TreeNode, id string, fn func(model.TreeNode) model.TreeNode) (model.TreeNode, bool) {
	if root.ID == id {
		return fn(root), true
	}
	for i, child := range root.Children {
		updated, ok := update(child, id, fn)
		if !ok {
			continue
		}
		children := make([]model.TreeNode, len(root.Children))
		copy(children, root.Children)
		children[i] = updated
		root.Children = children
		return root, true
	}
	return root, false
}

// detach drops the subtree rooted at id from below root. A root match is
// not handled here; callers reject it first.
func detach(root model.TreeNode, id string) (model.TreeNode, bool) {
	for i, child := range root.Children {
		if child.ID == id {
			children := make([]model.TreeNode, 0, len(root.Children)-1)
			children = append(children, root.Children[:i]...)
			children = append(children, root.Children[i+1:]...)
			root.Children = children
			return root, true
		}
		if updated, ok := detach(child, id); ok {
			children := make([]model.TreeNode, len(root.Children))
			copy(children, root.Children)
			children[i] = updated
			root.Children = children
			return root, true
		}
	}
	return root, false
}

// appendChild returns parent with child added at the end of its children.
func appendChild(parent, child model.TreeNode) model.TreeNode {
	children := make([]model.TreeNode, 0, len(parent.Children)+1)
	children = append(children, parent.Children...)
	parent.Children = append(children, child)
	parent.IsLoaded = true
	return parent
}

// collides reports whether any id in sub already occurs in root.
func collides(root, sub model.TreeNode) (string, bool) {
	var dup string
	sub.Walk(func(n model.TreeNode, _ int) bool {
		if Contains(root, n.ID) {
			dup = n.ID
			return false
		}
		return true
	})
	return dup, dup != ""
}

// AddChild appends child to the children of parentID and marks the parent
// loaded. The child's ids must not already be in use.
func AddChild(root model.TreeNode, parentID string, child model.TreeNode) (model.TreeNode, error) {
	if !Contains(root, parentID) {
		return root, fmt.Errorf("add child to %s: %w", parentID, ErrNotFound)
	}
	if dup, ok := collides(root, child); ok {
		return root, fmt.Errorf("add child %s: id already in use: %w", dup, ErrInvalidOperation)
	}
	updated, _ := update(root, parentID, func(n model.TreeNode) model.TreeNode {
		return appendChild(n, child)
	})
	return updated, nil
}

// Remove deletes the subtree rooted at id. The root itself is irremovable.
func Remove(root model.TreeNode, id string) (model.TreeNode, error) {
	if root.ID == id {
		return root, fmt.Errorf("remove %s: root cannot be removed: %w", id, ErrInvalidOperation)
	}
	updated, ok := detach(root, id)
	if !ok {
		return root, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	return updated, nil
}

// Rename replaces the name of id. Id and children are untouched.
func Rename(root model.TreeNode, id, name string) (model.TreeNode, error) {
	updated, ok := update(root, id, func(n model.TreeNode) model.TreeNode {
		n.Name = name
		return n
	})
	if !ok {
		return root, fmt.Errorf("rename %s: %w", id, ErrNotFound)
	}
	return updated, nil
}

// SetLoading sets the in-flight flag of id.
func SetLoading(root model.TreeNode, id string, loading bool) (model.TreeNode, error) {
	updated, ok := update(root, id, func(n model.TreeNode) model.TreeNode {
		n.IsLoading = loading
		return n
	})
	if !ok {
		return root, fmt.Errorf("set loading on %s: %w", id, ErrNotFound)
	}
	return updated, nil
}

// Relocate moves the subtree rooted at dragID before, after or inside
// targetID. The moved subtree keeps every id and field; only its position
// changes. Rejected requests return root unchanged with an error:
//   - targetID is dragID or lies inside dragID's subtree (would form a cycle)
//   - dragID is the root
//   - before/after relative to the root, which has no siblings
//   - either id is missing
func Relocate(root model.TreeNode, dragID, targetID string, pos model.Position) (model.TreeNode, error) {
	if !pos.IsValid() {
		return root, fmt.Errorf("move %s: position %q: %w", dragID, pos, ErrInvalidOperation)
	}
	if dragID == targetID || IsAncestor(root, dragID, targetID) {
		return root, fmt.Errorf("move %s into its own subtree at %s: %w", dragID, targetID, ErrInvalidOperation)
	}
	dragged, ok := Find(root, dragID)
	if !ok {
		return root, fmt.Errorf("move %s: %w", dragID, ErrNotFound)
	}
	if dragID == root.ID {
		return root, fmt.Errorf("move %s: root cannot be moved: %w", dragID, ErrInvalidOperation)
	}
	if !Contains(root, targetID) {
		return root, fmt.Errorf("move %s: target %s: %w", dragID, targetID, ErrNotFound)
	}
	if pos != model.PositionInside && targetID == root.ID {
		return root, fmt.Errorf("move %s %s root: %w", dragID, pos, ErrInvalidOperation)
	}

	moved := dragged.Clone()
	detached, _ := detach(root, dragID)

	if pos == model.PositionInside {
		updated, _ := update(detached, targetID, func(n model.TreeNode) model.TreeNode {
			return appendChild(n, moved)
		})
		return updated, nil
	}

	parent, idx, ok := ParentOf(detached, targetID)
	if !ok {
		// Unreachable after the checks above; keep the removal.
		return detached, nil
	}
	if pos == model.PositionAfter {
		idx++
	}
	updated, _ := update(detached, parent.ID, func(n model.TreeNode) model.TreeNode {
		children := make([]model.TreeNode, 0, len(n.Children)+1)
		children = append(children, n.Children[:idx]...)
		children = append(children, moved)
		n.Children = append(children, n.Children[idx:]...)
		return n
	})
	return updated, nil
}

// MergeFetched installs a fetch result under id. The fetched nodes come
// first in their fetched order, followed by any children added to the node
// locally while the fetch was outstanding. A fetched node whose subtree
// reuses an id from elsewhere in the tree is dropped and reported, as is a
// local child whose ids the fetch result now claims. Fetched subtrees are
// cleared of stale loading flags and get a level derived from depth when
// they carry none.
func MergeFetched(root model.TreeNode, id string, fetched []model.TreeNode, levels []model.Level) (model.TreeNode, []string, error) {
	node, ok := Find(root, id)
	if !ok {
		return root, nil, fmt.Errorf("apply children of %s: %w", id, ErrNotFound)
	}
	depth := Depth(root, id)

	// Ids outside the node's current children are off limits.
	taken := make(map[string]bool)
	var mark func(n model.TreeNode)
	mark = func(n model.TreeNode) {
		taken[n.ID] = true
		if n.ID == id {
			return
		}
		for _, c := range n.Children {
			mark(c)
		}
	}
	mark(root)

	fits := func(sub model.TreeNode) bool {
		return sub.Walk(func(n model.TreeNode, _ int) bool {
			return n.ID != "" && !taken[n.ID]
		})
	}
	claim := func(sub model.TreeNode) {
		sub.Walk(func(n model.TreeNode, _ int) bool {
			taken[n.ID] = true
			return true
		})
	}

	var (
		children = make([]model.TreeNode, 0, len(fetched)+len(node.Children))
		dropped  []string
	)
	for _, f := range fetched {
		if !fits(f) {
			dropped = append(dropped, f.ID)
			continue
		}
		f = normalize(f.Clone(), depth+1, levels)
		claim(f)
		children = append(children, f)
	}
	for _, c := range node.Children {
		if taken[c.ID] && Contains(model.TreeNode{Children: children}, c.ID) {
			// Superseded by the fetched version of the same node.
			continue
		}
		if !fits(c) {
			dropped = append(dropped, c.ID)
			continue
		}
		claim(c)
		children = append(children, c)
	}

	updated, _ := update(root, id, func(n model.TreeNode) model.TreeNode {
		n.Children = children
		n.IsLoaded = true
		n.IsLoading = false
		return n
	})
	return updated, dropped, nil
}

// normalize prepares a freshly fetched subtree. No fetch is outstanding for
// any of its nodes yet.
func normalize(n model.TreeNode, depth int, levels []model.Level) model.TreeNode {
	n.IsLoading = false
	if !n.Level.IsValid() {
		n.Level = model.LevelForDepth(levels, depth)
	}
	for i := range n.Children {
		n.Children[i] = normalize(n.Children[i], depth+1, levels)
	}
	return n
}
