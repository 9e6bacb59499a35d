package session

import "github.com/vanderheijden86/lazytree/pkg/model"

// Row is one visible line of the flattened tree.
type Row struct {
	ID        string
	Name      string
	Level     model.Level
	Depth     int
	IsLoaded  bool
	IsLoading bool

	// Expandable is true when the node has children or may still have some
	// on the remote side (it has not been loaded yet).
	Expandable bool
	Expanded   bool

	// Last is true when the node is the last child of its parent.
	Last bool
	// Guides has one entry per ancestor below the root: true when that
	// ancestor has siblings after it, so a vertical guide continues.
	Guides []bool
	// ParentID is empty for the root.
	ParentID string
}

// Flatten walks root in display order and returns the visible rows. The
// children of a node are visible only when expanded reports true for it.
func Flatten(root model.TreeNode, expanded func(id string) bool) []Row {
	var rows []Row
	var visit func(n model.TreeNode, depth int, parent string, last bool, guides []bool)
	visit = func(n model.TreeNode, depth int, parent string, last bool, guides []bool) {
		row := Row{
			ID:         n.ID,
			Name:       n.Name,
			Level:      n.Level,
			Depth:      depth,
			IsLoaded:   n.IsLoaded,
			IsLoading:  n.IsLoading,
			Expandable: n.HasChildren() || !n.IsLoaded,
			Expanded:   expanded(n.ID),
			Last:       last,
			Guides:     guides,
			ParentID:   parent,
		}
		rows = append(rows, row)
		if !row.Expanded {
			return
		}

		var childGuides []bool
		if depth > 0 {
			childGuides = make([]bool, len(guides), len(guides)+1)
			copy(childGuides, guides)
			childGuides = append(childGuides, !last)
		}
		for i, c := range n.Children {
			visit(c, depth+1, n.ID, i == len(n.Children)-1, childGuides)
		}
	}
	visit(root, 0, "", true, nil)
	return rows
}
