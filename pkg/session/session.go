// Package session holds the interactive view state over a tree store: which
// nodes are expanded, the flattened list of visible rows and a cursor. It
// renders nothing; callers draw Rows however they like.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/lazytree/pkg/model"
	"github.com/vanderheijden86/lazytree/pkg/tree"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithStatePath enables persistence of the expanded set at path.
func WithStatePath(path string) Option {
	return func(s *Session) { s.statePath = path }
}

// Session tracks expansion and selection for one view of a Store. Expansion
// is view state only; it is never written into the tree.
type Session struct {
	store     *tree.Store
	logger    *zap.Logger
	statePath string

	mu       sync.Mutex
	expanded map[string]bool
	// pending holds restored ids whose nodes have not been fetched yet.
	pending  map[string]bool
	rows     []Row
	cursor   int
	selected string
}

// New creates a session over store. Nothing is expanded initially unless a
// state file is configured and readable; call Restore to fetch the nodes a
// restored state refers to.
func New(store *tree.Store, opts ...Option) *Session {
	s := &Session{
		store:    store,
		expanded: make(map[string]bool),
		pending:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.statePath != "" {
		s.loadState()
	}
	s.Refresh()
	return s
}

// Refresh rebuilds the visible rows from the store's current snapshot and
// forgets expanded ids that no longer exist. Restored ids are kept aside
// until their nodes are fetched. The cursor follows the selected node if it
// is still visible.
func (s *Session) Refresh() []Row {
	snap := s.store.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptPendingLocked(snap.Root)
	s.pruneLocked(snap.Root)
	s.rebuildLocked(snap.Root)
	return s.rowsLocked()
}

// Rows returns the rows computed by the last Refresh.
func (s *Session) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowsLocked()
}

func (s *Session) rowsLocked() []Row {
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// pruneLocked drops stale ids from the expanded set.
func (s *Session) pruneLocked(root model.TreeNode) {
	if len(s.expanded) == 0 {
		return
	}
	present := make(map[string]bool, len(s.expanded))
	root.Walk(func(n model.TreeNode, _ int) bool {
		if s.expanded[n.ID] {
			present[n.ID] = true
		}
		return true
	})
	for id := range s.expanded {
		if !present[id] {
			delete(s.expanded, id)
		}
	}
}

// adoptPendingLocked moves restored ids that are now in the tree into the
// expanded set.
func (s *Session) adoptPendingLocked(root model.TreeNode) {
	if len(s.pending) == 0 {
		return
	}
	root.Walk(func(n model.TreeNode, _ int) bool {
		if s.pending[n.ID] {
			s.expanded[n.ID] = true
			delete(s.pending, n.ID)
		}
		return true
	})
}

func (s *Session) rebuildLocked(root model.TreeNode) {
	s.rows = Flatten(root, func(id string) bool { return s.expanded[id] })
	if s.selected != "" {
		for i, r := range s.rows {
			if r.ID == s.selected {
				s.cursor = i
				return
			}
		}
	}
	s.clampLocked()
}

func (s *Session) clampLocked() {
	if s.cursor >= len(s.rows) {
		s.cursor = len(s.rows) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
	if len(s.rows) > 0 {
		s.selected = s.rows[s.cursor].ID
	} else {
		s.selected = ""
	}
}

// IsExpanded reports whether id is expanded in this session.
func (s *Session) IsExpanded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expanded[id]
}

// Toggle flips the expansion of id. Expanding a node that is neither loaded
// nor loading starts a load and waits for it; the load error, if any, is
// returned and the node stays expanded so the caller can show the failure.
// Unknown ids are ignored.
func (s *Session) Toggle(ctx context.Context, id string) error {
	node, ok := s.store.Find(id)
	if !ok {
		return nil
	}

	s.mu.Lock()
	if s.pending[id] {
		delete(s.pending, id)
		s.expanded[id] = true
	}
	expand := !s.expanded[id]
	if expand {
		s.expanded[id] = true
	} else {
		delete(s.expanded, id)
	}
	s.mu.Unlock()
	s.saveState()

	var err error
	if expand && !node.IsLoaded && !node.IsLoading {
		err = s.store.Load(ctx, id)
		if err != nil {
			s.logger.Debug("expand load failed", zap.String("node", id), zap.Error(err))
		}
	}
	s.Refresh()
	return err
}

// Expand expands id, loading it first when needed. An expanded node that is
// still unloaded, after a failed load or a restore, is loaded again.
func (s *Session) Expand(ctx context.Context, id string) error {
	if !s.IsExpanded(id) {
		return s.Toggle(ctx, id)
	}
	node, ok := s.store.Find(id)
	if !ok || node.IsLoaded || node.IsLoading {
		return nil
	}
	err := s.store.Load(ctx, id)
	s.Refresh()
	return err
}

// Restore fetches what a restored expanded set needs to be visible again:
// every expanded node that is not loaded, root first and then one level at a
// time as restored ids appear. Restored ids still missing afterwards, because
// they were removed or sit under a collapsed node, are dropped. Failed loads
// do not stop the walk; the first error is returned at the end.
func (s *Session) Restore(ctx context.Context) error {
	attempted := make(map[string]bool)
	var firstErr error
	for {
		s.Refresh()
		batch := s.unloadedExpanded(attempted)
		if len(batch) == 0 {
			break
		}
		var g errgroup.Group
		g.SetLimit(4)
		for _, id := range batch {
			attempted[id] = true
			g.Go(func() error {
				return s.store.LoadSubtree(ctx, id, 0)
			})
		}
		if err := g.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.mu.Lock()
	dropped := len(s.pending)
	s.pending = make(map[string]bool)
	s.mu.Unlock()
	if dropped > 0 {
		s.logger.Debug("restored ids not found", zap.Int("dropped", dropped))
	}
	s.Refresh()
	return firstErr
}

// unloadedExpanded lists visible expanded nodes that still need a fetch.
func (s *Session) unloadedExpanded(skip map[string]bool) []string {
	snap := s.store.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	var visit func(n model.TreeNode)
	visit = func(n model.TreeNode) {
		if !s.expanded[n.ID] {
			return
		}
		if !n.IsLoaded && !skip[n.ID] {
			out = append(out, n.ID)
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(snap.Root)
	return out
}

// Collapse collapses id.
func (s *Session) Collapse(id string) {
	s.mu.Lock()
	delete(s.expanded, id)
	delete(s.pending, id)
	s.mu.Unlock()
	s.saveState()
	s.Refresh()
}

// ExpandAll loads the tree down to depth levels below the root and expands
// every node that has children. The load error, if any, is returned after
// expanding whatever was loaded.
func (s *Session) ExpandAll(ctx context.Context, depth int) error {
	err := s.store.LoadSubtree(ctx, s.store.RootID(), depth)
	snap := s.store.Snapshot()

	s.mu.Lock()
	snap.Root.Walk(func(n model.TreeNode, _ int) bool {
		if n.HasChildren() {
			s.expanded[n.ID] = true
		}
		return true
	})
	s.mu.Unlock()
	s.saveState()
	s.Refresh()
	return err
}

// CollapseAll collapses every node.
func (s *Session) CollapseAll() {
	s.mu.Lock()
	s.expanded = make(map[string]bool)
	s.pending = make(map[string]bool)
	s.mu.Unlock()
	s.saveState()
	s.Refresh()
}

// Selected returns the row under the cursor.
func (s *Session) Selected() (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor < 0 || s.cursor >= len(s.rows) {
		return Row{}, false
	}
	return s.rows[s.cursor], true
}

// Cursor returns the cursor index into Rows.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Session) moveTo(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = i
	s.clampLocked()
}

// MoveDown moves the cursor down one row.
func (s *Session) MoveDown() {
	s.moveTo(s.Cursor() + 1)
}

// MoveUp moves the cursor up one row.
func (s *Session) MoveUp() {
	s.moveTo(s.Cursor() - 1)
}

// JumpToTop moves the cursor to the root row.
func (s *Session) JumpToTop() {
	s.moveTo(0)
}

// JumpToBottom moves the cursor to the last visible row.
func (s *Session) JumpToBottom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = len(s.rows) - 1
	s.clampLocked()
}

// SelectByID moves the cursor to id if it is visible.
func (s *Session) SelectByID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.ID == id {
			s.cursor = i
			s.selected = id
			return true
		}
	}
	return false
}

// JumpToParent moves the cursor to the parent of the selected row. At the
// root it does nothing.
func (s *Session) JumpToParent() {
	row, ok := s.Selected()
	if !ok || row.ParentID == "" {
		return
	}
	s.SelectByID(row.ParentID)
}

// ExpandOrMoveToChild expands a collapsed expandable row, or moves to the
// first child of an expanded one.
func (s *Session) ExpandOrMoveToChild(ctx context.Context) error {
	row, ok := s.Selected()
	if !ok || !row.Expandable {
		return nil
	}
	if !row.Expanded {
		return s.Toggle(ctx, row.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cursor + 1
	if next < len(s.rows) && s.rows[next].ParentID == row.ID {
		s.cursor = next
		s.selected = s.rows[next].ID
	}
	return nil
}

// CollapseOrJumpToParent collapses an expanded row, or jumps to the parent
// of a collapsed one.
func (s *Session) CollapseOrJumpToParent() {
	row, ok := s.Selected()
	if !ok {
		return
	}
	if row.Expanded {
		s.Collapse(row.ID)
		return
	}
	s.JumpToParent()
}
