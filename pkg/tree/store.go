package tree

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/lazytree/pkg/ids"
	"github.com/vanderheijden86/lazytree/pkg/model"
)

// Repository produces the direct children of a node. Implementations may
// take arbitrarily long and give no ordering guarantee across calls.
type Repository interface {
	FetchChildren(ctx context.Context, id string) ([]model.TreeNode, error)
}

// Snapshot is an immutable view of the whole tree at one generation.
// Generation increases by one for every applied change.
type Snapshot struct {
	Root       model.TreeNode
	Generation uint64
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the source of ids for locally added nodes.
func WithIDGenerator(g ids.Generator) Option {
	return func(s *Store) { s.ids = g }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithLevels overrides the ordered level tag sequence.
func WithLevels(levels []model.Level) Option {
	return func(s *Store) { s.levels = levels }
}

// WithOnChange registers a callback invoked after every applied change,
// outside the store lock. Callbacks from concurrent loads may arrive out of
// order; compare Generation to discard stale ones.
func WithOnChange(fn func(Snapshot)) Option {
	return func(s *Store) { s.onChange = fn }
}

// WithMaxConcurrentLoads bounds the number of fetches LoadSubtree keeps in
// flight at once.
func WithMaxConcurrentLoads(n int) Option {
	return func(s *Store) { s.maxLoads = n }
}

// Store owns the single root and every node reachable from it. All
// mutations are atomic against the current snapshot; Load is the only
// operation that suspends, and it re-addresses its result by id against
// whatever snapshot is current when the fetch returns.
type Store struct {
	mu   sync.Mutex
	root model.TreeNode
	gen  uint64

	repo     Repository
	ids      ids.Generator
	levels   []model.Level
	logger   *zap.Logger
	onChange func(Snapshot)
	maxLoads int

	// inflight holds one channel per node with a fetch running; it is closed
	// when that fetch settles.
	inflight map[string]chan struct{}
}

// NewStore creates a store around root. The root is deep-copied, so the
// caller keeps no reference into the store's tree.
func NewStore(root model.TreeNode, repo Repository, opts ...Option) *Store {
	s := &Store{
		root:     root.Clone(),
		repo:     repo,
		levels:   model.DefaultLevels,
		maxLoads: 4,
		inflight: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = ids.NewSequence(ids.DefaultPrefix, ids.DefaultStart)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.maxLoads < 1 {
		s.maxLoads = 1
	}
	return s
}

// Snapshot returns a deep copy of the current tree.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Root: s.root.Clone(), Generation: s.gen}
}

// RootID returns the id of the root node. It never changes.
func (s *Store) RootID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.ID
}

// Find returns a copy of the node with the given id.
func (s *Store) Find(id string) (model.TreeNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := Find(s.root, id)
	if !ok {
		return model.TreeNode{}, false
	}
	return n.Clone(), true
}

// Depth returns the depth of id, or 0 if it does not exist.
func (s *Store) Depth(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Depth(s.root, id)
}

// IsAncestor reports whether descendantID lies in the subtree of ancestorID.
func (s *Store) IsAncestor(ancestorID, descendantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return IsAncestor(s.root, ancestorID, descendantID)
}

// commitLocked installs root as the current tree. Callers hold s.mu.
func (s *Store) commitLocked(root model.TreeNode) Snapshot {
	s.root = root
	s.gen++
	return s.snapshotLocked()
}

func (s *Store) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

// apply runs one synchronous mutation. A failing mutation is a silent no-op:
// the error is logged at debug level and the current snapshot is returned.
func (s *Store) apply(op string, fn func(model.TreeNode) (model.TreeNode, error), fields ...zap.Field) Snapshot {
	s.mu.Lock()
	updated, err := fn(s.root)
	if err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.logger.Debug("tree operation ignored",
			append(fields, zap.String("op", op), zap.Error(err))...)
		return snap
	}
	snap := s.commitLocked(updated)
	s.mu.Unlock()

	s.logger.Debug("tree operation applied",
		append(fields, zap.String("op", op), zap.Uint64("generation", snap.Generation))...)
	s.notify(snap)
	return snap
}

// AddChild appends a new node named name under parentID and marks the parent
// loaded. The new node's level is the tag after the parent's depth, and
// generated ids already present in the tree are skipped. It returns the new
// id, or "" if parentID does not exist or no unused id could be drawn.
//
// Marking the parent loaded means a later Load of the parent is skipped
// even though its remote children were never fetched.
func (s *Store) AddChild(parentID, name string) (Snapshot, string) {
	var newID string
	snap := s.apply("add", func(root model.TreeNode) (model.TreeNode, error) {
		depth, ok := DepthOf(root, parentID)
		if !ok {
			return root, fmt.Errorf("add child to %s: %w", parentID, ErrNotFound)
		}
		id, err := s.freshIDLocked(root)
		if err != nil {
			return root, fmt.Errorf("add child to %s: %w", parentID, err)
		}
		child := model.TreeNode{
			ID:       id,
			Name:     name,
			Level:    model.LevelForDepth(s.levels, depth+1),
			IsLoaded: true,
		}
		updated, err := AddChild(root, parentID, child)
		if err == nil {
			newID = child.ID
		}
		return updated, err
	}, zap.String("parent", parentID), zap.String("name", name))
	return snap, newID
}

// maxIDAttempts bounds how many generated ids AddChild tries before giving up
// on a generator that keeps returning ids already in the tree.
const maxIDAttempts = 64

// freshIDLocked draws ids until one is not yet used in root. Sequential ids
// share a namespace with repository ids, so collisions are expected.
func (s *Store) freshIDLocked(root model.TreeNode) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.ids.Next()
		if id != "" && !Contains(root, id) {
			return id, nil
		}
	}
	s.logger.Warn("id generator exhausted", zap.Int("attempts", maxIDAttempts))
	return "", ErrIDCollision
}

// Remove deletes id and its entire subtree. Removing the root or a missing
// id leaves the tree unchanged.
func (s *Store) Remove(id string) Snapshot {
	return s.apply("remove", func(root model.TreeNode) (model.TreeNode, error) {
		return Remove(root, id)
	}, zap.String("node", id))
}

// Rename replaces the display name of id.
func (s *Store) Rename(id, name string) Snapshot {
	return s.apply("rename", func(root model.TreeNode) (model.TreeNode, error) {
		return Rename(root, id, name)
	}, zap.String("node", id), zap.String("name", name))
}

// Move relocates dragID relative to targetID. Moves that would put a node
// inside its own subtree, or that reference missing ids, are no-ops.
func (s *Store) Move(dragID, targetID string, pos model.Position) Snapshot {
	return s.apply("move", func(root model.TreeNode) (model.TreeNode, error) {
		return Relocate(root, dragID, targetID, pos)
	}, zap.String("node", dragID), zap.String("target", targetID), zap.String("position", string(pos)))
}

// Load fetches the children of id from the repository. It does nothing if
// the node is missing, already loaded, or has a fetch in flight. While the
// fetch runs the node is marked loading. A failed fetch is returned as a
// *LoadError and leaves the node unloaded so a later Load can retry.
func (s *Store) Load(ctx context.Context, id string) error {
	if s.repo == nil {
		return ErrNoRepository
	}

	s.mu.Lock()
	node, ok := Find(s.root, id)
	if !ok || node.IsLoaded || node.IsLoading {
		s.mu.Unlock()
		if !ok {
			s.logger.Debug("load ignored: node not found", zap.String("node", id))
		}
		return nil
	}
	marked, _ := SetLoading(s.root, id, true)
	snap := s.commitLocked(marked)
	done := make(chan struct{})
	s.inflight[id] = done
	s.mu.Unlock()
	s.notify(snap)
	defer s.settle(id, done)

	start := time.Now()
	children, err := s.safeFetch(ctx, id)

	if err != nil {
		s.mu.Lock()
		cleared, clearErr := SetLoading(s.root, id, false)
		var clearedSnap Snapshot
		if clearErr == nil {
			clearedSnap = s.commitLocked(cleared)
		}
		s.mu.Unlock()
		if clearErr == nil {
			s.notify(clearedSnap)
		}
		s.logger.Warn("load failed", zap.String("node", id), zap.Error(err))
		return &LoadError{NodeID: id, Cause: err, Time: time.Now()}
	}

	s.mu.Lock()
	merged, dropped, mergeErr := MergeFetched(s.root, id, children, s.levels)
	if mergeErr != nil {
		// The node was removed while the fetch ran; the result has nowhere to go.
		s.mu.Unlock()
		s.logger.Debug("load result discarded", zap.String("node", id), zap.Error(mergeErr))
		return nil
	}
	snap = s.commitLocked(merged)
	s.mu.Unlock()

	if len(dropped) > 0 {
		s.logger.Warn("fetched nodes dropped: ids already in tree",
			zap.String("node", id), zap.Strings("dropped", dropped))
	}
	s.logger.Debug("load complete",
		zap.String("node", id),
		zap.Int("children", len(children)),
		zap.Duration("elapsed", time.Since(start)))
	s.notify(snap)
	return nil
}

// settle wakes anyone waiting on the fetch for id.
func (s *Store) settle(id string, done chan struct{}) {
	s.mu.Lock()
	if s.inflight[id] == done {
		delete(s.inflight, id)
	}
	s.mu.Unlock()
	close(done)
}

// loadAndWait is Load, except that when another caller's fetch for id is in
// flight it waits for that fetch, and retries if it failed.
func (s *Store) loadAndWait(ctx context.Context, id string) error {
	for {
		if err := s.Load(ctx, id); err != nil {
			return err
		}
		s.mu.Lock()
		done := s.inflight[id]
		s.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// safeFetch calls the repository and turns a panic into an error, so a
// misbehaving repository cannot strand a node in the loading state.
func (s *Store) safeFetch(ctx context.Context, id string) (children []model.TreeNode, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return s.repo.FetchChildren(ctx, id)
}

// LoadSubtree loads id and then every descendant down to depth levels below
// it, one level at a time. Nodes on the same level are fetched concurrently,
// bounded by WithMaxConcurrentLoads. Fetches already started by other callers
// are waited for. The first failure cancels the rest of that level and is
// returned.
func (s *Store) LoadSubtree(ctx context.Context, id string, depth int) error {
	if depth < 0 {
		depth = 0
	}
	frontier := []string{id}
	for level := 0; len(frontier) > 0; level++ {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.maxLoads)
		for _, nodeID := range frontier {
			g.Go(func() error {
				return s.loadAndWait(gctx, nodeID)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if level == depth {
			return nil
		}

		var next []string
		s.mu.Lock()
		for _, nodeID := range frontier {
			if n, ok := Find(s.root, nodeID); ok {
				for _, c := range n.Children {
					next = append(next, c.ID)
				}
			}
		}
		s.mu.Unlock()
		frontier = next
	}
	return nil
}
