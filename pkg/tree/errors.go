package tree

import (
	"errors"
	"fmt"
	"time"
)

// Operation errors. The Store treats both as silent no-ops; the pure
// functions in this package return them so callers can tell why nothing
// changed.
var (
	// ErrNotFound indicates that a referenced node id does not exist in the tree.
	ErrNotFound = errors.New("node not found")

	// ErrInvalidOperation indicates a structurally disallowed request, such as
	// removing the root or moving a node into its own subtree.
	ErrInvalidOperation = errors.New("invalid tree operation")

	// ErrIDCollision indicates that the id generator kept returning ids that
	// already exist in the tree.
	ErrIDCollision = errors.New("no unused node id")
)

// Load errors
var (
	// ErrNoRepository indicates that the store was built without a node repository.
	ErrNoRepository = errors.New("no node repository configured")
)

// LoadError wraps a failed fetch with the node it was issued for.
type LoadError struct {
	NodeID string    // Node whose children were being fetched
	Cause  error     // The underlying repository error
	Time   time.Time // When the failure was observed
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load children of %s failed: %v", e.NodeID, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
