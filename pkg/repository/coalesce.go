package repository

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/lazytree/pkg/model"
)

// Coalesced collapses concurrent fetches for the same id into one call to
// the wrapped repository. A single Store never fetches one node twice at
// once, so this pays off when several stores share one backend.
type Coalesced struct {
	repo   Repository
	flight singleflight.Group
}

// Coalesce wraps repo.
func Coalesce(repo Repository) *Coalesced {
	return &Coalesced{repo: repo}
}

// FetchChildren joins an in-flight fetch for id or starts one. Every caller
// gets its own copy of the result.
//
// The shared call runs detached from any one caller's cancellation; each
// caller stops waiting when its own ctx ends, without failing the others.
func (c *Coalesced) FetchChildren(ctx context.Context, id string) ([]model.TreeNode, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(id, func() (v any, err error) {
		// DoChan re-panics on its own goroutine, where nobody can recover.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("fetch children of %s: panic: %v", id, r)
			}
		}()
		return c.repo.FetchChildren(shared, id)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		list, _ := res.Val.([]model.TreeNode)
		return cloneList(list), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
