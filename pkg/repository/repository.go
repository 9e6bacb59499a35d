// Package repository provides Node Repository implementations: sources that
// produce the direct children of a node on demand.
package repository

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vanderheijden86/lazytree/pkg/model"
)

// ErrUnavailable indicates that a repository cannot serve requests, e.g. a
// closed database or a fixture that failed to parse.
var ErrUnavailable = errors.New("repository unavailable")

// Repository produces the ordered direct children of a node. An id with no
// known children yields an empty slice, not an error.
type Repository interface {
	FetchChildren(ctx context.Context, id string) ([]model.TreeNode, error)
}

// FetchFunc adapts a function to Repository.
type FetchFunc func(ctx context.Context, id string) ([]model.TreeNode, error)

// FetchChildren calls f.
func (f FetchFunc) FetchChildren(ctx context.Context, id string) ([]model.TreeNode, error) {
	return f(ctx, id)
}

// Latency is a simulated network delay drawn uniformly from [Min, Max].
type Latency struct {
	Min time.Duration
	Max time.Duration
}

// DemoLatency matches the delay of the demo backend.
var DemoLatency = Latency{Min: 600 * time.Millisecond, Max: time.Second}

func (l Latency) draw() time.Duration {
	if l.Max <= l.Min {
		return l.Min
	}
	return l.Min + rand.N(l.Max-l.Min)
}

// wait sleeps for one drawn delay or until ctx is done.
func (l Latency) wait(ctx context.Context) error {
	d := l.draw()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Memory serves children from an in-process map with optional simulated
// latency. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	children map[string][]model.TreeNode
	latency  Latency
}

// NewMemory creates a repository over children. The map is deep-copied.
func NewMemory(children map[string][]model.TreeNode, latency Latency) *Memory {
	m := &Memory{latency: latency}
	m.Replace(children)
	return m
}

// Replace swaps the whole data set. Fetches already past their delay keep
// the data they read.
func (m *Memory) Replace(children map[string][]model.TreeNode) {
	copied := make(map[string][]model.TreeNode, len(children))
	for id, list := range children {
		copied[id] = cloneList(list)
	}
	m.mu.Lock()
	m.children = copied
	m.mu.Unlock()
}

// Set replaces the children of a single node.
func (m *Memory) Set(id string, children []model.TreeNode) {
	m.mu.Lock()
	m.children[id] = cloneList(children)
	m.mu.Unlock()
}

// FetchChildren waits out the simulated latency and returns a copy of the
// children registered for id.
func (m *Memory) FetchChildren(ctx context.Context, id string) ([]model.TreeNode, error) {
	if err := m.latency.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneList(m.children[id]), nil
}

func cloneList(list []model.TreeNode) []model.TreeNode {
	out := make([]model.TreeNode, len(list))
	for i := range list {
		out[i] = list[i].Clone()
	}
	return out
}
