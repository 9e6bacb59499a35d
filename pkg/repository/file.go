package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/lazytree/pkg/model"
)

// Fixture is the on-disk shape of a file-backed tree: the root node plus the
// children served for each node id.
//
// File format (JSON or YAML, chosen by extension):
//
//	{
//	  "root": {"id": "node-1", "name": "Application", "level": "A"},
//	  "children": {
//	    "node-1": [{"id": "node-2", "name": "Services", "level": "B"}]
//	  }
//	}
type Fixture struct {
	Root     model.TreeNode              `json:"root" yaml:"root"`
	Children map[string][]model.TreeNode `json:"children" yaml:"children"`
}

// Validate checks that the fixture has a usable root and no id is served
// twice.
func (f *Fixture) Validate() error {
	if err := f.Root.Validate(); err != nil {
		return fmt.Errorf("root: %w", err)
	}
	seen := make(map[string]string)
	for _, id := range f.Root.IDs() {
		seen[id] = "root"
	}
	for parent, list := range f.Children {
		for i := range list {
			if err := list[i].Validate(); err != nil {
				return fmt.Errorf("children of %s: %w", parent, err)
			}
			for _, id := range list[i].IDs() {
				if prev, dup := seen[id]; dup {
					return fmt.Errorf("node %q served under both %s and %s", id, prev, parent)
				}
				seen[id] = parent
			}
		}
	}
	return nil
}

// LoadFixture reads and validates a fixture file. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data, filepath.Ext(path))
}

// ParseFixture decodes fixture bytes; ext selects the format.
func ParseFixture(data []byte, ext string) (*Fixture, error) {
	var f Fixture
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse yaml fixture: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse json fixture: %w", err)
		}
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

// File serves children from a fixture file. With Watch it reloads the file
// whenever it changes on disk, so later fetches see the new data.
type File struct {
	path   string
	mem    *Memory
	logger *zap.Logger

	mu      sync.RWMutex
	root    model.TreeNode
	lastErr error

	watcher  *fsnotify.Watcher
	debounce time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	reloaded chan struct{}
}

// OpenFile loads the fixture at path.
func OpenFile(path string, latency Latency, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fx, err := LoadFixture(path)
	if err != nil {
		return nil, err
	}
	return &File{
		path:     path,
		mem:      NewMemory(fx.Children, latency),
		logger:   logger,
		root:     fx.Root,
		debounce: 100 * time.Millisecond,
		reloaded: make(chan struct{}, 1),
	}, nil
}

// Root returns the fixture's root node as last loaded.
func (f *File) Root() model.TreeNode {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.root.Clone()
}

// LastError returns the error from the most recent reload, or nil.
func (f *File) LastError() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

// FetchChildren serves the children recorded in the fixture.
func (f *File) FetchChildren(ctx context.Context, id string) ([]model.TreeNode, error) {
	return f.mem.FetchChildren(ctx, id)
}

// Reload re-reads the fixture. A broken file keeps the previous data.
func (f *File) Reload() error {
	fx, err := LoadFixture(f.path)
	f.mu.Lock()
	f.lastErr = err
	if err == nil {
		f.root = fx.Root
	}
	f.mu.Unlock()
	if err != nil {
		f.logger.Warn("fixture reload failed, keeping previous data",
			zap.String("path", f.path), zap.Error(err))
		return err
	}
	f.mem.Replace(fx.Children)
	f.logger.Info("fixture reloaded", zap.String("path", f.path))
	select {
	case f.reloaded <- struct{}{}:
	default:
	}
	return nil
}

// Reloaded signals after each successful reload. Signals coalesce.
func (f *File) Reloaded() <-chan struct{} {
	return f.reloaded
}

// Watch starts reloading the fixture when it changes. The directory is
// watched rather than the file so editors that replace the file on save are
// still seen.
func (f *File) Watch() error {
	if f.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch fixture dir: %w", err)
	}
	f.watcher = w
	f.ctx, f.cancel = context.WithCancel(context.Background())
	f.done = make(chan struct{})
	go f.watchLoop()
	return nil
}

// Close stops watching. It is safe to call without Watch and more than once.
func (f *File) Close() error {
	if f.watcher == nil {
		return nil
	}
	f.cancel()
	err := f.watcher.Close()
	<-f.done
	f.watcher = nil
	return err
}

func (f *File) watchLoop() {
	defer close(f.done)

	target := filepath.Clean(f.path)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-f.ctx.Done():
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce bursts of writes into one reload.
			if timer == nil {
				timer = time.NewTimer(f.debounce)
			} else {
				timer.Reset(f.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			_ = f.Reload()

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("fixture watcher error", zap.String("path", f.path), zap.Error(err))
		}
	}
}
