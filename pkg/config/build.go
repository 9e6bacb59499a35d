package config

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vanderheijden86/lazytree/pkg/ids"
	"github.com/vanderheijden86/lazytree/pkg/model"
	"github.com/vanderheijden86/lazytree/pkg/repository"
	"github.com/vanderheijden86/lazytree/pkg/tree"
)

// Latency returns the simulated fetch latency.
func (c Config) Latency() repository.Latency {
	return repository.Latency{Min: c.Repository.LatencyMin, Max: c.Repository.LatencyMax}
}

// Generator returns the configured id generator.
func (c Config) Generator() (ids.Generator, error) {
	return ids.New(c.IDs.Strategy, c.IDs.Prefix, c.IDs.Start)
}

// OpenRepository opens the configured repository and returns it with the
// initial root node. The repository coalesces concurrent fetches of one node,
// so several stores built over it share in-flight calls. The returned close
// function releases files, watchers and database handles; it is never nil.
func (c Config) OpenRepository(ctx context.Context, logger *zap.Logger) (repository.Repository, model.TreeNode, func() error, error) {
	noop := func() error { return nil }
	if logger == nil {
		logger = zap.NewNop()
	}

	switch c.Repository.Kind {
	case KindMemory, "":
		return repository.Coalesce(repository.NewDemo(c.Latency())), repository.DemoRoot(), noop, nil

	case KindFile:
		f, err := repository.OpenFile(c.ResolvedPath(), c.Latency(), logger)
		if err != nil {
			return nil, model.TreeNode{}, noop, err
		}
		if c.Repository.Watch {
			if err := f.Watch(); err != nil {
				return nil, model.TreeNode{}, noop, err
			}
		}
		return repository.Coalesce(f), f.Root(), f.Close, nil

	case KindSQLite:
		s, err := repository.OpenSQLite(ctx, c.ResolvedPath())
		if err != nil {
			return nil, model.TreeNode{}, noop, err
		}
		root, err := s.Root(ctx)
		if err != nil {
			s.Close()
			return nil, model.TreeNode{}, noop, err
		}
		return repository.Coalesce(s), root, s.Close, nil
	}
	return nil, model.TreeNode{}, noop, fmt.Errorf("%w: unknown repository.kind %q", ErrInvalidConfig, c.Repository.Kind)
}

// NewStore opens the repository and builds a store over it.
func (c Config) NewStore(ctx context.Context, logger *zap.Logger, opts ...tree.Option) (*tree.Store, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gen, err := c.Generator()
	if err != nil {
		return nil, func() error { return nil }, err
	}
	repo, root, closeFn, err := c.OpenRepository(ctx, logger)
	if err != nil {
		return nil, closeFn, err
	}

	levels := c.Levels
	if len(levels) == 0 {
		levels = model.DefaultLevels
	}
	base := []tree.Option{
		tree.WithIDGenerator(gen),
		tree.WithLogger(logger.Named("tree")),
		tree.WithLevels(levels),
		tree.WithMaxConcurrentLoads(c.Load.MaxConcurrent),
	}
	store := tree.NewStore(root, repo, append(base, opts...)...)
	logger.Debug("store ready",
		zap.String("repository", c.Repository.Kind),
		zap.String("root", root.ID),
		zap.String("ids", c.IDs.Strategy))
	return store, closeFn, nil
}
