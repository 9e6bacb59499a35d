package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/lazytree/pkg/model"
	"github.com/vanderheijden86/lazytree/pkg/outline"
	"github.com/vanderheijden86/lazytree/pkg/tree"
)

var errUnknownOp = errors.New("unknown op")

// Step is one entry of a run script.
//
//	- op: load
//	  id: node-1
//	  depth: 1          # optional, load the subtree below id too
//	- op: add
//	  parent: node-1
//	  name: Billing
//	  as: billing       # later steps may refer to the new node as $billing
//	- op: rename
//	  id: $billing
//	  name: Billing Service
//	- op: move
//	  id: $billing
//	  target: node-2
//	  position: inside  # before | after | inside
//	- op: remove
//	  id: node-6
type Step struct {
	Op       string `yaml:"op"`
	ID       string `yaml:"id"`
	Parent   string `yaml:"parent"`
	Name     string `yaml:"name"`
	Target   string `yaml:"target"`
	Position string `yaml:"position"`
	Depth    int    `yaml:"depth"`
	As       string `yaml:"as"`
}

var knownOps = map[string]bool{"load": true, "add": true, "remove": true, "rename": true, "move": true}

// parseScript decodes a YAML list of steps and rejects unknown ops before
// anything runs.
func parseScript(data []byte) ([]Step, error) {
	var steps []Step
	if err := yaml.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	for i, step := range steps {
		if !knownOps[strings.ToLower(step.Op)] {
			return nil, fmt.Errorf("step %d: %w %q", i+1, errUnknownOp, step.Op)
		}
	}
	return steps, nil
}

// scriptRunner applies steps to a store, tracking $aliases for added nodes.
type scriptRunner struct {
	store   *tree.Store
	logger  *zap.Logger
	aliases map[string]string
}

func newScriptRunner(store *tree.Store, logger *zap.Logger) *scriptRunner {
	return &scriptRunner{store: store, logger: logger, aliases: make(map[string]string)}
}

func (r *scriptRunner) resolve(ref string) (string, error) {
	if !strings.HasPrefix(ref, "$") {
		return ref, nil
	}
	id, ok := r.aliases[ref[1:]]
	if !ok {
		return "", fmt.Errorf("undefined alias %s", ref)
	}
	return id, nil
}

// Run executes steps in order and stops at the first failing step. Edits
// that reference missing nodes are not failures; the store ignores them.
func (r *scriptRunner) Run(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		if err := r.apply(ctx, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}
	return nil
}

func (r *scriptRunner) apply(ctx context.Context, step Step) error {
	id, err := r.resolve(step.ID)
	if err != nil {
		return err
	}

	switch strings.ToLower(step.Op) {
	case "load":
		if step.Depth > 0 {
			return r.store.LoadSubtree(ctx, id, step.Depth)
		}
		return r.store.Load(ctx, id)

	case "add":
		parent, err := r.resolve(step.Parent)
		if err != nil {
			return err
		}
		_, newID := r.store.AddChild(parent, step.Name)
		if newID == "" {
			r.logger.Info("add ignored", zap.String("parent", parent))
			return nil
		}
		if step.As != "" {
			r.aliases[step.As] = newID
		}

	case "remove":
		r.store.Remove(id)

	case "rename":
		r.store.Rename(id, step.Name)

	case "move":
		target, err := r.resolve(step.Target)
		if err != nil {
			return err
		}
		pos, err := model.ParsePosition(step.Position)
		if err != nil {
			return err
		}
		r.store.Move(id, target, pos)

	default:
		return fmt.Errorf("%w %q", errUnknownOp, step.Op)
	}
	return nil
}

func newRunCmd(a *app) *cobra.Command {
	var (
		asJSON  bool
		showIDs bool
	)
	cmd := &cobra.Command{
		Use:   "run SCRIPT",
		Short: "Apply a YAML script of tree operations and print the result",
		Long: `Executes each step of SCRIPT (a YAML list of load, add, remove, rename and
move operations) against the tree, then prints the final snapshot.

Edits that reference missing nodes or would create a cycle leave the tree
unchanged. Failed loads and unknown operations stop the script.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			steps, err := parseScript(data)
			if err != nil {
				return err
			}

			store, release, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if err := newScriptRunner(store, a.logger.Named("run")).Run(cmd.Context(), steps); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			snap := store.Snapshot()
			if asJSON {
				return outline.WriteJSON(out, snap)
			}
			_, err = fmt.Fprint(out, outline.RenderTree(snap.Root, a.outlineOptions(out, showIDs)))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	cmd.Flags().BoolVar(&showIDs, "ids", false, "print node ids in the outline")
	return cmd
}
