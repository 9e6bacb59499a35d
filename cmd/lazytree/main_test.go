package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/vanderheijden86/lazytree/pkg/model"
	"github.com/vanderheijden86/lazytree/pkg/outline"
	"github.com/vanderheijden86/lazytree/pkg/repository"
	"github.com/vanderheijden86/lazytree/pkg/tree"
)

// writeEnv creates a config that serves the demo tree from a fixture file
// without simulated latency.
func writeEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	fx := repository.Fixture{Root: repository.DemoRoot(), Children: repository.DemoData()}
	data, err := json.Marshal(fx)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tree.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := "repository:\n  kind: file\n  path: tree.json\n  latency_min: 0s\n  latency_max: 0s\nlog:\n  level: error\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestShow_Outline(t *testing.T) {
	cfg := writeEnv(t)
	got, err := execute(t, "--config", cfg, "show", "--depth", "1")
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"▾ [A] Application",
		"├── ▾ [B] Services",
		"│   ├── ▸ [C] Auth Service",
		"│   └── ▸ [C] API Gateway",
		"└── ▾ [B] Components",
		"    ├── • [C] Button",
		"    └── • [C] Modal",
	}, "\n") + "\n"
	if got != want {
		t.Errorf("outline:\n%s\nwant:\n%s", got, want)
	}
}

func TestShow_JSON(t *testing.T) {
	cfg := writeEnv(t)
	got, err := execute(t, "--config", cfg, "show", "--depth", "0", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var doc outline.Document
	if err := json.Unmarshal([]byte(got), &doc); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, got)
	}
	if doc.Nodes != 3 || !doc.Root.IsLoaded {
		t.Errorf("nodes=%d rootLoaded=%v", doc.Nodes, doc.Root.IsLoaded)
	}
}

func TestShow_RestoresSavedExpansion(t *testing.T) {
	cfg := writeEnv(t)
	if _, err := execute(t, "--config", cfg, "show", "--depth", "2"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(cfg), "session-state.json")); err != nil {
		t.Fatalf("state not saved: %v", err)
	}

	// API Gateway was loaded but has no children, so it was never expanded
	// and is not fetched again.
	got, err := execute(t, "--config", cfg, "show", "--depth", "0")
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"▾ [A] Application",
		"├── ▾ [B] Services",
		"│   ├── ▾ [C] Auth Service",
		"│   │   └── • [D] OAuth Provider",
		"│   └── ▸ [C] API Gateway",
		"└── ▾ [B] Components",
		"    ├── • [C] Button",
		"    └── • [C] Modal",
	}, "\n") + "\n"
	if got != want {
		t.Errorf("restored outline:\n%s\nwant:\n%s", got, want)
	}

	got, err = execute(t, "--config", cfg, "show", "--depth", "0", "--no-state")
	if err != nil {
		t.Fatal(err)
	}
	if want := "▾ [A] Application\n├── ▸ [B] Services\n└── ▸ [B] Components\n"; got != want {
		t.Errorf("--no-state outline:\n%s\nwant:\n%s", got, want)
	}
}

func TestShow_NegativeDepth(t *testing.T) {
	cfg := writeEnv(t)
	if _, err := execute(t, "--config", cfg, "show", "--depth", "-1"); err == nil {
		t.Error("expected error for negative depth")
	}
}

func TestRun_Script(t *testing.T) {
	cfg := writeEnv(t)
	script := filepath.Join(filepath.Dir(cfg), "script.yaml")
	content := `
- op: load
  id: node-1
  depth: 1
- op: add
  parent: node-1
  name: Billing
  as: billing
- op: move
  id: $billing
  target: node-2
  position: before
- op: rename
  id: node-5
  name: Edge Gateway
- op: remove
  id: node-6
`
	if err := os.WriteFile(script, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := execute(t, "--config", cfg, "run", script, "--ids")
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"▾ [A] Application node-1",
		"├── • [B] Billing node-101",
		"└── ▾ [B] Services node-2",
		"    ├── ▸ [C] Auth Service node-3",
		"    └── ▸ [C] Edge Gateway node-5",
	}, "\n") + "\n"
	if got != want {
		t.Errorf("result:\n%s\nwant:\n%s", got, want)
	}
}

func TestRun_UnknownOpFails(t *testing.T) {
	cfg := writeEnv(t)
	script := filepath.Join(filepath.Dir(cfg), "bad.yaml")
	if err := os.WriteFile(script, []byte("- op: load\n  id: node-1\n- op: explode\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := execute(t, "--config", cfg, "run", script)
	if !errors.Is(err, errUnknownOp) {
		t.Errorf("err = %v, want errUnknownOp", err)
	}
}

func TestRun_MissingScript(t *testing.T) {
	cfg := writeEnv(t)
	if _, err := execute(t, "--config", cfg, "run", filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("expected error")
	}
}

func TestBadConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("repository:\n  kind: redis\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--config", path, "show"); err == nil {
		t.Error("expected config error")
	}
}

func TestScriptRunner_Aliases(t *testing.T) {
	store := tree.NewStore(model.TreeNode{ID: "r", Name: "Root", IsLoaded: true}, nil)
	r := newScriptRunner(store, zap.NewNop())

	err := r.Run(context.Background(), []Step{
		{Op: "add", Parent: "r", Name: "A", As: "a"},
		{Op: "add", Parent: "$a", Name: "B", As: "b"},
		{Op: "move", ID: "$b", Target: "r", Position: "inside"},
	})
	if err != nil {
		t.Fatal(err)
	}
	snap := store.Snapshot()
	if len(snap.Root.Children) != 2 || snap.Root.Children[1].Name != "B" {
		t.Errorf("unexpected tree: %+v", snap.Root)
	}

	if err := r.Run(context.Background(), []Step{{Op: "remove", ID: "$missing"}}); err == nil {
		t.Error("expected undefined alias error")
	}
	if err := r.Run(context.Background(), []Step{{Op: "move", ID: "r", Target: "r", Position: "sideways"}}); err == nil {
		t.Error("expected bad position error")
	}
}

func TestParseScript(t *testing.T) {
	steps, err := parseScript([]byte("- op: LOAD\n  id: x\n"))
	if err != nil || len(steps) != 1 {
		t.Fatalf("steps=%v err=%v", steps, err)
	}
	if _, err := parseScript([]byte("op: load")); err == nil {
		t.Error("a mapping is not a step list")
	}
}

func TestInit_ImportsFixtureIntoSQLite(t *testing.T) {
	cfg := writeEnv(t)
	dir := t.TempDir()
	fixture := filepath.Join(filepath.Dir(cfg), "tree.json")

	if _, err := execute(t, "--config", cfg, "init", dir, "--import", fixture); err != nil {
		t.Fatal(err)
	}
	newCfg := filepath.Join(dir, ".lazytree", "config.yaml")
	gitignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil || !strings.Contains(string(gitignore), ".lazytree/session-state.json") {
		t.Errorf(".gitignore = %q, %v", gitignore, err)
	}

	got, err := execute(t, "--config", newCfg, "show", "--depth", "0")
	if err != nil {
		t.Fatal(err)
	}
	want := "▾ [A] Application\n├── ▸ [B] Services\n└── ▸ [B] Components\n"
	if got != want {
		t.Errorf("show after init:\n%s\nwant:\n%s", got, want)
	}

	if _, err := execute(t, "--config", cfg, "init", dir); err == nil {
		t.Error("init over an existing config should fail without --force")
	}
	if _, err := execute(t, "--config", cfg, "init", dir, "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
}
