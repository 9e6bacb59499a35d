package main_test

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/lazytree/pkg/repository"
)

var (
	buildOnce sync.Once
	buildPath string
	buildErr  error
	buildOut  []byte
)

// buildLazytreeBinary compiles cmd/lazytree once per test run.
func buildLazytreeBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping e2e build in -short mode")
	}
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "lazytree-e2e-")
		if err != nil {
			buildErr = err
			return
		}
		name := "lazytree"
		if runtime.GOOS == "windows" {
			name += ".exe"
		}
		buildPath = filepath.Join(dir, name)

		_, file, _, _ := runtime.Caller(0)
		moduleRoot := filepath.Join(filepath.Dir(file), "..", "..")
		cmd := exec.Command("go", "build", "-o", buildPath, "./cmd/lazytree")
		cmd.Dir = moduleRoot
		buildOut, buildErr = cmd.CombinedOutput()
	})
	if buildErr != nil {
		t.Fatalf("build lazytree: %v\n%s", buildErr, buildOut)
	}
	return buildPath
}

// newFixtureEnv writes the demo tree as a fixture plus a .lazytree config
// pointing at it, and returns the environment directory.
func newFixtureEnv(t *testing.T, latency time.Duration) string {
	t.Helper()
	envDir := t.TempDir()

	fx := repository.Fixture{Root: repository.DemoRoot(), Children: repository.DemoData()}
	data, err := json.MarshalIndent(fx, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(envDir, "tree.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfgDir := filepath.Join(envDir, ".lazytree")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := fmt.Sprintf(`repository:
  kind: file
  path: ../tree.json
  latency_min: %s
  latency_max: %s
log:
  level: error
`, latency, latency)
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return envDir
}

// runLazytree runs the binary in dir and returns stdout. Stderr is attached
// to the failure message.
func runLazytree(t *testing.T, dir string, args ...string) ([]byte, error) {
	t.Helper()
	cmd := exec.Command(buildLazytreeBinary(t), args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("lazytree %v: %w\nstderr:\n%s", args, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// runLazytreeJSON runs the binary and decodes its stdout into v.
func runLazytreeJSON(t *testing.T, dir string, v any, args ...string) error {
	t.Helper()
	out, err := runLazytree(t, dir, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out, v); err != nil {
		return fmt.Errorf("decode output: %w\n%s", err, out)
	}
	return nil
}

// stepLogger prints numbered steps and timings to the test log.
type stepLogger struct {
	t     *testing.T
	step  int
	start time.Time
}

func newStepLogger(t *testing.T) *stepLogger {
	return &stepLogger{t: t, start: time.Now()}
}

func (l *stepLogger) Step(format string, args ...any) {
	l.t.Helper()
	l.step++
	l.t.Logf("[step %d +%s] %s", l.step, time.Since(l.start).Round(time.Millisecond), fmt.Sprintf(format, args...))
}

func (l *stepLogger) MetricDuration(name string, d time.Duration) {
	l.t.Helper()
	l.t.Logf("[metric] %s=%s", name, d.Round(time.Millisecond))
}
