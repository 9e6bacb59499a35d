package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DirName is the per-project settings directory.
const DirName = ".lazytree"

// FileName is the settings file inside DirName.
const FileName = "config.yaml"

// Discover looks for .lazytree/config.yaml walking up from the current
// directory and loads it. Without a file it returns Default with found set
// to false.
func Discover() (cfg Config, found bool, err error) {
	dir, err := os.Getwd()
	if err != nil {
		return Default(), false, nil
	}
	path, ok := findConfig(dir)
	if !ok {
		return Default(), false, nil
	}
	cfg, err = Load(path)
	return cfg, true, err
}

// findConfig walks up from dir looking for .lazytree/config.yaml.
func findConfig(dir string) (string, bool) {
	home, _ := os.UserHomeDir()

	for {
		candidate := filepath.Join(dir, DirName, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		// Don't go above home directory
		if home != "" && dir == home {
			break
		}
		dir = parent
	}
	return "", false
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
