package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// StateIgnorePattern covers the machine-local session state file.
const StateIgnorePattern = DirName + "/session-state.json"

// EnsureGitignored makes sure pattern is listed in projectDir/.gitignore.
//
// The function is idempotent and safe to call multiple times.
// It will:
//   - Create .gitignore if it doesn't exist
//   - Add pattern if no line already covers it (with or without a leading /)
//   - Preserve existing file content and formatting
func EnsureGitignored(projectDir, pattern string) error {
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	gitignorePath := filepath.Join(projectDir, ".gitignore")

	alreadyPresent, err := isIgnored(gitignorePath, pattern)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if alreadyPresent {
		return nil
	}
	return appendToGitignore(gitignorePath, pattern)
}

// isIgnored checks if pattern is already covered by the .gitignore file.
func isIgnored(path, pattern string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if coversPattern(line, pattern) {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// coversPattern reports whether a gitignore line covers pattern, either
// exactly or by ignoring the whole settings directory.
func coversPattern(line, pattern string) bool {
	normalized := strings.TrimPrefix(line, "/")
	if normalized == strings.TrimPrefix(pattern, "/") {
		return true
	}
	for _, dir := range []string{DirName, DirName + "/", DirName + "/*", DirName + "/**", DirName + "/**/*"} {
		if normalized == dir && strings.HasPrefix(pattern, DirName+"/") {
			return true
		}
	}
	return false
}

// appendToGitignore appends a pattern to the .gitignore file, creating it
// if needed. A newline is added first if the file doesn't end with one.
func appendToGitignore(path, pattern string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	var toWrite string
	if len(content) == 0 {
		toWrite = "# lazytree local state\n" + pattern + "\n"
	} else {
		if content[len(content)-1] != '\n' {
			toWrite = "\n"
		}
		toWrite += "\n# lazytree local state\n" + pattern + "\n"
	}

	_, err = file.WriteString(toWrite)
	return err
}
