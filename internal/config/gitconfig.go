package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// identityFromGitConfig best-effort-scans the enclosing directory's
// .git/config for user.name/user.email, so a project already under
// version control doesn't need a separate identity configured. This
// is a plain INI scan, never a dependency on an actual git binary or
// library.
func identityFromGitConfig() (name, email string, ok bool) {
	path, found := findDotGitConfig()
	if !found {
		return "", "", false
	}
	f, err := os.Open(path)
	if err != nil {
		return "", "", false
	}
	defer f.Close()

	inUserSection := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inUserSection = strings.EqualFold(strings.Trim(line, "[]"), "user")
			continue
		}
		if !inUserSection {
			continue
		}
		key, value, hasEq := strings.Cut(line, "=")
		if !hasEq {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "name":
			name = value
		case "email":
			email = value
		}
	}
	return name, email, name != "" || email != ""
}

func findDotGitConfig() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		path := filepath.Join(dir, ".git", "config")
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
	}
}
