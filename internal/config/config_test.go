package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindProjectConfigWalksUpward(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	jsongitDir := filepath.Join(root, ".jsongit")
	if err := os.MkdirAll(jsongitDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	cfgPath := filepath.Join(jsongitDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("store:\n  path: custom.db\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldwd)
	if err := os.Chdir(sub); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	found, ok := findProjectConfig()
	if !ok {
		t.Fatalf("expected to find a project config walking up from %s", sub)
	}
	if found != cfgPath {
		t.Fatalf("expected %s, got %s", cfgPath, found)
	}
}

func TestIdentityFromGitConfigParsesUserSection(t *testing.T) {
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	contents := "[core]\n\tbare = false\n[user]\n\tname = Ada Lovelace\n\temail = ada@example.com\n"
	if err := os.WriteFile(filepath.Join(gitDir, "config"), []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldwd)
	if err := os.Chdir(root); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	name, email, ok := identityFromGitConfig()
	if !ok {
		t.Fatalf("expected identity to be found")
	}
	if name != "Ada Lovelace" || email != "ada@example.com" {
		t.Fatalf("unexpected identity: %q %q", name, email)
	}
}

func TestIdentityFromGitConfigMissingFileFails(t *testing.T) {
	root := t.TempDir()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldwd)
	if err := os.Chdir(root); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	if _, _, ok := identityFromGitConfig(); ok {
		t.Fatalf("expected no identity without a .git/config")
	}
}
