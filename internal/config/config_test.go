package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultDirRespectsEnvOverride(t *testing.T) {
	t.Setenv("TWEAKCTL_DATA_DIR", "/custom/data")
	dir, err := DefaultDir()
	if err != nil {
		t.Fatalf("DefaultDir failed: %v", err)
	}
	if dir != "/custom/data" {
		t.Errorf("Expected env override, got %s", dir)
	}
}

func TestPathsLayout(t *testing.T) {
	p := NewPaths("/data")
	if p.Catalog() != filepath.Join("/data", "catalog.json") {
		t.Errorf("Unexpected catalog path: %s", p.Catalog())
	}
	if p.QueueDB() != filepath.Join("/data", "queue.db") {
		t.Errorf("Unexpected queue path: %s", p.QueueDB())
	}
	if p.RestorePoints() != filepath.Join("/data", "restorepoints") {
		t.Errorf("Unexpected restore point path: %s", p.RestorePoints())
	}
}

func TestPathsEnsureCreatesDirectories(t *testing.T) {
	p := NewPaths(filepath.Join(t.TempDir(), "tweakctl"))
	if err := p.Ensure(); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	for _, dir := range []string{p.Root, p.RestorePoints(), p.StateCache()} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("Expected directory %s: %v", dir, err)
		}
	}
}

func TestResolveScript(t *testing.T) {
	p := NewPaths("/data")
	if got := p.ResolveScript("scripts/set-telemetry.ps1"); got != filepath.Join("/data", "scripts", "set-telemetry.ps1") {
		t.Errorf("Unexpected relative resolution: %s", got)
	}
	abs := filepath.Join(string(filepath.Separator), "opt", "x.ps1")
	if got := p.ResolveScript(abs); got != abs {
		t.Errorf("Expected absolute path unchanged, got %s", got)
	}
}

func TestLoadAliases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aliases")
	content := `# preset shortcuts
gaming = gaming-performance
privacy=privacy-baseline

= invalid
broken-line
empty-right =
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write aliases: %v", err)
	}

	cfg, err := LoadAliases(path)
	if err != nil {
		t.Fatalf("LoadAliases failed: %v", err)
	}
	if len(cfg.Aliases) != 2 {
		t.Errorf("Expected 2 aliases, got %d: %v", len(cfg.Aliases), cfg.Aliases)
	}
	if got := cfg.Resolve("GAMING"); got != "gaming-performance" {
		t.Errorf("Expected case-insensitive resolution, got %s", got)
	}
	if got := cfg.Resolve("unknown"); got != "unknown" {
		t.Errorf("Expected passthrough for unknown alias, got %s", got)
	}
}

func TestLoadAliasesMissingFile(t *testing.T) {
	cfg, err := LoadAliases(filepath.Join(t.TempDir(), "aliases"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if len(cfg.Aliases) != 0 {
		t.Errorf("Expected empty config, got %v", cfg.Aliases)
	}
}
