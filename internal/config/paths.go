// Package config resolves tweakctl's on-disk layout and user configuration.
package config

import (
	"os"
	"path/filepath"
)

// Paths describes the data directory layout. Everything lives under one
// root so a support bundle is a single directory copy.
type Paths struct {
	Root string
}

// DefaultDir returns the tweakctl data directory, respecting
// TWEAKCTL_DATA_DIR. Defaults to ~/.tweakctl.
func DefaultDir() (string, error) {
	if dir := os.Getenv("TWEAKCTL_DATA_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tweakctl"), nil
}

// NewPaths returns the layout rooted at dir.
func NewPaths(dir string) Paths {
	return Paths{Root: dir}
}

// Catalog is the tweak and task catalog file.
func (p Paths) Catalog() string {
	return filepath.Join(p.Root, "catalog.json")
}

// RestorePoints is the directory holding restore point files.
func (p Paths) RestorePoints() string {
	return filepath.Join(p.Root, "restorepoints")
}

// QueueDB is the task queue database.
func (p Paths) QueueDB() string {
	return filepath.Join(p.Root, "queue.db")
}

// StateCache is the directory holding mirrored probe results.
func (p Paths) StateCache() string {
	return filepath.Join(p.Root, "state")
}

// Scripts is the directory holding the PowerShell scripts the catalog
// references by relative path.
func (p Paths) Scripts() string {
	return filepath.Join(p.Root, "scripts")
}

// Aliases is the preset alias file.
func (p Paths) Aliases() string {
	return filepath.Join(p.Root, "aliases")
}

// Ensure creates the directories the layout needs.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.Root, p.RestorePoints(), p.StateCache()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// ResolveScript turns a catalog-relative script path into an absolute one.
// Absolute paths pass through unchanged.
func (p Paths) ResolveScript(script string) string {
	if filepath.IsAbs(script) {
		return script
	}
	return filepath.Join(p.Root, script)
}
