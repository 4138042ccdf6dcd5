// Package rclone drives the rclone binary: per-remote config emission,
// subprocess invocation with streaming progress, a store abstraction
// over the Amazon and Google providers, and installation of a pinned
// rclone release.
package rclone

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KeepConfigFiles, when set (from the --keep-rclone-config debug flag),
// preserves every temporary rclone config file for inspection.
var KeepConfigFiles bool

// ConfigEntry is one "key = value" line of an rclone remote section.
// Order is significant: the emitted file mirrors insertion order.
type ConfigEntry struct {
	Key   string
	Value string
}

// renderSection emits one [name] section, omitting empty values.
func renderSection(name string, entries []ConfigEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", name)
	for _, entry := range entries {
		if entry.Value == "" {
			continue
		}
		fmt.Fprintf(&b, "%s = %s\n", entry.Key, entry.Value)
	}
	return b.String()
}

// ConfigFile is a scoped temporary rclone config file. Close removes
// it unless it was persisted for debugging.
type ConfigFile struct {
	path      string
	persisted bool
}

// WriteConfigFile writes the config sections for the given stores to a
// fresh temporary file with owner-only permissions. With persist true
// (or the package debug flag) the file survives Close under a stable
// name so a failed transfer can be reproduced by hand.
func WriteConfigFile(persist bool, stores ...*Store) (*ConfigFile, error) {
	sections := make([]string, 0, len(stores))
	for _, store := range stores {
		sections = append(sections, renderSection(store.Name, store.ConfigEntries()))
	}
	content := strings.Join(sections, "\n")

	f, err := os.CreateTemp("", "rclone-*.conf")
	if err != nil {
		return nil, fmt.Errorf("cannot create rclone config file: %w", err)
	}
	path := f.Name()

	if err := f.Chmod(0600); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("cannot restrict rclone config permissions: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("cannot write rclone config file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("cannot write rclone config file: %w", err)
	}

	cfg := &ConfigFile{path: path}
	if persist || KeepConfigFiles {
		// Move out of the scoped name so Close leaves it alone.
		kept := filepath.Join(filepath.Dir(path), "kept-"+filepath.Base(path))
		if err := os.Rename(path, kept); err == nil {
			cfg.path = kept
		}
		cfg.persisted = true
	}
	return cfg, nil
}

// Path returns the config file location for --config.
func (c *ConfigFile) Path() string {
	return c.path
}

// Persisted reports whether the file survives Close.
func (c *ConfigFile) Persisted() bool {
	return c.persisted
}

// Close deletes the file unless it was persisted.
func (c *ConfigFile) Close() error {
	if c.persisted {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
