package watcher

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Options configures the file watcher behavior.
type Options struct {
	// Extensions limits events to files with these extensions (".m4b").
	// Empty means every file.
	Extensions     []string
	IgnorePatterns []string
	SettleDelay    time.Duration
	IgnoreHidden   bool
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 100 * time.Millisecond
	}

	// Set default ignore patterns if none specified (nil, not just empty).
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"*.tmp",
			"*.temp",
			"*.part",
			"Thumbs.db",
		}
		// Patterns set explicitly, even to an empty slice, leave IgnoreHidden alone.
		o.IgnoreHidden = true
	}

	for i, ext := range o.Extensions {
		o.Extensions[i] = strings.ToLower(ext)
	}
}

// shouldIgnore checks if a path matches ignore patterns.
func (o *Options) shouldIgnore(path string) bool {
	if o.IgnoreHidden {
		parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
		for _, part := range parts {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		matched, err := filepath.Match(pattern, base)
		if err == nil && matched {
			return true
		}
	}

	return false
}

// wantsFile reports whether a file event for path should be emitted.
func (o *Options) wantsFile(path string) bool {
	if o.shouldIgnore(path) {
		return false
	}
	if len(o.Extensions) == 0 {
		return true
	}
	return slices.Contains(o.Extensions, strings.ToLower(filepath.Ext(path)))
}
