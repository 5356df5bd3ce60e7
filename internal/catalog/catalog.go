// Package catalog indexes the audiobook files under a library directory and
// turns them into playable tracks.
package catalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/listenupapp/listenup-player/internal/chapters"
	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/id"
)

// Extensions are the audio formats the catalog picks up.
var Extensions = []string{".m4b", ".m4a", ".mp3", ".flac", ".ogg", ".opus"}

// ErrUnknownTrack is returned for IDs and URIs the catalog does not hold.
var ErrUnknownTrack = errors.New("catalog: unknown track")

// ScanResult summarizes a scan.
type ScanResult struct {
	Total   int
	Added   int
	Removed int
	Failed  int
}

// Catalog holds the tracks found by the last scan. Safe for concurrent use.
type Catalog struct {
	root   string
	reader MetadataReader
	logger *slog.Logger

	scanMu sync.Mutex // serializes scans

	mu     sync.RWMutex
	tracks map[string]*domain.Track // by ID
	byURI  map[string]string        // media URI -> ID
}

// New creates an empty catalog over root. Call Scan to populate it.
func New(root string, reader MetadataReader, logger *slog.Logger) *Catalog {
	if reader == nil {
		reader = AudiometaReader{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{
		root:   root,
		reader: reader,
		logger: logger,
		tracks: make(map[string]*domain.Track),
		byURI:  make(map[string]string),
	}
}

// Root returns the library directory.
func (c *Catalog) Root() string {
	return c.root
}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// FileURI returns the media URI for an absolute path.
func FileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// Scan walks the library and replaces the catalog contents. Files that fail
// to read are skipped and counted.
func (c *Catalog) Scan(ctx context.Context) (ScanResult, error) {
	c.scanMu.Lock()
	defer c.scanMu.Unlock()

	root, err := filepath.Abs(c.root)
	if err != nil {
		return ScanResult{}, fmt.Errorf("resolve library path: %w", err)
	}

	var result ScanResult
	found := make(map[string]*domain.Track)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			c.logger.Warn("walk error", "path", path, "error", err)
			return nil
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsAudioFile(path) {
			return nil
		}

		track, err := c.buildTrack(ctx, root, path)
		if err != nil {
			result.Failed++
			c.logger.Warn("skipping unreadable audio file", "path", path, "error", err)
			return nil
		}
		found[track.ID] = track
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("scan %s: %w", root, err)
	}

	c.mu.Lock()
	for trackID := range found {
		if _, ok := c.tracks[trackID]; !ok {
			result.Added++
		}
	}
	for trackID := range c.tracks {
		if _, ok := found[trackID]; !ok {
			result.Removed++
		}
	}
	c.tracks = found
	c.byURI = make(map[string]string, len(found))
	for trackID, t := range found {
		c.byURI[t.MediaURI] = trackID
	}
	c.mu.Unlock()

	result.Total = len(found)
	c.logger.Info("library scanned",
		"path", root,
		"tracks", result.Total,
		"added", result.Added,
		"removed", result.Removed,
		"failed", result.Failed,
	)
	return result, nil
}

func (c *Catalog) buildTrack(ctx context.Context, root, path string) (*domain.Track, error) {
	info, err := c.reader.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(info.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	duration := max(info.Duration.Seconds(), 0)
	marks := chapters.Normalize(info.Chapters)
	if duration > 0 {
		// Markers past the end come from broken chapter tables.
		marks = lo.Filter(marks, func(ch domain.Chapter, _ int) bool {
			return ch.StartOffsetSeconds <= duration
		})
	}
	for i := range marks {
		marks[i].Title = chapters.DisplayTitle(marks[i])
	}

	if analysis := chapters.Analyze(marks); analysis.Total > 0 && analysis.GenericCount == analysis.Total {
		c.logger.Debug("chapter titles are all generic", "path", rel, "chapters", analysis.Total)
	}

	return &domain.Track{
		ID:                   id.Stable(id.PrefixTrack, filepath.ToSlash(rel)),
		Title:                title,
		MediaURI:             FileURI(path),
		TotalDurationSeconds: duration,
		Chapters:             marks,
	}, nil
}

// Get returns a copy of the track with the given ID.
func (c *Catalog) Get(trackID string) (*domain.Track, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tracks[trackID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrack, trackID)
	}
	return cloneTrack(t), nil
}

// LookupURI returns a copy of the track served from uri.
func (c *Catalog) LookupURI(uri string) (*domain.Track, error) {
	c.mu.RLock()
	trackID, ok := c.byURI[uri]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrack, uri)
	}
	return c.Get(trackID)
}

// List returns every track ordered by title, then ID. Titles compare the
// way a reader expects: case and accents are secondary and embedded numbers
// sort by value, so "Part 2" precedes "Part 10".
func (c *Catalog) List() []domain.Track {
	c.mu.RLock()
	out := make([]domain.Track, 0, len(c.tracks))
	for _, t := range c.tracks {
		out = append(out, *cloneTrack(t))
	}
	c.mu.RUnlock()

	// A Collator is not safe for concurrent use.
	titles := collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
	slices.SortFunc(out, func(a, b domain.Track) int {
		return cmp.Or(
			titles.CompareString(a.Title, b.Title),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tracks)
}

// Resolve returns the duration of the media behind uri. Catalog entries
// answer directly; other file URIs are read.
func (c *Catalog) Resolve(ctx context.Context, uri string) (float64, error) {
	if t, err := c.LookupURI(uri); err == nil && t.TotalDurationSeconds > 0 {
		return t.TotalDurationSeconds, nil
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTrack, uri)
	}

	info, err := c.reader.ReadFile(ctx, filepath.FromSlash(u.Path))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", uri, err)
	}
	if info.Duration <= 0 {
		return 0, fmt.Errorf("read %s: no duration", uri)
	}
	return info.Duration.Seconds(), nil
}

func cloneTrack(t *domain.Track) *domain.Track {
	c := *t
	c.Chapters = slices.Clone(t.Chapters)
	return &c
}
