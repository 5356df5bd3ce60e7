package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/simonhull/audiometa"

	"github.com/listenupapp/listenup-player/internal/domain"
)

// FileInfo is what the catalog needs to know about one audio file.
type FileInfo struct {
	Title    string
	Duration time.Duration
	Chapters []domain.Chapter
}

// MetadataReader reads metadata from an audio file.
type MetadataReader interface {
	ReadFile(ctx context.Context, path string) (*FileInfo, error)
}

// AudiometaReader reads tags, duration and chapter markers with audiometa.
type AudiometaReader struct{}

// ReadFile implements MetadataReader.
func (AudiometaReader) ReadFile(ctx context.Context, path string) (*FileInfo, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close() //nolint:errcheck // Read-only handle

	p := &FileInfo{
		Title:    file.Tags.Title,
		Duration: file.Audio.Duration,
	}
	for _, ch := range file.Chapters {
		p.Chapters = append(p.Chapters, domain.Chapter{
			Number:             ch.Index + 1,
			Title:              ch.Title,
			StartOffsetSeconds: ch.StartTime.Seconds(),
		})
	}
	return p, nil
}
