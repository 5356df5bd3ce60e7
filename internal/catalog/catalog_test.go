package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/id"
)

// fakeReader answers from a table keyed by file base name.
type fakeReader struct {
	mu     sync.Mutex
	infos map[string]*FileInfo
	calls  int
}

func (f *fakeReader) ReadFile(_ context.Context, path string) (*FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.infos[filepath.Base(path)]
	if !ok {
		return nil, errors.New("not an audio file")
	}
	return p, nil
}

func (f *fakeReader) set(name string, p *FileInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos[name] = p
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
}

func newLibrary(t *testing.T) (string, *fakeReader) {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "Herbert", "Dune.m4b"))
	writeFile(t, filepath.Join(root, "Herbert", "cover.jpg"))
	writeFile(t, filepath.Join(root, "loose.mp3"))
	writeFile(t, filepath.Join(root, "broken.flac"))
	writeFile(t, filepath.Join(root, ".trash", "old.m4b"))

	reader := &fakeReader{infos: map[string]*FileInfo{
		"Dune.m4b": {
			Title:    "Dune",
			Duration: time.Hour,
			Chapters: []domain.Chapter{
				{Number: 9, Title: "Book Two", StartOffsetSeconds: 1800},
				{Number: 3, Title: "Track 1", StartOffsetSeconds: 0},
				{Number: 4, Title: "duplicate", StartOffsetSeconds: 1800},
				{Number: 5, Title: "Bogus", StartOffsetSeconds: 9000},
			},
		},
		"loose.mp3": {Duration: 90 * time.Second},
		"old.m4b":   {Title: "Hidden", Duration: time.Minute},
	}}
	return root, reader
}

func TestScan(t *testing.T) {
	root, reader := newLibrary(t)
	c := New(root, reader, nil)

	result, err := c.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Total: 2, Added: 2, Failed: 1}, result)
	assert.Equal(t, 2, c.Len())

	tracks := c.List()
	require.Len(t, tracks, 2)
	assert.Equal(t, "Dune", tracks[0].Title)
	assert.Equal(t, "loose", tracks[1].Title, "title falls back to the file name")

	dune := tracks[0]
	assert.Equal(t, id.Stable(id.PrefixTrack, "Herbert/Dune.m4b"), dune.ID)
	assert.Equal(t, 3600.0, dune.TotalDurationSeconds)
	assert.True(t, strings.HasPrefix(dune.MediaURI, "file:///"))
	assert.Equal(t, []domain.Chapter{
		{Number: 1, Title: "Chapter 1", StartOffsetSeconds: 0},
		{Number: 2, Title: "Book Two", StartOffsetSeconds: 1800},
	}, dune.Chapters)

	assert.Empty(t, tracks[1].Chapters)
}

func TestList_TitleOrder(t *testing.T) {
	root := t.TempDir()
	reader := &fakeReader{infos: map[string]*FileInfo{}}
	for file, title := range map[string]string{
		"a.mp3": "zebra crossing",
		"b.mp3": "Étude in Black",
		"c.mp3": "apple pie",
		"d.mp3": "Part 10",
		"e.mp3": "Part 2",
	} {
		writeFile(t, filepath.Join(root, file))
		reader.set(file, &FileInfo{Title: title, Duration: time.Minute})
	}

	c := New(root, reader, nil)
	_, err := c.Scan(context.Background())
	require.NoError(t, err)

	titles := make([]string, 0, c.Len())
	for _, track := range c.List() {
		titles = append(titles, track.Title)
	}
	assert.Equal(t, []string{"apple pie", "Étude in Black", "Part 2", "Part 10", "zebra crossing"}, titles)
}

func TestScan_Rescan(t *testing.T) {
	root, reader := newLibrary(t)
	c := New(root, reader, nil)
	ctx := context.Background()

	_, err := c.Scan(ctx)
	require.NoError(t, err)
	before, err := c.LookupURI(FileURI(filepath.Join(root, "Herbert", "Dune.m4b")))
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "loose.mp3")))
	writeFile(t, filepath.Join(root, "new.opus"))
	reader.set("new.opus", &FileInfo{Title: "New", Duration: time.Minute})

	result, err := c.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 2, result.Total)

	after, err := c.Get(before.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "IDs are stable across scans")
}

func TestScan_MissingRoot(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "missing"), &fakeReader{}, nil)
	_, err := c.Scan(context.Background())
	assert.Error(t, err)
}

func TestScan_Cancelled(t *testing.T) {
	root, reader := newLibrary(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(root, reader, nil).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGet_ReturnsCopy(t *testing.T) {
	root, reader := newLibrary(t)
	c := New(root, reader, nil)
	_, err := c.Scan(context.Background())
	require.NoError(t, err)

	trackID := id.Stable(id.PrefixTrack, "Herbert/Dune.m4b")
	t1, err := c.Get(trackID)
	require.NoError(t, err)
	t1.Chapters[0].Title = "changed"

	t2, err := c.Get(trackID)
	require.NoError(t, err)
	assert.Equal(t, "Chapter 1", t2.Chapters[0].Title)

	_, err = c.Get("trk-nope")
	assert.ErrorIs(t, err, ErrUnknownTrack)
	_, err = c.LookupURI("file:///nope.m4b")
	assert.ErrorIs(t, err, ErrUnknownTrack)
}

func TestResolve(t *testing.T) {
	root, reader := newLibrary(t)
	c := New(root, reader, nil)
	ctx := context.Background()
	_, err := c.Scan(ctx)
	require.NoError(t, err)

	d, err := c.Resolve(ctx, FileURI(filepath.Join(root, "loose.mp3")))
	require.NoError(t, err)
	assert.Equal(t, 90.0, d)

	// Not cataloged (hidden directory) but readable.
	d, err = c.Resolve(ctx, FileURI(filepath.Join(root, ".trash", "old.m4b")))
	require.NoError(t, err)
	assert.Equal(t, 60.0, d)

	_, err = c.Resolve(ctx, FileURI(filepath.Join(root, "broken.flac")))
	assert.Error(t, err)
	_, err = c.Resolve(ctx, "https://example.com/book.mp3")
	assert.ErrorIs(t, err, ErrUnknownTrack)
}

func TestIsAudioFile(t *testing.T) {
	assert.True(t, IsAudioFile("/a/b.M4B"))
	assert.True(t, IsAudioFile("b.opus"))
	assert.False(t, IsAudioFile("cover.jpg"))
	assert.False(t, IsAudioFile("noext"))
}

func TestAudiometaReader_RejectsNonAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.m4b")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an mp4 container"), 0o644))

	_, err := AudiometaReader{}.ReadFile(context.Background(), path)
	assert.Error(t, err)
}

func TestWatch_RescansOnChange(t *testing.T) {
	root, reader := newLibrary(t)
	c := New(root, reader, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := c.Scan(ctx)
	require.NoError(t, err)

	scans := make(chan ScanResult, 4)
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, 50*time.Millisecond, func(r ScanResult) { scans <- r }) }()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	reader.set("added.m4a", &FileInfo{Title: "Added", Duration: time.Minute})
	writeFile(t, filepath.Join(root, "added.m4a"))

	select {
	case r := <-scans:
		assert.Equal(t, 1, r.Added)
	case <-time.After(3 * time.Second):
		t.Fatal("no rescan after file change")
	}
	assert.Equal(t, 3, c.Len())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
