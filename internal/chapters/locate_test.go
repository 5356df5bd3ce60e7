package chapters

import (
	"testing"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeChapters() []domain.Chapter {
	return []domain.Chapter{
		{Number: 1, Title: "Opening", StartOffsetSeconds: 0},
		{Number: 2, Title: "Middle", StartOffsetSeconds: 600},
		{Number: 3, Title: "Closing", StartOffsetSeconds: 1800},
	}
}

func TestLocate(t *testing.T) {
	chapters := threeChapters()

	tests := []struct {
		name     string
		position float64
		want     int
	}{
		{"start", 0, 1},
		{"inside first", 599.9, 1},
		{"exactly at boundary", 600, 2},
		{"inside second", 1200, 2},
		{"last chapter", 1800, 3},
		{"past last marker", 99999, 3},
		{"negative position", -5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Locate(chapters, tt.position))
		})
	}
}

func TestLocate_NoChapters(t *testing.T) {
	assert.Equal(t, FirstChapter, Locate(nil, 1234))
}

func TestLocate_FirstMarkerAfterZero(t *testing.T) {
	chapters := []domain.Chapter{
		{Number: 1, StartOffsetSeconds: 30},
		{Number: 2, StartOffsetSeconds: 90},
	}
	assert.Equal(t, 1, Locate(chapters, 10))
	assert.Equal(t, 2, Locate(chapters, 90))
}

func TestLocate_MatchesLinearScan(t *testing.T) {
	chapters := threeChapters()
	for pos := 0.0; pos < 2500; pos += 13.7 {
		want := 1
		for _, c := range chapters {
			if c.StartOffsetSeconds <= pos {
				want = c.Number
			}
		}
		require.Equal(t, want, Locate(chapters, pos), "position %v", pos)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(threeChapters(), 3600))
	assert.NoError(t, Validate(nil, 0))

	unordered := threeChapters()
	unordered[2].StartOffsetSeconds = 600
	assert.Error(t, Validate(unordered, 3600))

	badNumber := threeChapters()
	badNumber[0].Number = 0
	assert.Error(t, Validate(badNumber, 3600))

	assert.Error(t, Validate(threeChapters(), 1000), "chapter past duration")
	assert.NoError(t, Validate(threeChapters(), 0), "unknown duration skips the bound")
}

func TestNormalize(t *testing.T) {
	in := []domain.Chapter{
		{Number: 9, Title: "c", StartOffsetSeconds: 1800},
		{Number: 4, Title: "a", StartOffsetSeconds: 0},
		{Number: 7, Title: "b", StartOffsetSeconds: 600},
		{Number: 8, Title: "dup", StartOffsetSeconds: 600},
	}

	out := Normalize(in)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].Title, out[1].Title, out[2].Title})
	for i, c := range out {
		assert.Equal(t, i+1, c.Number)
	}
	assert.NoError(t, Validate(out, 0))
	assert.Equal(t, 9, in[0].Number, "input is not modified")
	assert.Nil(t, Normalize(nil))
}
