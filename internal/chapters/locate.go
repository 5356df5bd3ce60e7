// Package chapters maps playback positions onto a track's chapter markers
// and cleans up chapter titles for display.
package chapters

import (
	"fmt"
	"sort"

	"github.com/listenupapp/listenup-player/internal/domain"
)

// FirstChapter is reported for tracks without markers and for positions
// before the first marker.
const FirstChapter = 1

// Locate returns the number of the chapter containing position: the last
// chapter whose start offset is <= position. Chapters must be ordered by
// start offset (see Validate).
func Locate(chapters []domain.Chapter, positionSeconds float64) int {
	if len(chapters) == 0 {
		return FirstChapter
	}

	// First index whose start is past the position; the chapter before it wins.
	i := sort.Search(len(chapters), func(i int) bool {
		return chapters[i].StartOffsetSeconds > positionSeconds
	})
	if i == 0 {
		return FirstChapter
	}
	return chapters[i-1].Number
}

// Validate checks chapter markers: numbers >= 1 and strictly increasing
// start offsets, none of them past duration when the duration is known.
func Validate(chapters []domain.Chapter, durationSeconds float64) error {
	for i, c := range chapters {
		if c.Number < 1 {
			return fmt.Errorf("chapter %d: number must be >= 1", i)
		}
		if c.StartOffsetSeconds < 0 {
			return fmt.Errorf("chapter %d: negative start offset", c.Number)
		}
		if durationSeconds > 0 && c.StartOffsetSeconds > durationSeconds {
			return fmt.Errorf("chapter %d: starts at %.3fs past duration %.3fs", c.Number, c.StartOffsetSeconds, durationSeconds)
		}
		if i > 0 && c.StartOffsetSeconds <= chapters[i-1].StartOffsetSeconds {
			return fmt.Errorf("chapter %d: start offset %.3fs not after previous chapter", c.Number, c.StartOffsetSeconds)
		}
	}
	return nil
}

// Normalize sorts chapters by start offset and renumbers them from 1.
// Markers sharing a start offset keep only the first.
func Normalize(chapters []domain.Chapter) []domain.Chapter {
	if len(chapters) == 0 {
		return nil
	}

	out := make([]domain.Chapter, len(chapters))
	copy(out, chapters)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartOffsetSeconds < out[j].StartOffsetSeconds
	})

	deduped := out[:0]
	for _, c := range out {
		if len(deduped) > 0 && c.StartOffsetSeconds == deduped[len(deduped)-1].StartOffsetSeconds {
			continue
		}
		c.StartOffsetSeconds = max(c.StartOffsetSeconds, 0)
		deduped = append(deduped, c)
	}
	for i := range deduped {
		deduped[i].Number = i + 1
	}
	return deduped
}
