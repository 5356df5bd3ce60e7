// Package domain holds the player's data model: tracks with chapter markers,
// the observable player state, and persisted progress records.
package domain

// Chapter is a chapter marker within a track.
// Chapters of a track are ordered by strictly increasing StartOffsetSeconds.
type Chapter struct {
	Number             int     `json:"number" validate:"gte=1"`
	Title              string  `json:"title"`
	StartOffsetSeconds float64 `json:"start_offset_seconds" validate:"gte=0"`
}

// Track is one playable audiobook resource. Immutable once loaded.
type Track struct {
	ID       string `json:"id" validate:"required"`
	Title    string `json:"title"`
	MediaURI string `json:"media_uri" validate:"required"`
	// TotalDurationSeconds is 0 until metadata resolves.
	TotalDurationSeconds float64   `json:"total_duration_seconds" validate:"gte=0"`
	Chapters             []Chapter `json:"chapters,omitempty" validate:"dive"`
}

// Chapter finds a chapter by its number.
func (t *Track) Chapter(number int) (Chapter, bool) {
	for _, c := range t.Chapters {
		if c.Number == number {
			return c, true
		}
	}
	return Chapter{}, false
}

// HasChapters reports whether the track carries chapter markers.
func (t *Track) HasChapters() bool {
	return len(t.Chapters) > 0
}
