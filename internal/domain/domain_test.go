package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		position float64
		want     bool
	}{
		{"start of track", 3600, 0, false},
		{"just outside tolerance", 3600, 3589.9, false},
		{"exactly at tolerance", 3600, 3590, true},
		{"inside tolerance", 3600, 3595, true},
		{"at the end", 3600, 3600, true},
		{"short track entirely inside tolerance", 8, 0, true},
		{"unknown duration", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsComplete(tt.duration, tt.position, DefaultCompletionToleranceSeconds))
		})
	}
}

func TestIsComplete_Property(t *testing.T) {
	for duration := 1.0; duration <= 200; duration += 7.5 {
		for position := 0.0; position <= duration; position += 0.5 {
			want := duration-position <= 10
			assert.Equal(t, want, IsComplete(duration, position, 10), "duration=%v position=%v", duration, position)
		}
	}
}

func TestSupersedes(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	older := &ProgressRecord{UserID: "u", TrackID: "t", PositionSeconds: 100, UpdatedAt: now}
	newer := &ProgressRecord{UserID: "u", TrackID: "t", PositionSeconds: 50, UpdatedAt: now.Add(time.Second)}

	assert.True(t, newer.Supersedes(older))
	assert.False(t, older.Supersedes(newer))
	assert.True(t, older.Supersedes(older), "replaying the same checkpoint is allowed")
	assert.True(t, older.Supersedes(nil))
}

func TestProgressID(t *testing.T) {
	r := &ProgressRecord{UserID: "user-1", TrackID: "trk-9"}
	assert.Equal(t, "user-1:trk-9", r.ID())
}

func TestResumePoint(t *testing.T) {
	var none *ProgressRecord
	assert.Nil(t, none.ResumePoint())

	done := &ProgressRecord{ChapterNumber: 3, PositionSeconds: 3599, Completed: true}
	assert.Nil(t, done.ResumePoint())

	partial := &ProgressRecord{ChapterNumber: 2, PositionSeconds: 1250}
	resume := partial.ResumePoint()
	require.NotNil(t, resume)
	assert.Equal(t, 2, resume.ChapterNumber)
	assert.Equal(t, 1250.0, resume.PositionSeconds)
}

func TestTrackChapter(t *testing.T) {
	track := &Track{ID: "a", Chapters: []Chapter{
		{Number: 1, StartOffsetSeconds: 0},
		{Number: 2, StartOffsetSeconds: 1200},
	}}

	c, ok := track.Chapter(2)
	require.True(t, ok)
	assert.Equal(t, 1200.0, c.StartOffsetSeconds)

	_, ok = track.Chapter(7)
	assert.False(t, ok)
	assert.True(t, track.HasChapters())
}

func TestPlayerState_Helpers(t *testing.T) {
	var s PlayerState
	assert.Equal(t, "", s.TrackID())
	assert.Equal(t, 0.0, s.RemainingSeconds())

	s = PlayerState{Track: &Track{ID: "a"}, DurationSeconds: 100, PositionSeconds: 40}
	assert.Equal(t, "a", s.TrackID())
	assert.Equal(t, 60.0, s.RemainingSeconds())
}

func TestTransport(t *testing.T) {
	assert.False(t, TransportIdle.HasMedia())
	assert.True(t, TransportLoading.HasMedia())
	assert.False(t, TransportLoading.Started())
	for _, tr := range []Transport{TransportPlaying, TransportPaused, TransportEnded} {
		assert.True(t, tr.Started(), tr.String())
	}
}
