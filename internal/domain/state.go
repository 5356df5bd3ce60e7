package domain

import "time"

// Transport is the playback lifecycle state.
type Transport string

// Transport states.
const (
	TransportIdle    Transport = "idle"
	TransportLoading Transport = "loading"
	TransportPlaying Transport = "playing"
	TransportPaused  Transport = "paused"
	TransportEnded   Transport = "ended"
)

// String returns the transport name.
func (t Transport) String() string {
	return string(t)
}

// HasMedia reports whether a track is attached in this state.
func (t Transport) HasMedia() bool {
	return t != TransportIdle
}

// Started reports whether the media reached ready at least once,
// i.e. the transport is Playing, Paused or Ended.
func (t Transport) Started() bool {
	return t == TransportPlaying || t == TransportPaused || t == TransportEnded
}

// PlayerError is the last recoverable error surfaced to the UI.
type PlayerError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// PlayerState is a snapshot of the player.
//
// Invariants:
//   - Transport == Playing implies Track != nil.
//   - 0 <= PositionSeconds <= DurationSeconds once DurationSeconds > 0.
//   - CurrentChapterNumber is derived from PositionSeconds and Track.Chapters.
type PlayerState struct {
	Track                *Track       `json:"track"`
	Transport            Transport    `json:"transport"`
	PositionSeconds      float64      `json:"position_seconds"`
	DurationSeconds      float64      `json:"duration_seconds"`
	Volume               float64      `json:"volume"`
	Muted                bool         `json:"muted"`
	Rate                 float64      `json:"rate"`
	CurrentChapterNumber int          `json:"current_chapter_number"`
	PanelVisible         bool         `json:"panel_visible"`
	LastError            *PlayerError `json:"last_error,omitempty"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// TrackID returns the loaded track's ID, or "" when idle.
func (s PlayerState) TrackID() string {
	if s.Track == nil {
		return ""
	}
	return s.Track.ID
}

// RemainingSeconds is the time left before the end of the track.
// Zero while the duration is unknown.
func (s PlayerState) RemainingSeconds() float64 {
	if s.DurationSeconds <= 0 {
		return 0
	}
	return max(s.DurationSeconds-s.PositionSeconds, 0)
}
