package domain

import "time"

// DefaultCompletionToleranceSeconds is the trailing window counted as finished,
// so tracks whose audio ends slightly before the nominal duration still complete.
const DefaultCompletionToleranceSeconds = 10.0

// ProgressRecord is the persisted resume point for one (user, track) pair.
// Stores upsert it with last-write-wins semantics on UpdatedAt.
type ProgressRecord struct {
	UserID          string    `json:"user_id"`
	TrackID         string    `json:"track_id"`
	ChapterNumber   int       `json:"chapter_number"`
	PositionSeconds float64   `json:"position_seconds"`
	Completed       bool      `json:"completed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProgressID generates composite key: "userID:trackID".
func ProgressID(userID, trackID string) string {
	return userID + ":" + trackID
}

// ID returns the record's composite key.
func (r *ProgressRecord) ID() string {
	return ProgressID(r.UserID, r.TrackID)
}

// Supersedes reports whether r should replace existing in a store.
// Equal timestamps replace, so replaying the same checkpoint is harmless.
func (r *ProgressRecord) Supersedes(existing *ProgressRecord) bool {
	if existing == nil {
		return true
	}
	return !r.UpdatedAt.Before(existing.UpdatedAt)
}

// IsComplete reports whether position lies within tolerance of the end.
// An unknown duration (<= 0) is never complete.
func IsComplete(durationSeconds, positionSeconds, toleranceSeconds float64) bool {
	if durationSeconds <= 0 {
		return false
	}
	return durationSeconds-positionSeconds <= toleranceSeconds
}

// Resume is where a freshly loaded track should start.
type Resume struct {
	ChapterNumber   int     `json:"chapter_number"`
	PositionSeconds float64 `json:"position_seconds"`
}

// ResumePoint converts a saved record into a Resume.
// Completed records return nil so the track starts over.
func (r *ProgressRecord) ResumePoint() *Resume {
	if r == nil || r.Completed {
		return nil
	}
	return &Resume{ChapterNumber: r.ChapterNumber, PositionSeconds: r.PositionSeconds}
}
