// Package store persists playback progress records.
//
// Three backends implement ProgressStore: the embedded Badger store in this
// package, SQLite (store/sqlite) and Redis (store/redisstore). All of them
// apply last-write-wins on UpdatedAt, so a stale write arriving late never
// rolls a listener's position back.
package store

import (
	"context"
	"strings"

	"github.com/listenupapp/listenup-player/internal/domain"
)

// ProgressStore reads and writes progress records keyed by (user, track).
type ProgressStore interface {
	// GetProgress returns ErrProgressNotFound when no record exists.
	GetProgress(ctx context.Context, userID, trackID string) (*domain.ProgressRecord, error)
	// UpsertProgress stores the record unless a newer one is already present.
	UpsertProgress(ctx context.Context, record *domain.ProgressRecord) error
	// ListProgress returns all records for a user, most recently updated first.
	ListProgress(ctx context.Context, userID string) ([]*domain.ProgressRecord, error)
	// DeleteProgress removes a record. Deleting a missing record is not an error.
	DeleteProgress(ctx context.Context, userID, trackID string) error
	Close() error
}

// CheckRecord validates the identifying fields of a record before a write.
func CheckRecord(r *domain.ProgressRecord) error {
	if r == nil {
		return ErrInvalidInput.WithMessage("progress record is nil")
	}
	if r.UserID == "" || r.TrackID == "" {
		return ErrInvalidInput.WithMessage("progress record needs user and track IDs")
	}
	if strings.Contains(r.UserID, ":") {
		return ErrInvalidInput.WithMessage("user ID must not contain ':'")
	}
	if r.PositionSeconds < 0 {
		return ErrInvalidInput.WithMessage("position must not be negative")
	}
	if r.UpdatedAt.IsZero() {
		return ErrInvalidInput.WithMessage("progress record needs an update time")
	}
	return nil
}
