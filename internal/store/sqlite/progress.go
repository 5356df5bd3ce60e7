package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/store"
)

var _ store.ProgressStore = (*Store)(nil)

const progressColumns = `user_id, track_id, chapter_number, position_seconds, completed, updated_at`

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProgress(row scanner) (*domain.ProgressRecord, error) {
	var (
		r         domain.ProgressRecord
		completed int
		updatedAt string
	)
	if err := row.Scan(&r.UserID, &r.TrackID, &r.ChapterNumber, &r.PositionSeconds, &completed, &updatedAt); err != nil {
		return nil, err
	}
	t, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	r.Completed = completed != 0
	r.UpdatedAt = t
	return &r, nil
}

// GetProgress retrieves playback progress for a user+track.
// Returns store.ErrProgressNotFound if no record exists.
func (s *Store) GetProgress(ctx context.Context, userID, trackID string) (*domain.ProgressRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM progress WHERE user_id = ? AND track_id = ?`,
		userID, trackID)

	r, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrProgressNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UpsertProgress inserts or replaces the record unless the stored one is newer.
// The comparison happens inside the statement so concurrent writers cannot interleave.
func (s *Store) UpsertProgress(ctx context.Context, r *domain.ProgressRecord) error {
	if err := store.CheckRecord(r); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO progress (`+progressColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, track_id) DO UPDATE SET
			chapter_number   = excluded.chapter_number,
			position_seconds = excluded.position_seconds,
			completed        = excluded.completed,
			updated_at       = excluded.updated_at
		WHERE excluded.updated_at >= progress.updated_at`,
		r.UserID,
		r.TrackID,
		r.ChapterNumber,
		r.PositionSeconds,
		boolToInt(r.Completed),
		formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 && s.logger != nil {
		s.logger.Debug("skipping stale progress write", "track_id", r.TrackID, "incoming_at", r.UpdatedAt)
	}
	return nil
}

// ListProgress returns a user's records, most recently updated first.
func (s *Store) ListProgress(ctx context.Context, userID string) ([]*domain.ProgressRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM progress WHERE user_id = ? ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.ProgressRecord
	for rows.Next() {
		r, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteProgress removes a record.
func (s *Store) DeleteProgress(ctx context.Context, userID, trackID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM progress WHERE user_id = ? AND track_id = ?`, userID, trackID)
	return err
}
