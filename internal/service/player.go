// Package service holds the application operations that sit above the
// player: resolving tracks from the catalog and resuming saved progress.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/listenupapp/listenup-player/internal/catalog"
	"github.com/listenupapp/listenup-player/internal/domain"
	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/player"
	"github.com/listenupapp/listenup-player/internal/store"
	"github.com/listenupapp/listenup-player/internal/validation"
)

// TrackSource looks up playable tracks.
type TrackSource interface {
	Get(trackID string) (*domain.Track, error)
	List() []domain.Track
}

// ProgressRepository reads and clears saved progress.
type ProgressRepository interface {
	GetProgress(ctx context.Context, userID, trackID string) (*domain.ProgressRecord, error)
	ListProgress(ctx context.Context, userID string) ([]*domain.ProgressRecord, error)
	DeleteProgress(ctx context.Context, userID, trackID string) error
}

// PlayerService loads tracks into the shared player at their saved resume point.
type PlayerService struct {
	player    *player.Player
	tracks    TrackSource
	progress  ProgressRepository
	identity  player.Identity
	validator *validation.Validator
	logger    *slog.Logger
}

// NewPlayerService creates a player service. tracks and progress may be nil.
func NewPlayerService(
	p *player.Player,
	tracks TrackSource,
	progress ProgressRepository,
	identity player.Identity,
	validator *validation.Validator,
	logger *slog.Logger,
) *PlayerService {
	if identity == nil {
		identity = player.StaticIdentity("")
	}
	if validator == nil {
		validator = validation.New()
	}
	return &PlayerService{
		player:    p,
		tracks:    tracks,
		progress:  progress,
		identity:  identity,
		validator: validator,
		logger:    logger,
	}
}

// Player returns the underlying player for transport commands.
func (s *PlayerService) Player() *player.Player {
	return s.player
}

// LoadTrackResuming loads track at the listener's saved position. Finished
// tracks start over. A failed progress lookup is logged and playback starts
// from the beginning.
func (s *PlayerService) LoadTrackResuming(ctx context.Context, track *domain.Track) (*domain.Resume, error) {
	if err := s.validator.ValidateTrack(track); err != nil {
		return nil, err
	}

	resume := s.resumePoint(ctx, track.ID)
	if err := s.player.LoadTrack(ctx, track, resume); err != nil {
		return nil, err
	}
	return resume, nil
}

// LoadTrackByID loads a catalog track at its saved position.
func (s *PlayerService) LoadTrackByID(ctx context.Context, trackID string) (*domain.Resume, error) {
	if s.tracks == nil {
		return nil, domainerrors.NotFoundf("track %s not found", trackID)
	}
	track, err := s.tracks.Get(trackID)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownTrack) {
			return nil, domainerrors.NotFoundf("track %s not found", trackID)
		}
		return nil, err
	}
	return s.LoadTrackResuming(ctx, track)
}

func (s *PlayerService) resumePoint(ctx context.Context, trackID string) *domain.Resume {
	userID, ok := s.identity.CurrentUserID(ctx)
	if !ok || s.progress == nil {
		return nil
	}

	record, err := s.progress.GetProgress(ctx, userID, trackID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		s.logger.Warn("progress lookup failed, starting from the beginning",
			"track_id", trackID,
			"error", err,
		)
		return nil
	}

	resume := record.ResumePoint()
	if resume == nil {
		s.logger.Debug("track finished previously, starting over", "track_id", trackID)
	}
	return resume
}

// ListTracks returns the catalog.
func (s *PlayerService) ListTracks() []domain.Track {
	if s.tracks == nil {
		return []domain.Track{}
	}
	return s.tracks.List()
}

// GetProgress returns the listener's saved progress for a track.
func (s *PlayerService) GetProgress(ctx context.Context, trackID string) (*domain.ProgressRecord, error) {
	userID, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	record, err := s.progress.GetProgress(ctx, userID, trackID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("no progress for track %s", trackID)
	}
	return record, err
}

// ListProgress returns the listener's saved progress, most recent first.
func (s *PlayerService) ListProgress(ctx context.Context) ([]*domain.ProgressRecord, error) {
	userID, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.progress.ListProgress(ctx, userID)
}

// ResetProgress forgets the listener's saved position for a track, so the
// next load starts from the beginning. Resetting a track with no saved
// progress is not an error.
func (s *PlayerService) ResetProgress(ctx context.Context, trackID string) error {
	userID, err := s.requireUser(ctx)
	if err != nil {
		return err
	}
	if trackID == "" {
		return domainerrors.Validation("track ID is required")
	}

	if err := s.progress.DeleteProgress(ctx, userID, trackID); err != nil {
		return err
	}
	s.logger.Info("progress reset", "track_id", trackID)
	return nil
}

func (s *PlayerService) requireUser(ctx context.Context) (string, error) {
	userID, ok := s.identity.CurrentUserID(ctx)
	if !ok {
		return "", domainerrors.Validation("no listener configured, progress is not tracked")
	}
	if s.progress == nil {
		return "", domainerrors.NotFound("progress storage is not configured")
	}
	return userID, nil
}
