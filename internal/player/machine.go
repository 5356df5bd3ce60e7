package player

import (
	"context"
	"errors"
	"math"

	"github.com/samber/lo"

	"github.com/listenupapp/listenup-player/internal/chapters"
	"github.com/listenupapp/listenup-player/internal/domain"
	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/media"
)

// seekLandingWindow is how far past a seek target the first time update may
// land and still count as the primitive having applied the seek.
const seekLandingWindow = 2.0

// maxStaleTicks bounds how many off-target updates are discarded after a
// seek before the primitive's position is trusted again.
const maxStaleTicks = 8

func clampVolume(v float64) float64 {
	return lo.Clamp(v, 0, 1)
}

func clampRate(r float64) float64 {
	return lo.Clamp(r, MinRate, MaxRate)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// clampPosition keeps t within [0, duration]. There is no upper bound while
// the duration is unknown.
func (p *Player) clampPosition(t float64) float64 {
	t = max(t, 0)
	if p.state.DurationSeconds > 0 {
		t = min(t, p.state.DurationSeconds)
	}
	return t
}

func (p *Player) deriveChapter() {
	p.state.CurrentChapterNumber = chapters.Locate(p.state.Track.Chapters, p.state.PositionSeconds)
}

func (p *Player) recordError(err *domainerrors.Error) {
	p.state.LastError = &domain.PlayerError{
		Code:    string(err.Code),
		Message: err.Error(),
		At:      p.clock.Now(),
	}
}

func checkTrack(track *domain.Track) error {
	if track == nil {
		return domainerrors.Validation("track is required")
	}
	if track.ID == "" || track.MediaURI == "" {
		return domainerrors.Validation("track needs an ID and a media URI")
	}
	if !finite(track.TotalDurationSeconds) || track.TotalDurationSeconds < 0 {
		return domainerrors.Validation("track duration must be a non-negative number")
	}
	if err := chapters.Validate(track.Chapters, track.TotalDurationSeconds); err != nil {
		return domainerrors.Validationf("invalid chapters: %v", err)
	}
	return nil
}

func cloneTrack(t *domain.Track) *domain.Track {
	c := *t
	c.Chapters = append([]domain.Chapter(nil), t.Chapters...)
	return &c
}

// resetTrack returns to Idle, discarding every track-scoped field.
// Volume, mute and rate are player preferences and survive.
func (p *Player) resetTrack(panelVisible bool) {
	p.state = domain.PlayerState{
		Transport:    domain.TransportIdle,
		Volume:       p.state.Volume,
		Muted:        p.state.Muted,
		Rate:         p.state.Rate,
		PanelVisible: panelVisible,
		LastError:    p.state.LastError,
	}
	p.autoplay = false
	p.pendingSeek = nil
	p.staleTicks = 0
}

func (p *Player) loadTrack(ctx context.Context, track *domain.Track, resume *domain.Resume) error {
	if err := checkTrack(track); err != nil {
		return err
	}

	p.retireScope("track replaced")

	t := cloneTrack(track)
	position := 0.0
	chapter := chapters.FirstChapter
	if resume != nil {
		if finite(resume.PositionSeconds) {
			position = max(resume.PositionSeconds, 0)
		}
		if resume.ChapterNumber >= 1 {
			chapter = resume.ChapterNumber
		}
	}

	p.state = domain.PlayerState{
		Track:                t,
		Transport:            domain.TransportLoading,
		PositionSeconds:      position,
		Volume:               p.state.Volume,
		Muted:                p.state.Muted,
		Rate:                 p.state.Rate,
		CurrentChapterNumber: chapter,
		PanelVisible:         true,
	}
	p.autoplay = true
	p.pendingSeek = nil
	p.staleTicks = 0

	if err := p.acquireScope(ctx, t); err != nil {
		perr := domainerrors.MediaLoad(t.MediaURI, err)
		p.resetTrack(true)
		p.recordError(perr)
		p.logger.Warn("track failed to load", "track_id", t.ID, "error", err)
		return perr
	}

	p.logger.Info("track loading",
		"track_id", t.ID,
		"position", position,
		"chapter", chapter,
		"generation", p.scope.gen,
	)
	return nil
}

func (p *Player) onReady(durationSeconds float64) {
	if p.state.Transport != domain.TransportLoading {
		return
	}

	if !finite(durationSeconds) || durationSeconds <= 0 {
		durationSeconds = p.state.Track.TotalDurationSeconds
	}
	p.state.DurationSeconds = durationSeconds
	p.state.PositionSeconds = p.clampPosition(p.state.PositionSeconds)
	p.deriveChapter()

	if p.state.PositionSeconds > 0 {
		p.relocate(p.state.PositionSeconds)
	}

	if !p.autoplay {
		p.state.Transport = domain.TransportPaused
		return
	}

	if err := p.startPlayback(false); err != nil && p.state.Transport == domain.TransportLoading {
		p.state.Transport = domain.TransportPaused
	}
}

// startPlayback asks the primitive to play. A policy refusal leaves the
// transport Paused with PlaybackBlocked recorded.
func (p *Player) startPlayback(userGesture bool) error {
	err := p.scope.prim.Play(userGesture)
	switch {
	case err == nil:
		p.state.Transport = domain.TransportPlaying
		p.state.LastError = nil
		if err := p.startCheckpoints(p.scope); err != nil {
			// Playback continues without periodic checkpoints.
			p.logger.Warn("checkpoint schedule not started", "track_id", p.state.TrackID(), "error", err)
		}
		return nil

	case errors.Is(err, media.ErrGestureRequired):
		p.state.Transport = domain.TransportPaused
		perr := domainerrors.PlaybackBlocked(err)
		p.recordError(perr)
		p.logger.Debug("playback blocked by autoplay policy", "track_id", p.state.TrackID(), "user_gesture", userGesture)
		return perr

	default:
		p.logger.Warn("primitive refused to play", "track_id", p.state.TrackID(), "error", err)
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "start playback")
	}
}

// relocate moves the primitive cursor and expects the next time update near t.
func (p *Player) relocate(t float64) {
	if err := p.scope.prim.Seek(t); err != nil {
		p.logger.Warn("primitive seek failed", "track_id", p.state.TrackID(), "position", t, "error", err)
		return
	}
	p.pendingSeek = &t
	p.staleTicks = 0
}

func (p *Player) onTimeUpdate(t float64) {
	if p.state.Transport != domain.TransportPlaying || !finite(t) {
		return
	}

	switch {
	case p.pendingSeek != nil:
		target := *p.pendingSeek
		if (t < target || t-target > seekLandingWindow) && p.staleTicks < maxStaleTicks {
			p.staleTicks++
			return
		}
		p.pendingSeek = nil
		p.staleTicks = 0
	case t < p.state.PositionSeconds:
		return
	}

	p.state.PositionSeconds = p.clampPosition(t)
	p.deriveChapter()
}

func (p *Player) onEnded(positionSeconds float64) {
	if p.state.Transport != domain.TransportPlaying {
		return
	}
	if p.state.DurationSeconds <= 0 && finite(positionSeconds) {
		p.state.DurationSeconds = max(positionSeconds, 0)
	}
	p.state.Transport = domain.TransportEnded
	p.state.PositionSeconds = p.state.DurationSeconds
	p.pendingSeek = nil
	p.deriveChapter()
	p.logger.Info("track ended", "track_id", p.state.TrackID())
}

func (p *Player) onMediaError(cause error) {
	if !p.state.Transport.HasMedia() {
		return
	}
	if cause == nil {
		cause = errors.New("unspecified media error")
	}

	track := p.state.Track
	perr := domainerrors.MediaLoad(track.MediaURI, cause)
	p.logger.Warn("media error, unloading track", "track_id", track.ID, "error", cause)

	p.releaseScope()
	p.resetTrack(p.state.PanelVisible)
	p.recordError(perr)
}

func (p *Player) play() error {
	switch p.state.Transport {
	case domain.TransportIdle:
		return domainerrors.ErrNoTrack
	case domain.TransportLoading:
		p.autoplay = true
		return nil
	case domain.TransportPlaying:
		return nil
	case domain.TransportEnded:
		p.state.PositionSeconds = 0
		p.deriveChapter()
		p.relocate(0)
		p.state.Transport = domain.TransportPaused
	}
	return p.startPlayback(true)
}

func (p *Player) pause() error {
	switch p.state.Transport {
	case domain.TransportLoading:
		p.autoplay = false
	case domain.TransportPlaying:
		if err := p.scope.prim.Pause(); err != nil {
			p.logger.Warn("primitive pause failed", "track_id", p.state.TrackID(), "error", err)
		}
		p.state.Transport = domain.TransportPaused
	}
	return nil
}

func (p *Player) seek(t float64) error {
	if !p.state.Transport.HasMedia() {
		return domainerrors.ErrNoTrack
	}
	if !finite(t) {
		return domainerrors.Validation("seek position must be a number")
	}

	t = p.clampPosition(t)
	p.state.PositionSeconds = t
	p.deriveChapter()

	// A loading primitive is relocated once it reports ready.
	if p.state.Transport == domain.TransportLoading {
		return nil
	}

	// Transport is unchanged; play from Ended restarts at zero.
	p.relocate(t)
	return nil
}

func (p *Player) skip(delta float64) error {
	if !p.state.Transport.HasMedia() {
		return domainerrors.ErrNoTrack
	}
	if !finite(delta) {
		return domainerrors.Validation("skip amount must be a number")
	}
	return p.seek(p.state.PositionSeconds + delta)
}

func (p *Player) goToChapter(number int) error {
	if !p.state.Transport.HasMedia() {
		return domainerrors.ErrNoTrack
	}
	if !p.state.Track.HasChapters() {
		return domainerrors.Validation("track has no chapters")
	}
	c, ok := p.state.Track.Chapter(number)
	if !ok {
		return domainerrors.Validationf("chapter %d does not exist", number)
	}
	// The media may be shorter than the catalog said; landing would clamp
	// into an earlier chapter.
	if d := p.state.DurationSeconds; d > 0 && c.StartOffsetSeconds > d {
		return domainerrors.Validationf("chapter %d starts past the end of the media", number)
	}

	if err := p.seek(c.StartOffsetSeconds); err != nil {
		return err
	}

	switch p.state.Transport {
	case domain.TransportLoading:
		p.autoplay = true
		return nil
	case domain.TransportPlaying:
		return nil
	default:
		return p.startPlayback(true)
	}
}

func (p *Player) setVolume(v float64) error {
	if !finite(v) {
		return domainerrors.Validation("volume must be a number")
	}
	p.state.Volume = clampVolume(v)
	p.forwardVolume()
	return nil
}

func (p *Player) toggleMute() error {
	p.state.Muted = !p.state.Muted
	p.forwardVolume()
	return nil
}

func (p *Player) forwardVolume() {
	if p.scope == nil {
		return
	}
	if err := p.scope.prim.SetVolume(p.state.Volume, p.state.Muted); err != nil {
		p.logger.Warn("primitive volume change failed", "error", err)
	}
}

func (p *Player) setRate(r float64) error {
	if !finite(r) || r <= 0 {
		return domainerrors.Validationf("rate must be greater than 0, got %v", r)
	}
	p.state.Rate = clampRate(r)
	if p.scope != nil {
		if err := p.scope.prim.SetRate(p.state.Rate); err != nil {
			p.logger.Warn("primitive rate change failed", "error", err)
		}
	}
	return nil
}

func (p *Player) close() error {
	p.retireScope("closed")
	p.state.LastError = nil
	p.resetTrack(false)
	return nil
}

func (p *Player) setPanel(visible bool) error {
	p.state.PanelVisible = visible
	return nil
}
