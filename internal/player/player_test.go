package player

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-player/internal/chapters"
	"github.com/listenupapp/listenup-player/internal/domain"
	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/media"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
	userID  = "user-1"
)

type harness struct {
	player *Player
	driver *fakeDriver
	store  *fakeStore
}

type option func(*Config, *harness, *Identity)

func withInterval(d time.Duration) option {
	return func(c *Config, _ *harness, _ *Identity) { c.CheckpointInterval = d }
}

func withTimeout(d time.Duration) option {
	return func(c *Config, _ *harness, _ *Identity) { c.CheckpointTimeout = d }
}

func withClock(clk clock.Clock) option {
	return func(c *Config, _ *harness, _ *Identity) { c.Clock = clk }
}

func anonymous() option {
	return func(_ *Config, _ *harness, id *Identity) { *id = StaticIdentity("") }
}

func blockedAutoplay() option {
	return func(_ *Config, h *harness, _ *Identity) { h.driver.blockPlay = true }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()

	h := &harness{driver: &fakeDriver{}, store: newFakeStore()}
	cfg := DefaultConfig()
	cfg.CheckpointInterval = time.Hour
	var identity Identity = StaticIdentity(userID)
	for _, opt := range opts {
		opt(&cfg, h, &identity)
	}

	h.player = New(cfg, h.driver, h.store, identity, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	go h.player.Run(ctx)
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), waitFor)
		defer done()
		_ = h.player.Shutdown(shutdownCtx)
		cancel()
	})
	return h
}

// bookTrack is scenario A: one hour, chapters at 0, 1200 and 2400.
func bookTrack() *domain.Track {
	return &domain.Track{
		ID:                   "trk-book",
		Title:                "The Long Walk",
		MediaURI:             "file:///books/long-walk.m4b",
		TotalDurationSeconds: 3600,
		Chapters: []domain.Chapter{
			{Number: 1, Title: "Departure", StartOffsetSeconds: 0},
			{Number: 2, Title: "The Road", StartOffsetSeconds: 1200},
			{Number: 3, Title: "Arrival", StartOffsetSeconds: 2400},
		},
	}
}

func otherTrack() *domain.Track {
	return &domain.Track{
		ID:                   "trk-other",
		MediaURI:             "file:///books/other.mp3",
		TotalDurationSeconds: 600,
	}
}

func (h *harness) waitState(t *testing.T, cond func(s domain.PlayerState) bool, msg string) domain.PlayerState {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.player.Snapshot()) }, waitFor, tick, msg)
	return h.player.Snapshot()
}

func (h *harness) waitTransport(t *testing.T, want domain.Transport) domain.PlayerState {
	t.Helper()
	return h.waitState(t, func(s domain.PlayerState) bool { return s.Transport == want }, "transport "+want.String())
}

// loadPlaying loads track, reports ready and waits for Playing.
func (h *harness) loadPlaying(t *testing.T, track *domain.Track, resume *domain.Resume) *fakePrimitive {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.player.LoadTrack(ctx, track, resume))
	prim := h.driver.last()
	require.NotNil(t, prim)
	prim.ready(track.TotalDurationSeconds)
	h.waitTransport(t, domain.TransportPlaying)
	return prim
}

func TestNew_InitialState(t *testing.T) {
	h := newHarness(t)
	s := h.player.Snapshot()

	assert.Equal(t, domain.TransportIdle, s.Transport)
	assert.Nil(t, s.Track)
	assert.Equal(t, 1.0, s.Volume)
	assert.Equal(t, 1.0, s.Rate)
	assert.False(t, s.PanelVisible)
}

func TestLoadTrack_LoadingThenPlaying(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.player.LoadTrack(ctx, bookTrack(), nil))

	s := h.player.Snapshot()
	assert.Equal(t, domain.TransportLoading, s.Transport)
	assert.Equal(t, "trk-book", s.TrackID())
	assert.Equal(t, 0.0, s.PositionSeconds)
	assert.Equal(t, 1, s.CurrentChapterNumber)
	assert.True(t, s.PanelVisible, "loading a track opens the panel")
	assert.Equal(t, 0.0, s.DurationSeconds, "duration unknown until ready")

	prim := h.driver.last()
	prim.ready(3600)

	s = h.waitTransport(t, domain.TransportPlaying)
	assert.Equal(t, 3600.0, s.DurationSeconds)
	assert.Equal(t, []bool{false}, prim.playCalls(), "autoplay is not a user gesture")
}

func TestLoadTrack_ResumeSeedsPositionAndChapter(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.player.LoadTrack(context.Background(), bookTrack(), &domain.Resume{ChapterNumber: 2, PositionSeconds: 1250}))

	s := h.player.Snapshot()
	assert.Equal(t, domain.TransportLoading, s.Transport)
	assert.Equal(t, 1250.0, s.PositionSeconds)
	assert.Equal(t, 2, s.CurrentChapterNumber)

	prim := h.driver.last()
	prim.ready(3600)
	h.waitTransport(t, domain.TransportPlaying)
	assert.Equal(t, []float64{1250}, prim.seekCalls(), "primitive is moved to the resume point on ready")
}

func TestLoadTrack_ResumePastEndIsClamped(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.player.LoadTrack(context.Background(), otherTrack(), &domain.Resume{PositionSeconds: 9000}))
	assert.Equal(t, 9000.0, h.player.Snapshot().PositionSeconds, "no upper clamp before the duration is known")

	h.driver.last().ready(600)
	s := h.waitState(t, func(s domain.PlayerState) bool { return s.DurationSeconds == 600 }, "ready")
	assert.Equal(t, 600.0, s.PositionSeconds)
}

func TestLoadTrack_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.player.LoadTrack(ctx, nil, nil), domainerrors.ErrValidation)

	noURI := bookTrack()
	noURI.MediaURI = ""
	assert.ErrorIs(t, h.player.LoadTrack(ctx, noURI, nil), domainerrors.ErrValidation)

	unordered := bookTrack()
	unordered.Chapters[2].StartOffsetSeconds = 100
	assert.ErrorIs(t, h.player.LoadTrack(ctx, unordered, nil), domainerrors.ErrValidation)

	assert.Equal(t, 0, h.driver.count())
	assert.Equal(t, domain.TransportIdle, h.player.Snapshot().Transport)
}

func TestLoadTrack_OpenFailure(t *testing.T) {
	h := newHarness(t)
	h.driver.openErr = assert.AnError

	err := h.player.LoadTrack(context.Background(), bookTrack(), nil)
	assert.ErrorIs(t, err, domainerrors.ErrMediaLoad)

	s := h.player.Snapshot()
	assert.Equal(t, domain.TransportIdle, s.Transport)
	assert.Nil(t, s.Track)
	require.NotNil(t, s.LastError)
	assert.Equal(t, string(domainerrors.CodeMediaLoad), s.LastError.Code)
}

func TestLoadTrack_TrackIsCopied(t *testing.T) {
	h := newHarness(t)
	track := bookTrack()
	require.NoError(t, h.player.LoadTrack(context.Background(), track, nil))

	track.Chapters[0].Title = "mutated"
	assert.Equal(t, "Departure", h.player.Snapshot().Track.Chapters[0].Title)
}

func TestScenarioA(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.loadPlaying(t, bookTrack(), nil)

	require.NoError(t, h.player.Seek(ctx, 1250))
	s := h.player.Snapshot()
	assert.Equal(t, 1250.0, s.PositionSeconds)
	assert.Equal(t, 2, s.CurrentChapterNumber)

	require.NoError(t, h.player.Skip(ctx, -100))
	s = h.player.Snapshot()
	assert.Equal(t, 1150.0, s.PositionSeconds)
	assert.Equal(t, 1, s.CurrentChapterNumber)

	require.NoError(t, h.player.Close(ctx))
	s = h.player.Snapshot()
	assert.Equal(t, domain.TransportIdle, s.Transport)
	assert.Nil(t, s.Track)

	require.NoError(t, h.player.LoadTrack(ctx, bookTrack(), &domain.Resume{ChapterNumber: 2, PositionSeconds: 1250}))
	s = h.player.Snapshot()
	assert.Equal(t, domain.TransportLoading, s.Transport)
	assert.Equal(t, 2, s.CurrentChapterNumber)
	assert.Equal(t, 1250.0, s.PositionSeconds)

	h.driver.last().ready(3600)
	s = h.waitTransport(t, domain.TransportPlaying)
	assert.Equal(t, 2, s.CurrentChapterNumber)
	assert.Equal(t, 1250.0, s.PositionSeconds)
}

func TestSeek_ChapterDerivation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	track := bookTrack()
	h.loadPlaying(t, track, nil)

	for pos := -50.0; pos <= 3700; pos += 37.5 {
		require.NoError(t, h.player.Seek(ctx, pos))
		s := h.player.Snapshot()

		want := min(max(pos, 0), 3600)
		assert.Equal(t, want, s.PositionSeconds)

		wantChapter := 1
		for _, c := range track.Chapters {
			if c.StartOffsetSeconds <= s.PositionSeconds {
				wantChapter = c.Number
			}
		}
		assert.Equal(t, wantChapter, s.CurrentChapterNumber, "position %v", s.PositionSeconds)
	}
}

func TestSeek_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.loadPlaying(t, bookTrack(), nil)

	require.NoError(t, h.player.Seek(ctx, 2500))
	first := h.player.Snapshot()
	require.NoError(t, h.player.Seek(ctx, 2500))
	second := h.player.Snapshot()

	assert.Equal(t, first.PositionSeconds, second.PositionSeconds)
	assert.Equal(t, first.CurrentChapterNumber, second.CurrentChapterNumber)
	assert.Equal(t, first.Transport, second.Transport)
}

func TestSeek_OutOfRange(t *testing.T) {
	tests := []struct {
		name      string
		ready     bool
		target    float64
		want      float64
		transport domain.Transport
		chapter   int
	}{
		{"negative clamps to zero", true, -5, 0, domain.TransportPlaying, 1},
		{"past the end clamps to duration", true, 3700, 3600, domain.TransportPlaying, 3},
		{"loading before duration is known", false, 9000, 9000, domain.TransportLoading, 3},
		{"loading still clamps below zero", false, -5, 0, domain.TransportLoading, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			if tt.ready {
				h.loadPlaying(t, bookTrack(), nil)
			} else {
				require.NoError(t, h.player.LoadTrack(ctx, bookTrack(), nil))
			}

			require.NoError(t, h.player.Seek(ctx, tt.target))
			first := h.player.Snapshot()
			assert.Equal(t, tt.want, first.PositionSeconds)
			assert.Equal(t, tt.transport, first.Transport)
			assert.Equal(t, tt.chapter, first.CurrentChapterNumber)

			require.NoError(t, h.player.Seek(ctx, tt.target))
			second := h.player.Snapshot()
			assert.Equal(t, first.PositionSeconds, second.PositionSeconds, "seek is idempotent")
			assert.Equal(t, first.CurrentChapterNumber, second.CurrentChapterNumber)
			assert.Equal(t, first.Transport, second.Transport)
		})
	}
}

func TestSeek_Idle(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.player.Seek(context.Background(), 10), domainerrors.ErrNoTrack)
	assert.ErrorIs(t, h.player.Skip(context.Background(), 10), domainerrors.ErrNoTrack)
}

func TestPausePlay_PreservesPosition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prim := h.loadPlaying(t, bookTrack(), nil)

	prim.timeUpdate(12.5)
	h.waitState(t, func(s domain.PlayerState) bool { return s.PositionSeconds == 12.5 }, "time update applied")

	require.NoError(t, h.player.Pause(ctx))
	paused := h.player.Snapshot()
	assert.Equal(t, domain.TransportPaused, paused.Transport)

	require.NoError(t, h.player.Play(ctx))
	playing := h.player.Snapshot()
	assert.Equal(t, domain.TransportPlaying, playing.Transport)
	assert.Equal(t, paused.PositionSeconds, playing.PositionSeconds)
	assert.Equal(t, []bool{false, true}, prim.playCalls())
}

func TestTimeUpdate_OnlyWhilePlayingAndNonDecreasing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prim := h.loadPlaying(t, bookTrack(), nil)

	prim.timeUpdate(10)
	h.waitState(t, func(s domain.PlayerState) bool { return s.PositionSeconds == 10 }, "first update")

	// A late, older update is ignored; a newer one lands.
	prim.timeUpdate(9)
	prim.timeUpdate(11)
	h.waitState(t, func(s domain.PlayerState) bool { return s.PositionSeconds == 11 }, "newer update")

	require.NoError(t, h.player.Pause(ctx))
	prim.timeUpdate(50)
	assert.Never(t, func() bool { return h.player.Snapshot().PositionSeconds != 11 }, 100*time.Millisecond, tick)
}

func TestTimeUpdate_AfterSeekBackward(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prim := h.loadPlaying(t, bookTrack(), nil)

	prim.timeUpdate(1300)
	h.waitState(t, func(s domain.PlayerState) bool { return s.PositionSeconds == 1300 }, "update")

	require.NoError(t, h.player.Seek(ctx, 100))
	// Emitted before the primitive applied the seek.
	prim.timeUpdate(1300.25)
	prim.timeUpdate(100.25)

	s := h.waitState(t, func(s domain.PlayerState) bool { return s.PositionSeconds == 100.25 }, "post-seek update")
	assert.Equal(t, 1, s.CurrentChapterNumber)
}

func TestTimeUpdate_DerivesChapter(t *testing.T) {
	h := newHarness(t)
	prim := h.loadPlaying(t, bookTrack(), nil)

	prim.timeUpdate(2400.25)
	s := h.waitState(t, func(s domain.PlayerState) bool { return s.PositionSeconds == 2400.25 }, "update")
	assert.Equal(t, 3, s.CurrentChapterNumber)
}

func TestGoToChapter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	track := bookTrack()
	h.loadPlaying(t, track, nil)
	require.NoError(t, h.player.Pause(ctx))

	for _, c := range track.Chapters {
		require.NoError(t, h.player.GoToChapter(ctx, c.Number))
		s := h.player.Snapshot()
		assert.Equal(t, c.Number, s.CurrentChapterNumber)
		assert.Equal(t, c.StartOffsetSeconds, s.PositionSeconds)
		assert.Equal(t, domain.TransportPlaying, s.Transport)
	}

	assert.ErrorIs(t, h.player.GoToChapter(ctx, 9), domainerrors.ErrValidation)
}

func TestGoToChapter_PastShortMedia(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.player.LoadTrack(ctx, bookTrack(), nil))
	h.driver.last().ready(2000)
	h.waitTransport(t, domain.TransportPlaying)

	require.NoError(t, h.player.Seek(ctx, 100))
	err := h.player.GoToChapter(ctx, 3)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	s := h.player.Snapshot()
	assert.Equal(t, 100.0, s.PositionSeconds, "rejected jump leaves the position alone")
	assert.Equal(t, 1, s.CurrentChapterNumber)
	assert.Equal(t, domain.TransportPlaying, s.Transport)

	require.NoError(t, h.player.GoToChapter(ctx, 2))
	s = h.player.Snapshot()
	assert.Equal(t, 2, s.CurrentChapterNumber)
	assert.Equal(t, 1200.0, s.PositionSeconds)
}

func TestGoToChapter_NoChapters(t *testing.T) {
	h := newHarness(t)
	h.loadPlaying(t, otherTrack(), nil)
	assert.ErrorIs(t, h.player.GoToChapter(context.Background(), 1), domainerrors.ErrValidation)
}

func TestGoToChapter_Idle(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.player.GoToChapter(context.Background(), 1), domainerrors.ErrNoTrack)
}

func TestEnded_ThenPlayRestarts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prim := h.loadPlaying(t, bookTrack(), nil)

	prim.emit(media.Event{Kind: media.EventEnded, PositionSeconds: 3600})
	s := h.waitTransport(t, domain.TransportEnded)
	assert.Equal(t, 3600.0, s.PositionSeconds)
	assert.Equal(t, 3, s.CurrentChapterNumber)

	require.NoError(t, h.player.Play(ctx))
	s = h.player.Snapshot()
	assert.Equal(t, domain.TransportPlaying, s.Transport)
	assert.Equal(t, 0.0, s.PositionSeconds)
	assert.Equal(t, 1, s.CurrentChapterNumber)
	assert.Contains(t, prim.seekCalls(), 0.0)
}

func TestEnded_SeekKeepsTransport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prim := h.loadPlaying(t, bookTrack(), nil)

	prim.emit(media.Event{Kind: media.EventEnded, PositionSeconds: 3600})
	h.waitTransport(t, domain.TransportEnded)

	require.NoError(t, h.player.Seek(ctx, 1000))
	s := h.player.Snapshot()
	assert.Equal(t, domain.TransportEnded, s.Transport)
	assert.Equal(t, 1000.0, s.PositionSeconds)
	assert.Equal(t, 1, s.CurrentChapterNumber)
	assert.Contains(t, prim.seekCalls(), 1000.0)

	require.NoError(t, h.player.Play(ctx))
	s = h.player.Snapshot()
	assert.Equal(t, domain.TransportPlaying, s.Transport)
	assert.Equal(t, 0.0, s.PositionSeconds, "play from ended restarts")
}

func TestEnded_GoToChapterPlays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prim := h.loadPlaying(t, bookTrack(), nil)

	prim.emit(media.Event{Kind: media.EventEnded, PositionSeconds: 3600})
	h.waitTransport(t, domain.TransportEnded)

	require.NoError(t, h.player.GoToChapter(ctx, 2))
	s := h.player.Snapshot()
	assert.Equal(t, domain.TransportPlaying, s.Transport)
	assert.Equal(t, 1200.0, s.PositionSeconds)
	assert.Equal(t, 2, s.CurrentChapterNumber)
}

func TestMediaError_UnloadsTrack(t *testing.T) {
	h := newHarness(t)
	prim := h.loadPlaying(t, bookTrack(), nil)

	prim.emit(media.Event{Kind: media.EventError, Err: assert.AnError})

	s := h.waitTransport(t, domain.TransportIdle)
	assert.Nil(t, s.Track)
	require.NotNil(t, s.LastError)
	assert.Equal(t, string(domainerrors.CodeMediaLoad), s.LastError.Code)
	assert.Eventually(t, prim.isClosed, waitFor, tick, "scope released")
}

func TestMediaError_WhileLoading(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.player.LoadTrack(context.Background(), bookTrack(), nil))

	h.driver.last().emit(media.Event{Kind: media.EventError, Err: assert.AnError})
	s := h.waitState(t, func(s domain.PlayerState) bool { return s.LastError != nil }, "error surfaced")
	assert.Equal(t, domain.TransportIdle, s.Transport)
	assert.True(t, s.PanelVisible, "panel stays open to show the error")
}

func TestAutoplayBlocked(t *testing.T) {
	h := newHarness(t, blockedAutoplay())
	ctx := context.Background()

	require.NoError(t, h.player.LoadTrack(ctx, bookTrack(), nil))
	h.driver.last().ready(3600)

	s := h.waitTransport(t, domain.TransportPaused)
	require.NotNil(t, s.LastError)
	assert.Equal(t, string(domainerrors.CodePlaybackBlocked), s.LastError.Code)

	require.NoError(t, h.player.Play(ctx))
	s = h.player.Snapshot()
	assert.Equal(t, domain.TransportPlaying, s.Transport)
	assert.Nil(t, s.LastError)
}

func TestPlay_Idle(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.player.Play(context.Background()), domainerrors.ErrNoTrack)
	assert.NoError(t, h.player.Pause(context.Background()), "pause with nothing loaded is a no-op")
}

func TestPauseWhileLoading_DisarmsAutoplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.player.LoadTrack(ctx, bookTrack(), nil))
	require.NoError(t, h.player.Pause(ctx))

	prim := h.driver.last()
	prim.ready(3600)
	h.waitTransport(t, domain.TransportPaused)
	assert.Empty(t, prim.playCalls())
}

func TestPlayWhileLoading_RearmsAutoplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.player.LoadTrack(ctx, bookTrack(), nil))
	require.NoError(t, h.player.Pause(ctx))
	require.NoError(t, h.player.Play(ctx))

	h.driver.last().ready(3600)
	h.waitTransport(t, domain.TransportPlaying)
}

func TestPreferences(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.player.SetVolume(ctx, 1.7))
	assert.Equal(t, 1.0, h.player.Snapshot().Volume)
	require.NoError(t, h.player.SetVolume(ctx, -2))
	assert.Equal(t, 0.0, h.player.Snapshot().Volume)
	require.NoError(t, h.player.SetVolume(ctx, 0.4))

	require.NoError(t, h.player.SetRate(ctx, 10))
	assert.Equal(t, MaxRate, h.player.Snapshot().Rate)
	require.NoError(t, h.player.SetRate(ctx, 0.1))
	assert.Equal(t, MinRate, h.player.Snapshot().Rate)
	assert.ErrorIs(t, h.player.SetRate(ctx, 0), domainerrors.ErrValidation)
	assert.ErrorIs(t, h.player.SetRate(ctx, -1), domainerrors.ErrValidation)
	require.NoError(t, h.player.SetRate(ctx, 1.5))

	require.NoError(t, h.player.ToggleMute(ctx))

	// Preferences are forwarded to a newly opened primitive.
	prim := h.loadPlaying(t, bookTrack(), nil)
	rate, volume, muted := prim.settings()
	assert.Equal(t, 1.5, rate)
	assert.Equal(t, 0.4, volume)
	assert.True(t, muted)

	require.NoError(t, h.player.ToggleMute(ctx))
	_, _, muted = prim.settings()
	assert.False(t, muted)

	// And survive Close.
	require.NoError(t, h.player.Close(ctx))
	s := h.player.Snapshot()
	assert.Equal(t, 0.4, s.Volume)
	assert.Equal(t, 1.5, s.Rate)
}

func TestPanel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.player.OpenPanel(ctx))
	assert.True(t, h.player.Snapshot().PanelVisible)
	require.NoError(t, h.player.ClosePanel(ctx))
	assert.False(t, h.player.Snapshot().PanelVisible)
	assert.Equal(t, domain.TransportIdle, h.player.Snapshot().Transport)
}

func TestClose_ReleasesScope(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prim := h.loadPlaying(t, bookTrack(), nil)

	require.NoError(t, h.player.Close(ctx))
	assert.True(t, prim.isClosed())

	s := h.player.Snapshot()
	assert.Equal(t, domain.TransportIdle, s.Transport)
	assert.False(t, s.PanelVisible)
	assert.Equal(t, 0.0, s.PositionSeconds)
	assert.Equal(t, 0.0, s.DurationSeconds)
}

func TestLoadTrack_ReplacesScope(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.loadPlaying(t, bookTrack(), nil)
	require.NoError(t, h.player.LoadTrack(ctx, otherTrack(), nil))
	assert.True(t, first.isClosed())

	second := h.driver.last()
	require.NotSame(t, first, second)

	s := h.player.Snapshot()
	assert.Equal(t, "trk-other", s.TrackID())
	assert.Equal(t, domain.TransportLoading, s.Transport)

	// Events from the released primitive never reach the new track.
	first.timeUpdate(999)
	second.ready(600)
	s = h.waitTransport(t, domain.TransportPlaying)
	assert.Equal(t, 0.0, s.PositionSeconds)
}

func TestCommands_ChapterFallbackWithoutMarkers(t *testing.T) {
	h := newHarness(t)
	h.loadPlaying(t, otherTrack(), nil)

	require.NoError(t, h.player.Seek(context.Background(), 300))
	assert.Equal(t, chapters.FirstChapter, h.player.Snapshot().CurrentChapterNumber)
}

func TestCommands_AfterShutdown(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.player.Shutdown(context.Background()))

	assert.ErrorIs(t, h.player.Play(context.Background()), ErrStopped)
}

func TestCommands_ContextCancelled(t *testing.T) {
	p := New(DefaultConfig(), &fakeDriver{}, newFakeStore(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Never started, so only the context can end the call.
	assert.ErrorIs(t, p.Play(ctx), context.Canceled)
}

func TestSubscribe_DeliversLatest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sub := h.player.Subscribe()
	defer sub.Close()

	initial := <-sub.C
	assert.Equal(t, domain.TransportIdle, initial.Transport)

	// Several updates without reading: only the newest is kept.
	require.NoError(t, h.player.SetVolume(ctx, 0.1))
	require.NoError(t, h.player.SetVolume(ctx, 0.2))
	require.NoError(t, h.player.SetVolume(ctx, 0.3))

	select {
	case s := <-sub.C:
		assert.Equal(t, 0.3, s.Volume)
	case <-time.After(waitFor):
		t.Fatal("no snapshot delivered")
	}
}

func TestSubscribe_CloseAndShutdown(t *testing.T) {
	h := newHarness(t)

	sub := h.player.Subscribe()
	<-sub.C
	sub.Close()
	sub.Close()
	_, ok := <-sub.C
	assert.False(t, ok)

	other := h.player.Subscribe()
	<-other.C
	require.NoError(t, h.player.Shutdown(context.Background()))
	_, ok = <-other.C
	assert.False(t, ok, "subscriptions end with the player")
}

func TestSnapshot_UpdatedAtAdvances(t *testing.T) {
	h := newHarness(t)
	before := h.player.Snapshot().UpdatedAt

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, h.player.OpenPanel(context.Background()))
	assert.True(t, h.player.Snapshot().UpdatedAt.After(before))
}
