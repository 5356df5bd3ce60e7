// Package player is the playback engine. A single goroutine (Run) owns the
// player state; commands, media events and checkpoint ticks reach it as
// messages on a mailbox. Readers see published snapshots.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/listenupapp/listenup-player/internal/domain"
	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/media"
)

// Playback rate bounds.
const (
	MinRate = 0.25
	MaxRate = 3.0
)

const mailboxSize = 64

// ErrStopped is returned by commands sent after the loop has exited.
var ErrStopped = errors.New("player: stopped")

// ProgressStore persists resume points. Write failures are never fatal to playback.
type ProgressStore interface {
	GetProgress(ctx context.Context, userID, trackID string) (*domain.ProgressRecord, error)
	UpsertProgress(ctx context.Context, record *domain.ProgressRecord) error
}

// Identity reports the listener. ok is false for anonymous sessions,
// which disables checkpointing.
type Identity interface {
	CurrentUserID(ctx context.Context) (userID string, ok bool)
}

// StaticIdentity is an Identity fixed at startup. Empty means anonymous.
type StaticIdentity string

// CurrentUserID implements Identity.
func (s StaticIdentity) CurrentUserID(context.Context) (string, bool) {
	return string(s), s != ""
}

// Config tunes the player.
type Config struct {
	// CheckpointInterval is how often position is persisted while playing.
	CheckpointInterval time.Duration
	// CheckpointTimeout bounds a single progress write.
	CheckpointTimeout time.Duration
	// CompletionTolerance is the trailing window counted as finished.
	CompletionTolerance time.Duration
	DefaultRate         float64
	DefaultVolume       float64
	// Clock stamps snapshots and progress records and drives checkpoint
	// ticks. Defaults to the wall clock.
	Clock clock.Clock
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		CheckpointInterval:  30 * time.Second,
		CheckpointTimeout:   10 * time.Second,
		CompletionTolerance: time.Duration(domain.DefaultCompletionToleranceSeconds * float64(time.Second)),
		DefaultRate:         1.0,
		DefaultVolume:       1.0,
	}
}

// Player is the single shared playback engine.
type Player struct {
	cfg      Config
	driver   media.Driver
	progress ProgressStore
	identity Identity
	logger   *slog.Logger
	clock    clock.Clock

	mailbox  chan message
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	running  atomic.Bool

	// Owned by the loop goroutine.
	state       domain.PlayerState
	scope       *scope
	generation  uint64
	autoplay    bool
	pendingSeek *float64
	staleTicks  int

	mu       sync.RWMutex
	snapshot domain.PlayerState

	subsMu     sync.Mutex
	subs       map[string]chan domain.PlayerState
	subsClosed bool

	writes sync.WaitGroup
}

// New creates a player. Call Run to start it.
func New(cfg Config, driver media.Driver, progress ProgressStore, identity Identity, logger *slog.Logger) *Player {
	defaults := DefaultConfig()
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = defaults.CheckpointInterval
	}
	if cfg.CheckpointTimeout <= 0 {
		cfg.CheckpointTimeout = defaults.CheckpointTimeout
	}
	if cfg.CompletionTolerance < 0 {
		cfg.CompletionTolerance = defaults.CompletionTolerance
	}
	if cfg.DefaultRate <= 0 {
		cfg.DefaultRate = defaults.DefaultRate
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if identity == nil {
		identity = StaticIdentity("")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &Player{
		cfg:      cfg,
		driver:   driver,
		progress: progress,
		identity: identity,
		logger:   logger,
		clock:    cfg.Clock,
		mailbox:  make(chan message, mailboxSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		subs:     make(map[string]chan domain.PlayerState),
	}
	p.state = domain.PlayerState{
		Transport: domain.TransportIdle,
		Volume:    clampVolume(cfg.DefaultVolume),
		Rate:      clampRate(cfg.DefaultRate),
		UpdatedAt: p.clock.Now(),
	}
	p.snapshot = p.state
	return p
}

// Run drains the mailbox until ctx is cancelled or Shutdown is called.
// It must be called exactly once.
func (p *Player) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("player: already running")
	}
	defer close(p.done)

	p.logger.Info("player started")
	for {
		select {
		case <-ctx.Done():
			p.stop("context cancelled")
			return ctx.Err()
		case <-p.quit:
			p.stop("shutdown")
			return nil
		case msg := <-p.mailbox:
			if p.dispatch(msg) {
				p.publish()
			}
		}
	}
}

// stop flushes the current position, releases the scope and ends subscriptions.
func (p *Player) stop(reason string) {
	p.retireScope(reason)
	p.closeSubscribers()
	p.logger.Info("player stopped", "reason", reason)
}

// Shutdown stops the loop and waits for in-flight checkpoint writes.
func (p *Player) Shutdown(ctx context.Context) error {
	p.quitOnce.Do(func() { close(p.quit) })

	if p.running.Load() {
		select {
		case <-p.done:
		case <-ctx.Done():
			return fmt.Errorf("waiting for player loop: %w", ctx.Err())
		}
	}

	flushed := make(chan struct{})
	go func() {
		p.writes.Wait()
		close(flushed)
	}()

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for checkpoint writes: %w", ctx.Err())
	}
}

// do runs fn on the loop goroutine and returns its error.
func (p *Player) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case p.mailbox <- command{apply: fn, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrStopped
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	}
}

// exec applies a command, converting panics into internal errors.
func (p *Player) exec(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("player command panicked", "panic", r, "stack", string(debug.Stack()))
			err = domainerrors.Internalf("player command failed: %v", r)
		}
	}()
	return fn()
}

// LoadTrack replaces the current track. resume may be nil to start at the beginning.
func (p *Player) LoadTrack(ctx context.Context, track *domain.Track, resume *domain.Resume) error {
	return p.do(ctx, func() error { return p.loadTrack(ctx, track, resume) })
}

// Play starts or resumes playback.
func (p *Player) Play(ctx context.Context) error {
	return p.do(ctx, p.play)
}

// Pause pauses playback.
func (p *Player) Pause(ctx context.Context) error {
	return p.do(ctx, p.pause)
}

// Seek moves to positionSeconds, clamped to the track.
func (p *Player) Seek(ctx context.Context, positionSeconds float64) error {
	return p.do(ctx, func() error { return p.seek(positionSeconds) })
}

// Skip seeks relative to the current position.
func (p *Player) Skip(ctx context.Context, deltaSeconds float64) error {
	return p.do(ctx, func() error { return p.skip(deltaSeconds) })
}

// GoToChapter seeks to the start of chapter number and plays.
func (p *Player) GoToChapter(ctx context.Context, number int) error {
	return p.do(ctx, func() error { return p.goToChapter(number) })
}

// SetVolume sets the volume, clamped to [0, 1].
func (p *Player) SetVolume(ctx context.Context, volume float64) error {
	return p.do(ctx, func() error { return p.setVolume(volume) })
}

// ToggleMute flips the mute flag.
func (p *Player) ToggleMute(ctx context.Context) error {
	return p.do(ctx, p.toggleMute)
}

// SetRate sets the playback rate, clamped to [MinRate, MaxRate].
func (p *Player) SetRate(ctx context.Context, rate float64) error {
	return p.do(ctx, func() error { return p.setRate(rate) })
}

// Close unloads the track, firing a final checkpoint that is not awaited.
func (p *Player) Close(ctx context.Context) error {
	return p.do(ctx, p.close)
}

// OpenPanel shows the player panel.
func (p *Player) OpenPanel(ctx context.Context) error {
	return p.do(ctx, func() error { return p.setPanel(true) })
}

// ClosePanel hides the player panel.
func (p *Player) ClosePanel(ctx context.Context) error {
	return p.do(ctx, func() error { return p.setPanel(false) })
}

// Snapshot returns the most recently published state.
func (p *Player) Snapshot() domain.PlayerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// publish stamps the state and makes it visible to readers and subscribers.
func (p *Player) publish() {
	p.state.UpdatedAt = p.clock.Now()
	snap := p.state

	p.mu.Lock()
	p.snapshot = snap
	p.mu.Unlock()

	p.broadcast(snap)
}
