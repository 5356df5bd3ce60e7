// Package simulated is a headless media.Driver. Playback advances on a clock
// instead of decoding audio, which lets the daemon run without an audio
// device and lets tests drive time with clock.NewMock.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/listenupapp/listenup-player/internal/media"
)

// DefaultTickInterval matches the ~4 Hz timeupdate cadence of HTML media elements.
const DefaultTickInterval = 250 * time.Millisecond

// ErrUnknownSource is reported when the resolver does not know a URI.
var ErrUnknownSource = errors.New("simulated: unknown source")

// Resolver returns the duration of the audio behind uri.
type Resolver func(ctx context.Context, uri string) (durationSeconds float64, err error)

// StaticDurations resolves URIs from a fixed table.
func StaticDurations(durations map[string]float64) Resolver {
	return func(_ context.Context, uri string) (float64, error) {
		d, ok := durations[uri]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownSource, uri)
		}
		return d, nil
	}
}

// Options configures a Driver.
type Options struct {
	Clock   clock.Clock
	Resolve Resolver
	// RequireGesture refuses autoplay until some Play call carried a user gesture.
	RequireGesture bool
	TickInterval   time.Duration
	Logger         *slog.Logger
}

// Driver opens simulated sources.
type Driver struct {
	clock          clock.Clock
	resolve        Resolver
	requireGesture bool
	tick           time.Duration
	logger         *slog.Logger

	// gestured is sticky for the driver's lifetime, like a page that has
	// received user activation.
	gestured atomic.Bool
}

var _ media.Driver = (*Driver)(nil)

// New creates a Driver. A nil Resolve rejects every URI.
func New(opts Options) *Driver {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Resolve == nil {
		opts.Resolve = StaticDurations(nil)
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		clock:          opts.Clock,
		resolve:        opts.Resolve,
		requireGesture: opts.RequireGesture,
		tick:           opts.TickInterval,
		logger:         opts.Logger,
	}
}

// Open starts resolving uri in the background.
func (d *Driver) Open(_ context.Context, uri string) (media.Primitive, error) {
	if uri == "" {
		return nil, errors.New("simulated: empty media URI")
	}

	s := &source{
		driver: d,
		uri:    uri,
		rate:   1,
		events: make(chan media.Event, 16),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// source is one simulated primitive.
type source struct {
	driver *Driver
	uri    string

	mu       sync.Mutex
	duration float64
	position float64
	rate     float64
	playing  bool
	closed   bool

	events    chan media.Event
	done      chan struct{}
	closeOnce sync.Once
}

func (s *source) run() {
	defer close(s.events)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	defer cancel()

	duration, err := s.driver.resolve(ctx, s.uri)
	if err != nil {
		s.driver.logger.Debug("simulated source failed to resolve", "uri", s.uri, "error", err)
		s.emit(media.Event{Kind: media.EventError, Err: err})
		return
	}

	// The ticker exists before Ready is observable, so a mock clock advanced
	// after Ready never loses a tick.
	ticker := s.driver.clock.Ticker(s.driver.tick)
	defer ticker.Stop()

	s.mu.Lock()
	s.duration = max(duration, 0)
	s.mu.Unlock()

	if !s.emit(media.Event{Kind: media.EventReady, DurationSeconds: max(duration, 0)}) {
		return
	}

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			for _, ev := range s.advance() {
				if !s.emit(ev) {
					return
				}
			}
		}
	}
}

// advance moves the cursor by one tick. Events are returned rather than sent
// so the lock is never held while blocked on the channel.
func (s *source) advance() []media.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return nil
	}

	s.position += s.driver.tick.Seconds() * s.rate
	if s.duration > 0 && s.position >= s.duration {
		s.position = s.duration
		s.playing = false
		return []media.Event{
			{Kind: media.EventTimeUpdate, PositionSeconds: s.position},
			{Kind: media.EventEnded, PositionSeconds: s.position},
		}
	}
	return []media.Event{{Kind: media.EventTimeUpdate, PositionSeconds: s.position}}
}

func (s *source) emit(ev media.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *source) Play(userGesture bool) error {
	if userGesture {
		s.driver.gestured.Store(true)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return media.ErrClosed
	}
	if s.driver.requireGesture && !s.driver.gestured.Load() {
		return media.ErrGestureRequired
	}
	if s.duration > 0 && s.position >= s.duration {
		s.position = 0
	}
	s.playing = true
	return nil
}

func (s *source) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return media.ErrClosed
	}
	s.playing = false
	return nil
}

func (s *source) Seek(positionSeconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return media.ErrClosed
	}
	positionSeconds = max(positionSeconds, 0)
	if s.duration > 0 {
		positionSeconds = min(positionSeconds, s.duration)
	}
	s.position = positionSeconds
	return nil
}

func (s *source) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("simulated: invalid rate %v", rate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return media.ErrClosed
	}
	s.rate = rate
	return nil
}

// SetVolume is accepted and ignored; there is no audio to attenuate.
func (s *source) SetVolume(_ float64, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return media.ErrClosed
	}
	return nil
}

func (s *source) Events() <-chan media.Event {
	return s.events
}

func (s *source) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.playing = false
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}
