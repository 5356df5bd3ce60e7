// Package media defines the contract between the player and whatever
// actually renders audio: a browser element behind a bridge, a native
// decoder, or the headless simulation in media/simulated.
package media

import (
	"context"
	"errors"
)

// ErrGestureRequired is returned by Primitive.Play when the platform's
// autoplay policy refuses to start playback without a user gesture.
var ErrGestureRequired = errors.New("media: playback requires a user gesture")

// ErrClosed is returned by calls on a released primitive.
var ErrClosed = errors.New("media: primitive closed")

// EventKind identifies a primitive event.
type EventKind int

// Event kinds emitted by a primitive.
const (
	EventReady EventKind = iota + 1
	EventTimeUpdate
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventTimeUpdate:
		return "timeupdate"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is something the primitive reports asynchronously.
type Event struct {
	Kind EventKind
	// DurationSeconds is set on EventReady. Zero means the source has no known length.
	DurationSeconds float64
	// PositionSeconds is set on EventTimeUpdate and EventEnded.
	PositionSeconds float64
	// Err is set on EventError.
	Err error
}

// Primitive is one loaded audio source. Calls return once the command is
// accepted; effects show up later as events. A primitive is used from a
// single goroutine.
type Primitive interface {
	// Play starts or resumes playback. userGesture reports whether a listener
	// explicitly asked for it; autoplay passes false and may get ErrGestureRequired.
	Play(userGesture bool) error
	Pause() error
	// Seek relocates the playback cursor.
	Seek(positionSeconds float64) error
	SetRate(rate float64) error
	SetVolume(volume float64, muted bool) error
	// Events is closed after Close.
	Events() <-chan Event
	// Close releases the source. Safe to call more than once.
	Close() error
}

// Driver opens primitives. Open returns immediately; the source reports
// EventReady or EventError once it has resolved. A synchronous error means
// the URI could not be handled at all.
type Driver interface {
	Open(ctx context.Context, uri string) (Primitive, error)
}
