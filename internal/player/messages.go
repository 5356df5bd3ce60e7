package player

import "github.com/listenupapp/listenup-player/internal/media"

// message is anything the loop consumes.
type message interface {
	isMessage()
}

// command is a caller's request; the loop replies exactly once.
type command struct {
	apply func() error
	reply chan<- error
}

// mediaEvent is a primitive event tagged with the scope that produced it.
type mediaEvent struct {
	gen   uint64
	event media.Event
}

// checkpointTick is a scheduler firing for the scope with generation gen.
type checkpointTick struct {
	gen uint64
}

func (command) isMessage()        {}
func (mediaEvent) isMessage()     {}
func (checkpointTick) isMessage() {}

// dispatch handles one message and reports whether state may have changed
// and still needs publishing. Commands publish before replying so a caller
// observes its own change in the next Snapshot.
func (p *Player) dispatch(msg message) bool {
	switch m := msg.(type) {
	case command:
		err := p.exec(m.apply)
		p.publish()
		m.reply <- err
		return false

	case mediaEvent:
		if !p.current(m.gen) {
			p.logger.Debug("dropping media event from released track", "event", m.event.Kind.String(), "generation", m.gen)
			return false
		}
		p.onMediaEvent(m.event)
		return true

	case checkpointTick:
		if !p.current(m.gen) {
			return false
		}
		p.onCheckpointTick()
		return false
	}
	return false
}

// current reports whether gen belongs to the live scope.
func (p *Player) current(gen uint64) bool {
	return p.scope != nil && p.scope.gen == gen
}

func (p *Player) onMediaEvent(ev media.Event) {
	switch ev.Kind {
	case media.EventReady:
		p.onReady(ev.DurationSeconds)
	case media.EventTimeUpdate:
		p.onTimeUpdate(ev.PositionSeconds)
	case media.EventEnded:
		p.onEnded(ev.PositionSeconds)
	case media.EventError:
		p.onMediaError(ev.Err)
	}
}
