package player

import (
	"sync"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/id"
)

// Subscription delivers state snapshots. C holds at most one pending
// snapshot: a slow reader skips intermediate states and always sees the
// latest. C is closed when the subscription or the player ends.
type Subscription struct {
	ID string
	C  <-chan domain.PlayerState

	p    *Player
	once sync.Once
}

// Subscribe registers a reader. The current snapshot is delivered immediately.
func (p *Player) Subscribe() *Subscription {
	subID, err := id.Generate(id.PrefixSubscriber)
	if err != nil {
		subID = id.Stable(id.PrefixSubscriber, p.clock.Now().String())
	}
	ch := make(chan domain.PlayerState, 1)

	p.subsMu.Lock()
	defer p.subsMu.Unlock()

	ch <- p.Snapshot()
	if p.subsClosed {
		close(ch)
	} else {
		p.subs[subID] = ch
	}
	return &Subscription{ID: subID, C: ch, p: p}
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.p.subsMu.Lock()
		defer s.p.subsMu.Unlock()
		if ch, ok := s.p.subs[s.ID]; ok {
			delete(s.p.subs, s.ID)
			close(ch)
		}
	})
}

// broadcast offers snap to every subscriber, replacing any unread snapshot.
func (p *Player) broadcast(snap domain.PlayerState) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()

	for _, ch := range p.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Drop the stale snapshot. Only the loop sends, so the slot is free afterwards.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (p *Player) closeSubscribers() {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()

	for subID, ch := range p.subs {
		close(ch)
		delete(p.subs, subID)
	}
	p.subsClosed = true
}
