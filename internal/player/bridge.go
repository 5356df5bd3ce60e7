package player

import (
	"context"

	"github.com/go-co-op/gocron"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/media"
)

// scope holds everything acquired for one loaded track. It lives from
// LoadTrack until Close, a replacing LoadTrack, or a media error.
type scope struct {
	gen       uint64
	trackID   string
	prim      media.Primitive
	ctx       context.Context
	cancel    context.CancelFunc
	scheduler *gocron.Scheduler
}

// acquireScope opens the primitive for track and starts its event pump.
// The checkpoint schedule waits for playback to start.
func (p *Player) acquireScope(ctx context.Context, track *domain.Track) error {
	p.generation++
	gen := p.generation

	prim, err := p.driver.Open(ctx, track.MediaURI)
	if err != nil {
		return err
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &scope{
		gen:     gen,
		trackID: track.ID,
		prim:    prim,
		ctx:     sctx,
		cancel:  cancel,
	}
	p.scope = s

	if err := prim.SetRate(p.state.Rate); err != nil {
		p.logger.Warn("primitive rejected rate", "rate", p.state.Rate, "error", err)
	}
	p.forwardVolume()

	go p.pump(s)
	return nil
}

// pump forwards primitive events into the mailbox, tagged with the scope's
// generation, until the primitive closes its channel or the scope ends.
func (p *Player) pump(s *scope) {
	for ev := range s.prim.Events() {
		select {
		case p.mailbox <- mediaEvent{gen: s.gen, event: ev}:
		case <-s.ctx.Done():
			return
		}
	}
}

// releaseScope stops the schedule and pump and closes the primitive.
func (p *Player) releaseScope() {
	s := p.scope
	if s == nil {
		return
	}
	p.scope = nil

	// Cancel first so a job or pump blocked on the mailbox returns and
	// the scheduler can stop.
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if err := s.prim.Close(); err != nil {
		p.logger.Warn("primitive close failed", "track_id", s.trackID, "error", err)
	}
	p.logger.Debug("track scope released", "track_id", s.trackID, "generation", s.gen)
}

// retireScope fires a final checkpoint if the track had started, then
// releases the scope.
func (p *Player) retireScope(reason string) {
	if p.scope == nil {
		return
	}
	if p.state.Transport.Started() {
		p.writeCheckpoint(reason)
	}
	p.releaseScope()
}
