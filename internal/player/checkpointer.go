package player

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-co-op/gocron"

	"github.com/listenupapp/listenup-player/internal/domain"
	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/id"
)

// startCheckpoints schedules periodic ticks for s the first time its track
// starts playing. The first tick fires one full interval later and ticks
// never overlap. The schedule keeps running through pauses; ticks are inert
// unless Playing.
func (p *Player) startCheckpoints(s *scope) error {
	if s == nil || s.scheduler != nil || p.progress == nil {
		return nil
	}
	if _, ok := p.identity.CurrentUserID(s.ctx); !ok {
		p.logger.Debug("checkpointing disabled, no user", "track_id", s.trackID)
		return nil
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.CustomTime(schedulerClock{p.clock})
	scheduler.CustomTimer(p.afterFunc)
	_, err := scheduler.
		Every(p.cfg.CheckpointInterval).
		WaitForSchedule().
		SingletonMode().
		Do(func() {
			select {
			case p.mailbox <- checkpointTick{gen: s.gen}:
			case <-s.ctx.Done():
			}
		})
	if err != nil {
		return err
	}

	scheduler.StartAsync()
	s.scheduler = scheduler
	return nil
}

// schedulerClock lets the scheduler read time from the player's clock.
type schedulerClock struct {
	clock clock.Clock
}

func (c schedulerClock) Now(loc *time.Location) time.Time { return c.clock.Now().In(loc) }

func (c schedulerClock) Unix(sec, nsec int64) time.Time { return time.Unix(sec, nsec) }

func (c schedulerClock) Sleep(d time.Duration) { c.clock.Sleep(d) }

// afterFunc runs f after d on the player's clock. The scheduler cancels
// through the returned timer, which never fires on its own; f runs only if
// that timer is still armed when the clock timer expires.
func (p *Player) afterFunc(d time.Duration, f func()) *time.Timer {
	handle := time.NewTimer(time.Duration(math.MaxInt64))
	p.clock.AfterFunc(d, func() {
		if handle.Stop() {
			f()
		}
	})
	return handle
}

// onCheckpointTick persists the position. Inert unless Playing.
func (p *Player) onCheckpointTick() {
	if p.state.Transport != domain.TransportPlaying {
		return
	}
	p.writeCheckpoint("interval")
}

// writeCheckpoint captures the current state and persists it on its own
// goroutine. Failures are logged and never retried early.
func (p *Player) writeCheckpoint(reason string) {
	if p.progress == nil || p.state.Track == nil {
		return
	}
	userID, ok := p.identity.CurrentUserID(context.Background())
	if !ok {
		return
	}

	record := &domain.ProgressRecord{
		UserID:          userID,
		TrackID:         p.state.Track.ID,
		ChapterNumber:   p.state.CurrentChapterNumber,
		PositionSeconds: p.state.PositionSeconds,
		Completed: domain.IsComplete(
			p.state.DurationSeconds,
			p.state.PositionSeconds,
			p.cfg.CompletionTolerance.Seconds(),
		),
		UpdatedAt: p.clock.Now(),
	}

	checkpointID, _ := id.Generate(id.PrefixCheckpoint)
	logger := p.logger.With(
		"checkpoint_id", checkpointID,
		"track_id", record.TrackID,
		"reason", reason,
	)

	p.writes.Add(1)
	go func() {
		defer p.writes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.CheckpointTimeout)
		defer cancel()

		if err := p.progress.UpsertProgress(ctx, record); err != nil {
			logger.Warn("checkpoint write failed", "error", domainerrors.CheckpointWrite(record.TrackID, err))
			return
		}
		logger.Debug("checkpoint saved",
			"position", record.PositionSeconds,
			"chapter", record.ChapterNumber,
			"completed", record.Completed,
		)
	}()
}
