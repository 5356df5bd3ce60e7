package player

import (
	"context"
	"errors"
	"sync"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/media"
	"github.com/listenupapp/listenup-player/internal/store"
)

// fakePrimitive records calls and lets tests inject events.
type fakePrimitive struct {
	uri string

	mu       sync.Mutex
	playErr  error
	plays    []bool
	pauses   int
	seeks    []float64
	rate     float64
	volume   float64
	muted    bool
	closed   bool
	events   chan media.Event
	closedCh chan struct{}
}

func newFakePrimitive(uri string) *fakePrimitive {
	return &fakePrimitive{
		uri:      uri,
		events:   make(chan media.Event, 64),
		closedCh: make(chan struct{}),
	}
}

func (f *fakePrimitive) Play(userGesture bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return media.ErrClosed
	}
	if f.playErr != nil && !userGesture {
		return f.playErr
	}
	f.plays = append(f.plays, userGesture)
	return nil
}

func (f *fakePrimitive) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakePrimitive) Seek(t float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, t)
	return nil
}

func (f *fakePrimitive) SetRate(rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = rate
	return nil
}

func (f *fakePrimitive) SetVolume(volume float64, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume, f.muted = volume, muted
	return nil
}

func (f *fakePrimitive) Events() <-chan media.Event { return f.events }

func (f *fakePrimitive) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.closedCh)
		close(f.events)
	}
	return nil
}

// emit delivers ev unless the primitive has been closed.
func (f *fakePrimitive) emit(ev media.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- ev
}

func (f *fakePrimitive) ready(duration float64) {
	f.emit(media.Event{Kind: media.EventReady, DurationSeconds: duration})
}

func (f *fakePrimitive) timeUpdate(t float64) {
	f.emit(media.Event{Kind: media.EventTimeUpdate, PositionSeconds: t})
}

func (f *fakePrimitive) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakePrimitive) playCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.plays...)
}

func (f *fakePrimitive) seekCalls() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.seeks...)
}

func (f *fakePrimitive) settings() (rate, volume float64, muted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate, f.volume, f.muted
}

// fakeDriver hands out fakePrimitives and remembers them in order.
type fakeDriver struct {
	mu        sync.Mutex
	opened    []*fakePrimitive
	openErr   error
	blockPlay bool
}

func (d *fakeDriver) Open(_ context.Context, uri string) (media.Primitive, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	prim := newFakePrimitive(uri)
	if d.blockPlay {
		prim.playErr = media.ErrGestureRequired
	}
	d.opened = append(d.opened, prim)
	return prim, nil
}

func (d *fakeDriver) last() *fakePrimitive {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.opened) == 0 {
		return nil
	}
	return d.opened[len(d.opened)-1]
}

func (d *fakeDriver) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opened)
}

// fakeStore is an in-memory ProgressStore that logs every write.
type fakeStore struct {
	mu      sync.Mutex
	writes  []domain.ProgressRecord
	records map[string]domain.ProgressRecord
	err     error
	block   chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]domain.ProgressRecord)}
}

func (s *fakeStore) GetProgress(_ context.Context, userID, trackID string) (*domain.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[domain.ProgressID(userID, trackID)]
	if !ok {
		return nil, store.ErrProgressNotFound
	}
	return &r, nil
}

func (s *fakeStore) UpsertProgress(ctx context.Context, r *domain.ProgressRecord) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, *r)
	if existing, ok := s.records[r.ID()]; !ok || r.Supersedes(&existing) {
		s.records[r.ID()] = *r
	}
	return nil
}

func (s *fakeStore) all() []domain.ProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ProgressRecord(nil), s.writes...)
}

func (s *fakeStore) countFor(trackID string) int {
	n := 0
	for _, w := range s.all() {
		if w.TrackID == trackID {
			n++
		}
	}
	return n
}

var errStoreDown = errors.New("store unavailable")
