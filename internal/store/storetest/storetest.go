// Package storetest holds the behavior every ProgressStore backend must share.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/store"
)

// Run exercises a backend. newStore must return an empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) store.ProgressStore) {
	t.Helper()

	base := time.Date(2026, 5, 4, 21, 0, 0, 0, time.UTC)
	rec := func(user, track string, pos float64, at time.Time) *domain.ProgressRecord {
		return &domain.ProgressRecord{
			UserID:          user,
			TrackID:         track,
			ChapterNumber:   2,
			PositionSeconds: pos,
			UpdatedAt:       at,
		}
	}

	t.Run("get missing", func(t *testing.T) {
		s := open(t, newStore)
		_, err := s.GetProgress(context.Background(), "user-1", "trk-1")
		assert.ErrorIs(t, err, store.ErrProgressNotFound)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("upsert then get", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		want := rec("user-1", "trk-1", 1234.5, base)
		want.Completed = true
		require.NoError(t, s.UpsertProgress(ctx, want))

		got, err := s.GetProgress(ctx, "user-1", "trk-1")
		require.NoError(t, err)
		assert.Equal(t, want.UserID, got.UserID)
		assert.Equal(t, want.TrackID, got.TrackID)
		assert.Equal(t, 2, got.ChapterNumber)
		assert.InDelta(t, 1234.5, got.PositionSeconds, 1e-9)
		assert.True(t, got.Completed)
		assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at %v != %v", got.UpdatedAt, want.UpdatedAt)
	})

	t.Run("newer write replaces", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		require.NoError(t, s.UpsertProgress(ctx, rec("user-1", "trk-1", 100, base)))
		require.NoError(t, s.UpsertProgress(ctx, rec("user-1", "trk-1", 40, base.Add(time.Second))))

		got, err := s.GetProgress(ctx, "user-1", "trk-1")
		require.NoError(t, err)
		assert.InDelta(t, 40, got.PositionSeconds, 1e-9, "a newer rewind wins")
	})

	t.Run("stale write is ignored", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		require.NoError(t, s.UpsertProgress(ctx, rec("user-1", "trk-1", 500, base.Add(time.Minute))))
		require.NoError(t, s.UpsertProgress(ctx, rec("user-1", "trk-1", 200, base)))

		got, err := s.GetProgress(ctx, "user-1", "trk-1")
		require.NoError(t, err)
		assert.InDelta(t, 500, got.PositionSeconds, 1e-9)
	})

	t.Run("concurrent writers keep the newest", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Go(func() {
				// Badger may report a transaction conflict; the newest write is retried below.
				_ = s.UpsertProgress(ctx, rec("user-1", "trk-1", float64(i), base.Add(time.Duration(i)*time.Second)))
			})
		}
		wg.Wait()
		require.NoError(t, s.UpsertProgress(ctx, rec("user-1", "trk-1", 19, base.Add(19*time.Second))))

		got, err := s.GetProgress(ctx, "user-1", "trk-1")
		require.NoError(t, err)
		assert.InDelta(t, 19, got.PositionSeconds, 1e-9)
	})

	t.Run("records are scoped by user and track", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		require.NoError(t, s.UpsertProgress(ctx, rec("user-a", "trk-1", 10, base)))
		require.NoError(t, s.UpsertProgress(ctx, rec("user-a", "trk-2", 20, base.Add(time.Hour))))
		require.NoError(t, s.UpsertProgress(ctx, rec("user-b", "trk-1", 30, base)))
		// Shares a prefix with user-a; must not leak into its listing.
		require.NoError(t, s.UpsertProgress(ctx, rec("user-ab", "trk-1", 40, base)))

		list, err := s.ListProgress(ctx, "user-a")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "trk-2", list[0].TrackID, "most recent first")
		assert.Equal(t, "trk-1", list[1].TrackID)

		empty, err := s.ListProgress(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		require.NoError(t, s.UpsertProgress(ctx, rec("user-1", "trk-1", 10, base)))
		require.NoError(t, s.DeleteProgress(ctx, "user-1", "trk-1"))
		require.NoError(t, s.DeleteProgress(ctx, "user-1", "trk-1"), "deleting twice is fine")

		_, err := s.GetProgress(ctx, "user-1", "trk-1")
		assert.ErrorIs(t, err, store.ErrProgressNotFound)
	})

	t.Run("invalid records are rejected", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		assert.ErrorIs(t, s.UpsertProgress(ctx, nil), store.ErrInvalidInput)
		assert.ErrorIs(t, s.UpsertProgress(ctx, rec("", "trk-1", 0, base)), store.ErrInvalidInput)
		assert.ErrorIs(t, s.UpsertProgress(ctx, rec("user-1", "trk-1", -1, base)), store.ErrInvalidInput)
		assert.ErrorIs(t, s.UpsertProgress(ctx, rec("user-1", "trk-1", 0, time.Time{})), store.ErrInvalidInput)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := open(t, newStore)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.Error(t, s.UpsertProgress(ctx, rec("user-1", "trk-1", 1, base)))
		_, err := s.GetProgress(ctx, "user-1", "trk-1")
		assert.Error(t, err)
	})
}

func open(t *testing.T, newStore func(t *testing.T) store.ProgressStore) store.ProgressStore {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
