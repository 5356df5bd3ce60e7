package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/listenup-player/internal/domain"
)

// Store is the embedded Badger progress store.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ ProgressStore = (*Store)(nil)

// New opens (or creates) a Badger database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Progress is small; keep it durable across crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// GetProgress retrieves playback progress for a user+track.
func (s *Store) GetProgress(ctx context.Context, userID, trackID string) (*domain.ProgressRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := buildProgressKey(userID, trackID)
	defer releaseKey(key)

	var record domain.ProgressRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrProgressNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpsertProgress writes the record unless the stored one is newer.
// Read and write happen in one transaction; Badger's conflict detection
// retries are surfaced as badger.ErrConflict.
func (s *Store) UpsertProgress(ctx context.Context, record *domain.ProgressRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckRecord(record); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	key := buildProgressKey(record.UserID, record.TrackID)
	defer releaseKey(key)

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return fmt.Errorf("get progress: %w", err)
		default:
			var existing domain.ProgressRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); err != nil {
				return fmt.Errorf("decode progress: %w", err)
			}
			if !record.Supersedes(&existing) {
				if s.logger != nil {
					s.logger.Debug("skipping stale progress write",
						"track_id", record.TrackID,
						"stored_at", existing.UpdatedAt,
						"incoming_at", record.UpdatedAt,
					)
				}
				return nil
			}
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set progress: %w", err)
		}
		return nil
	})
}

// ListProgress retrieves all progress records for a user.
func (s *Store) ListProgress(ctx context.Context, userID string) ([]*domain.ProgressRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := userPrefix(userID)
	var results []*domain.ProgressRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record domain.ProgressRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			results = append(results, &record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *domain.ProgressRecord) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return results, nil
}

// DeleteProgress removes playback progress.
func (s *Store) DeleteProgress(ctx context.Context, userID, trackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := buildProgressKey(userID, trackID)
	defer releaseKey(key)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}
