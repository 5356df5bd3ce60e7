// Package redisstore keeps progress records in Redis so several player
// instances can share one listener's resume points.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/store"
)

const (
	defaultPrefix = "listenup:player:"
	recordKey     = "%sprogress:%s:%s" // Hash: ts, data
	userIndexKey  = "%sprogress-idx:%s" // Sorted set: trackID scored by update time
)

// upsertScript applies last-write-wins atomically.
// Timestamps are fixed-width decimal strings so Lua can compare them as text
// without losing nanosecond precision to doubles.
var upsertScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'ts')
if cur and cur > ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1], 'data', ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[4])
return 1
`)

// Store is a Redis-backed progress store.
type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

var _ store.ProgressStore = (*Store)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key (default "listenup:player:").
	Prefix string
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	if logger != nil {
		logger.Info("Redis progress store connected", "addr", opts.Addr, "db", opts.DB)
	}
	return NewWithClient(client, opts.Prefix, logger), nil
}

// NewWithClient wraps an existing client. Close closes the client.
func NewWithClient(client *redis.Client, prefix string, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix, logger: logger}
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) recordKey(userID, trackID string) string {
	return fmt.Sprintf(recordKey, s.prefix, userID, trackID)
}

func (s *Store) indexKey(userID string) string {
	return fmt.Sprintf(userIndexKey, s.prefix, userID)
}

// stamp renders t as a 20 digit nanosecond count.
func stamp(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

// GetProgress retrieves playback progress for a user+track.
func (s *Store) GetProgress(ctx context.Context, userID, trackID string) (*domain.ProgressRecord, error) {
	data, err := s.client.HGet(ctx, s.recordKey(userID, trackID), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrProgressNotFound
	}
	if err != nil {
		return nil, err
	}

	var r domain.ProgressRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &r, nil
}

// UpsertProgress stores the record unless a newer one is present.
func (s *Store) UpsertProgress(ctx context.Context, r *domain.ProgressRecord) error {
	if err := store.CheckRecord(r); err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	keys := []string{s.recordKey(r.UserID, r.TrackID), s.indexKey(r.UserID)}
	applied, err := upsertScript.Run(ctx, s.client, keys,
		stamp(r.UpdatedAt),
		data,
		float64(r.UpdatedAt.UnixMicro()),
		r.TrackID,
	).Int()
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}

	if applied == 0 && s.logger != nil {
		s.logger.Debug("skipping stale progress write", "track_id", r.TrackID, "incoming_at", r.UpdatedAt)
	}
	return nil
}

// ListProgress returns a user's records, most recently updated first.
func (s *Store) ListProgress(ctx context.Context, userID string) ([]*domain.ProgressRecord, error) {
	trackIDs, err := s.client.ZRevRange(ctx, s.indexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(trackIDs) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(trackIDs))
	for i, trackID := range trackIDs {
		cmds[i] = pipe.HGet(ctx, s.recordKey(userID, trackID), "data")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	records := make([]*domain.ProgressRecord, 0, len(cmds))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			// Index entry outlived its record.
			continue
		}
		if err != nil {
			return nil, err
		}
		var r domain.ProgressRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode progress: %w", err)
		}
		records = append(records, &r)
	}
	return records, nil
}

// DeleteProgress removes a record and its index entry.
func (s *Store) DeleteProgress(ctx context.Context, userID, trackID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.recordKey(userID, trackID))
	pipe.ZRem(ctx, s.indexKey(userID), trackID)
	_, err := pipe.Exec(ctx)
	return err
}
