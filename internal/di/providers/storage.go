package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-player/internal/config"
	"github.com/listenupapp/listenup-player/internal/logger"
	"github.com/listenupapp/listenup-player/internal/store"
	"github.com/listenupapp/listenup-player/internal/store/redisstore"
	"github.com/listenupapp/listenup-player/internal/store/sqlite"
)

// ProgressStoreHandle wraps the configured progress backend with shutdown capability.
type ProgressStoreHandle struct {
	store.ProgressStore
}

// Shutdown implements do.Shutdownable.
func (h *ProgressStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideProgressStore opens the progress backend selected by configuration.
func ProvideProgressStore(i do.Injector) (*ProgressStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var (
		progress store.ProgressStore
		location string
		err      error
	)

	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.Storage.BasePath, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
		location = filepath.Join(cfg.Storage.BasePath, "progress.db")
		progress, err = sqlite.Open(location, log.Logger)

	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		location = cfg.Storage.RedisAddr
		progress, err = redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		}, log.Logger)

	default:
		location = filepath.Join(cfg.Storage.BasePath, "badger")
		progress, err = store.New(location, log.Logger)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s progress store: %w", cfg.Storage.Backend, err)
	}

	log.Info("Progress store initialized", "backend", cfg.Storage.Backend, "location", location)

	return &ProgressStoreHandle{ProgressStore: progress}, nil
}
