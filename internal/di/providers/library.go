package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-player/internal/catalog"
	"github.com/listenupapp/listenup-player/internal/config"
	"github.com/listenupapp/listenup-player/internal/logger"
	"github.com/listenupapp/listenup-player/internal/sse"
)

// ProvideCatalog provides the track catalog, populated by an initial scan.
// Without a library path the catalog stays empty and only ad-hoc tracks play.
func ProvideCatalog(i do.Injector) (*catalog.Catalog, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	cat := catalog.New(cfg.Library.Path, catalog.AudiometaReader{}, log.WithComponent("catalog").Logger)
	if cfg.Library.Path == "" {
		log.Info("No library configured, catalog is empty")
		return cat, nil
	}

	result, err := cat.Scan(context.Background())
	if err != nil {
		return nil, err
	}

	log.Info("Library scanned",
		"path", cfg.Library.Path,
		"tracks", result.Total,
		"failed", result.Failed,
	)

	return cat, nil
}

// LibraryWatcherHandle wraps the library rescan loop with shutdown capability.
type LibraryWatcherHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *LibraryWatcherHandle) Shutdown() error {
	h.cancel()
	<-h.done
	return nil
}

// ProvideLibraryWatcher rescans the library on file changes and announces
// each rescan to stream clients.
func ProvideLibraryWatcher(i do.Injector) (*LibraryWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cat := do.MustInvoke[*catalog.Catalog](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	ctx, cancel := context.WithCancel(context.Background())
	handle := &LibraryWatcherHandle{cancel: cancel, done: make(chan struct{})}

	if cfg.Library.Path == "" || !cfg.Library.Watch {
		log.Info("Library watching disabled")
		close(handle.done)
		return handle, nil
	}

	go func() {
		defer close(handle.done)
		err := cat.Watch(ctx, catalog.DefaultRescanDelay, func(result catalog.ScanResult) {
			log.Info("Library rescanned",
				"tracks", result.Total,
				"added", result.Added,
				"removed", result.Removed,
			)
			sseHandle.Emit(sse.NewScanCompleteEvent(result.Total, result.Added, result.Removed))
		})
		if err != nil {
			log.Error("Library watcher stopped", "error", err)
		}
	}()

	return handle, nil
}
