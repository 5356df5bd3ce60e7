package providers

import (
	"context"
	"errors"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-player/internal/catalog"
	"github.com/listenupapp/listenup-player/internal/config"
	"github.com/listenupapp/listenup-player/internal/logger"
	"github.com/listenupapp/listenup-player/internal/media"
	"github.com/listenupapp/listenup-player/internal/media/simulated"
	"github.com/listenupapp/listenup-player/internal/player"
	"github.com/listenupapp/listenup-player/internal/service"
	"github.com/listenupapp/listenup-player/internal/validation"
)

// ProvideValidator provides the shared request validator.
func ProvideValidator(do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideMediaDriver provides the headless media driver. Durations come from
// the catalog, falling back to probing the file.
func ProvideMediaDriver(i do.Injector) (media.Driver, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cat := do.MustInvoke[*catalog.Catalog](i)

	return simulated.New(simulated.Options{
		Resolve:        cat.Resolve,
		RequireGesture: cfg.Player.RequireGesture,
		Logger:         log.WithComponent("media").Logger,
	}), nil
}

// PlayerHandle wraps the player with its run loop for lifecycle management.
type PlayerHandle struct {
	*player.Player
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable. Pending checkpoint writes get
// shutdownTimeout to finish.
func (h *PlayerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := h.Player.Shutdown(ctx)
	h.cancel()
	<-h.done
	return err
}

// ProvidePlayer provides the shared player and starts its loop.
func ProvidePlayer(i do.Injector) (*PlayerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	driver := do.MustInvoke[media.Driver](i)
	storeHandle := do.MustInvoke[*ProgressStoreHandle](i)

	p := player.New(player.Config{
		CheckpointInterval:  cfg.Player.CheckpointInterval,
		CheckpointTimeout:   cfg.Player.CheckpointTimeout,
		CompletionTolerance: cfg.Player.CompletionTolerance,
		DefaultRate:         cfg.Player.DefaultRate,
		DefaultVolume:       cfg.Player.DefaultVolume,
	}, driver, storeHandle.ProgressStore, player.StaticIdentity(cfg.Player.UserID), log.WithComponent("player").Logger)

	ctx, cancel := context.WithCancel(context.Background())
	handle := &PlayerHandle{Player: p, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(handle.done)
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Player loop stopped", "error", err)
		}
	}()

	if cfg.Player.UserID == "" {
		log.Warn("No listener configured, progress will not be saved")
	}
	log.Info("Player started", "checkpoint_interval", cfg.Player.CheckpointInterval)

	return handle, nil
}

// ProvidePlayerService provides the track loading service.
func ProvidePlayerService(i do.Injector) (*service.PlayerService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	playerHandle := do.MustInvoke[*PlayerHandle](i)
	cat := do.MustInvoke[*catalog.Catalog](i)
	storeHandle := do.MustInvoke[*ProgressStoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)

	return service.NewPlayerService(
		playerHandle.Player,
		cat,
		storeHandle.ProgressStore,
		player.StaticIdentity(cfg.Player.UserID),
		v,
		log.Logger,
	), nil
}
