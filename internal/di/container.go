// Package di provides dependency injection configuration for the player daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-player/internal/catalog"
	"github.com/listenupapp/listenup-player/internal/config"
	"github.com/listenupapp/listenup-player/internal/di/providers"
	"github.com/listenupapp/listenup-player/internal/logger"
	"github.com/listenupapp/listenup-player/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line flags, without the program name.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig(args))
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideProgressStore)

	// Library layer
	do.Provide(injector, providers.ProvideCatalog)
	do.Provide(injector, providers.ProvideLibraryWatcher)

	// Playback
	do.Provide(injector, providers.ProvideMediaDriver)
	do.Provide(injector, providers.ProvidePlayer)
	do.Provide(injector, providers.ProvidePlayerService)

	// Server
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.ProgressStoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*catalog.Catalog](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*providers.PlayerHandle](injector)
	_ = do.MustInvoke[*service.PlayerService](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.LibraryWatcherHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
