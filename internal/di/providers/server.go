package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-player/internal/api"
	"github.com/listenupapp/listenup-player/internal/config"
	"github.com/listenupapp/listenup-player/internal/logger"
	"github.com/listenupapp/listenup-player/internal/ratelimit"
	"github.com/listenupapp/listenup-player/internal/service"
	"github.com/listenupapp/listenup-player/internal/sse"
	"github.com/listenupapp/listenup-player/internal/validation"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
	unsub  func()
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.unsub()
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager and relays
// every player snapshot to it.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	playerHandle := do.MustInvoke[*PlayerHandle](i)

	manager := sse.NewManager(log.WithComponent("sse").Logger, sse.DefaultHeartbeatInterval)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	sub := playerHandle.Subscribe()
	go manager.Relay(ctx, sub.C)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
		unsub:   sub.Close,
	}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if h.limiter != nil {
		defer h.limiter.Stop()
	}
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the control API server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	playerService := do.MustInvoke[*service.PlayerService](i)
	v := do.MustInvoke[*validation.Validator](i)

	p := playerService.Player()
	streamHandler := sse.NewHandler(sseHandle.Manager, func() sse.Event {
		return sse.NewPlayerStateEvent(p.Snapshot())
	}, log.Logger)

	var limiter *ratelimit.KeyedRateLimiter
	if cfg.Server.CommandRPS > 0 {
		limiter = ratelimit.New(cfg.Server.CommandRPS, cfg.Server.CommandBurst)
	}

	handler := api.NewServer(playerService, streamHandler, v, limiter, cfg.Server.AllowedOrigins, log.WithComponent("api").Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, limiter: limiter}, nil
}
