// Package api provides the local HTTP control surface for the player.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/listenup-player/internal/player"
	"github.com/listenupapp/listenup-player/internal/ratelimit"
	"github.com/listenupapp/listenup-player/internal/service"
	"github.com/listenupapp/listenup-player/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	playerService  *service.PlayerService
	player         *player.Player
	streamHandler  http.Handler
	validator      *validation.Validator
	limiter        *ratelimit.KeyedRateLimiter
	allowedOrigins []string
	startedAt      time.Time
	router         *chi.Mux
	api            huma.API
	logger         *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// streamHandler serves the snapshot stream and may be nil. A nil limiter
// leaves player commands unlimited.
func NewServer(
	playerService *service.PlayerService,
	streamHandler http.Handler,
	validator *validation.Validator,
	limiter *ratelimit.KeyedRateLimiter,
	allowedOrigins []string,
	logger *slog.Logger,
) *Server {
	if validator == nil {
		validator = validation.New()
	}
	s := &Server{
		playerService:  playerService,
		player:         playerService.Player(),
		streamHandler:  streamHandler,
		validator:      validator,
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
		startedAt:      time.Now(),
		router:         chi.NewRouter(),
		logger:         logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("ListenUp Player API", "1.0.0")
	humaConfig.Info.Description = "Local control surface for the audiobook player"
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerPlayerRoutes()
	s.registerProgressRoutes()

	// The snapshot stream is long-lived, so it stays a plain chi route.
	if s.streamHandler != nil {
		s.router.Get("/api/v1/player/stream", s.streamHandler.ServeHTTP)
	}
}
