package api

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs each request through the structured logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// rateLimit rejects commands from a client address that exceeds its budget.
// RealIP runs earlier in the chain, so RemoteAddr is already the client.
func (s *Server) rateLimit(ctx huma.Context, next func(huma.Context)) {
	key := clientKey(ctx.RemoteAddr())
	if !s.limiter.Allow(key) {
		s.logger.Warn("rate limit exceeded", "client", key, "operation", ctx.Operation().OperationID)
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "too many requests, try again shortly")
		return
	}
	next(ctx)
}

// clientKey strips the port from a remote address.
func clientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
