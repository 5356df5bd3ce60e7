package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-player/internal/domain"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health and what the player is doing",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status           string           `json:"status" doc:"Overall status"`
	Uptime           string           `json:"uptime" doc:"Time since the server started"`
	Transport        domain.Transport `json:"transport" doc:"Player transport state"`
	TrackID          string           `json:"track_id,omitempty" doc:"Loaded track, if any"`
	RemainingSeconds float64          `json:"remaining_seconds" doc:"Time left in the loaded track, 0 while unknown"`
	Tracks           int              `json:"tracks" doc:"Number of tracks in the catalog"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	snap := s.player.Snapshot()
	return &HealthOutput{
		Body: HealthResponse{
			Status:           "healthy",
			Uptime:           time.Since(s.startedAt).Round(time.Second).String(),
			Transport:        snap.Transport,
			TrackID:          snap.TrackID(),
			RemainingSeconds: snap.RemainingSeconds(),
			Tracks:           len(s.playerService.ListTracks()),
		},
	}, nil
}
