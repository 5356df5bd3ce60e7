package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-player/internal/domain"
)

func (s *Server) registerProgressRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/progress",
		Summary:     "List progress",
		Description: "Returns the listener's saved progress, most recent first",
		Tags:        []string{"Progress"},
	}, s.handleListProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "getProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/progress/{trackID}",
		Summary:     "Get progress",
		Description: "Returns the listener's saved progress for a track",
		Tags:        []string{"Progress"},
	}, s.handleGetProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "resetProgress",
		Method:      http.MethodDelete,
		Path:        "/api/v1/progress/{trackID}",
		Summary:     "Reset progress",
		Description: "Forgets the saved position so the next load starts from the beginning",
		Tags:        []string{"Progress"},
	}, s.handleResetProgress)
}

// === DTOs ===

// ProgressInput identifies a track's progress.
type ProgressInput struct {
	TrackID string `path:"trackID" doc:"Track ID"`
}

// ProgressOutput wraps one progress record for Huma.
type ProgressOutput struct {
	Body *domain.ProgressRecord
}

// ProgressListOutput wraps progress records for Huma.
type ProgressListOutput struct {
	Body []*domain.ProgressRecord
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleListProgress(ctx context.Context, _ *struct{}) (*ProgressListOutput, error) {
	records, err := s.playerService.ListProgress(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	return &ProgressListOutput{Body: records}, nil
}

func (s *Server) handleGetProgress(ctx context.Context, input *ProgressInput) (*ProgressOutput, error) {
	record, err := s.playerService.GetProgress(ctx, input.TrackID)
	if err != nil {
		return nil, s.fail(err)
	}
	return &ProgressOutput{Body: record}, nil
}

func (s *Server) handleResetProgress(ctx context.Context, input *ProgressInput) (*MessageOutput, error) {
	if err := s.playerService.ResetProgress(ctx, input.TrackID); err != nil {
		return nil, s.fail(err)
	}
	return &MessageOutput{Body: MessageResponse{Message: "Progress reset"}}, nil
}
