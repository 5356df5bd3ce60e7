package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-player/internal/domain"
)

func (s *Server) registerPlayerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getPlayer",
		Method:      http.MethodGet,
		Path:        "/api/v1/player",
		Summary:     "Get player state",
		Description: "Returns the current player snapshot",
		Tags:        []string{"Player"},
	}, s.handleGetPlayer)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTracks",
		Method:      http.MethodGet,
		Path:        "/api/v1/tracks",
		Summary:     "List tracks",
		Description: "Returns the catalog sorted by title",
		Tags:        []string{"Tracks"},
	}, s.handleListTracks)

	huma.Register(s.api, s.commandOperation(huma.Operation{
		OperationID:   "loadTrack",
		Method:        http.MethodPost,
		Path:          "/api/v1/player/load",
		Summary:       "Load a track",
		Description:   "Loads a catalog track or an ad-hoc track at the listener's saved position. The final transport arrives on the stream.",
		DefaultStatus: http.StatusAccepted,
	}), s.handleLoad)

	s.registerCommand("play", "/play", "Play", "Starts or resumes playback. Playing an ended track restarts it.", s.player.Play)
	s.registerCommand("pause", "/pause", "Pause", "Pauses playback, or disarms autoplay while loading", s.player.Pause)
	s.registerCommand("toggleMute", "/mute", "Toggle mute", "Flips the mute flag", s.player.ToggleMute)
	s.registerCommand("closePlayer", "/close", "Close", "Unloads the track after a final checkpoint and hides the panel", s.player.Close)
	s.registerCommand("openPanel", "/panel/open", "Open panel", "Shows the player panel", s.player.OpenPanel)
	s.registerCommand("closePanel", "/panel/close", "Close panel", "Hides the player panel; playback continues", s.player.ClosePanel)

	huma.Register(s.api, s.commandOperation(huma.Operation{
		OperationID: "seek",
		Method:      http.MethodPost,
		Path:        "/api/v1/player/seek",
		Summary:     "Seek",
		Description: "Moves to an absolute position, clamped to the track",
	}), s.handleSeek)

	huma.Register(s.api, s.commandOperation(huma.Operation{
		OperationID: "skip",
		Method:      http.MethodPost,
		Path:        "/api/v1/player/skip",
		Summary:     "Skip",
		Description: "Moves relative to the current position",
	}), s.handleSkip)

	huma.Register(s.api, s.commandOperation(huma.Operation{
		OperationID: "goToChapter",
		Method:      http.MethodPost,
		Path:        "/api/v1/player/chapter",
		Summary:     "Go to chapter",
		Description: "Jumps to the start of a chapter and plays",
	}), s.handleGoToChapter)

	huma.Register(s.api, s.commandOperation(huma.Operation{
		OperationID: "setVolume",
		Method:      http.MethodPost,
		Path:        "/api/v1/player/volume",
		Summary:     "Set volume",
		Description: "Sets the volume; values outside 0..1 are clamped",
	}), s.handleSetVolume)

	huma.Register(s.api, s.commandOperation(huma.Operation{
		OperationID: "setRate",
		Method:      http.MethodPost,
		Path:        "/api/v1/player/rate",
		Summary:     "Set rate",
		Description: "Sets the playback rate, clamped to the supported range",
	}), s.handleSetRate)
}

// commandOperation tags op as a player command and applies the command
// rate limit when one is configured.
func (s *Server) commandOperation(op huma.Operation) huma.Operation {
	op.Tags = []string{"Player"}
	if s.limiter != nil {
		op.Middlewares = append(op.Middlewares, s.rateLimit)
	}
	return op
}

// registerCommand exposes a parameterless player command that replies with
// the resulting snapshot.
func (s *Server) registerCommand(id, path, summary, description string, fn func(context.Context) error) {
	huma.Register(s.api, s.commandOperation(huma.Operation{
		OperationID: id,
		Method:      http.MethodPost,
		Path:        "/api/v1/player" + path,
		Summary:     summary,
		Description: description,
	}), func(ctx context.Context, _ *struct{}) (*PlayerOutput, error) {
		return s.reply(fn(ctx))
	})
}

// === DTOs ===

// PlayerOutput wraps a player snapshot for Huma.
type PlayerOutput struct {
	Body domain.PlayerState
}

// TracksOutput wraps the catalog for Huma.
type TracksOutput struct {
	Body []domain.Track
}

// LoadRequest loads a catalog track by ID or an ad-hoc track.
type LoadRequest struct {
	TrackID string        `json:"track_id,omitempty" validate:"required_without=Track" doc:"Catalog track to load"`
	Track   *domain.Track `json:"track,omitempty" validate:"required_without=TrackID" doc:"Ad-hoc track to load instead of a catalog entry"`
}

// LoadInput wraps the load request for Huma.
type LoadInput struct {
	Body LoadRequest
}

// LoadResponse reports where a loaded track will start.
type LoadResponse struct {
	Resume *domain.Resume     `json:"resume,omitempty" doc:"Saved position the track resumes from"`
	State  domain.PlayerState `json:"state" doc:"Snapshot right after the load was accepted"`
}

// LoadOutput wraps the load response for Huma.
type LoadOutput struct {
	Body LoadResponse
}

// SeekRequest moves to an absolute position.
type SeekRequest struct {
	PositionSeconds float64 `json:"position_seconds" doc:"Target position in seconds"`
}

// SeekInput wraps the seek request for Huma.
type SeekInput struct {
	Body SeekRequest
}

// SkipRequest moves relative to the current position.
type SkipRequest struct {
	DeltaSeconds float64 `json:"delta_seconds" doc:"Seconds to move; negative goes back"`
}

// SkipInput wraps the skip request for Huma.
type SkipInput struct {
	Body SkipRequest
}

// ChapterRequest jumps to a chapter.
type ChapterRequest struct {
	Number int `json:"number" validate:"gte=1" minimum:"1" doc:"Chapter number, 1-based"`
}

// ChapterInput wraps the chapter request for Huma.
type ChapterInput struct {
	Body ChapterRequest
}

// VolumeRequest sets the volume. Out of range values are clamped.
type VolumeRequest struct {
	Volume float64 `json:"volume" doc:"Volume between 0 and 1"`
}

// VolumeInput wraps the volume request for Huma.
type VolumeInput struct {
	Body VolumeRequest
}

// RateRequest sets the playback rate.
type RateRequest struct {
	Rate float64 `json:"rate" validate:"gt=0" doc:"Playback rate multiplier"`
}

// RateInput wraps the rate request for Huma.
type RateInput struct {
	Body RateRequest
}

// === Handlers ===

// reply converts err, or returns the snapshot the command produced.
func (s *Server) reply(err error) (*PlayerOutput, error) {
	if err != nil {
		return nil, s.fail(err)
	}
	return &PlayerOutput{Body: s.player.Snapshot()}, nil
}

func (s *Server) handleGetPlayer(_ context.Context, _ *struct{}) (*PlayerOutput, error) {
	return &PlayerOutput{Body: s.player.Snapshot()}, nil
}

func (s *Server) handleListTracks(_ context.Context, _ *struct{}) (*TracksOutput, error) {
	return &TracksOutput{Body: s.playerService.ListTracks()}, nil
}

func (s *Server) handleLoad(ctx context.Context, input *LoadInput) (*LoadOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, s.fail(err)
	}

	var (
		resume *domain.Resume
		err    error
	)
	if input.Body.Track != nil {
		resume, err = s.playerService.LoadTrackResuming(ctx, input.Body.Track)
	} else {
		resume, err = s.playerService.LoadTrackByID(ctx, input.Body.TrackID)
	}
	if err != nil {
		return nil, s.fail(err)
	}

	return &LoadOutput{Body: LoadResponse{Resume: resume, State: s.player.Snapshot()}}, nil
}

func (s *Server) handleSeek(ctx context.Context, input *SeekInput) (*PlayerOutput, error) {
	return s.reply(s.player.Seek(ctx, input.Body.PositionSeconds))
}

func (s *Server) handleSkip(ctx context.Context, input *SkipInput) (*PlayerOutput, error) {
	return s.reply(s.player.Skip(ctx, input.Body.DeltaSeconds))
}

func (s *Server) handleGoToChapter(ctx context.Context, input *ChapterInput) (*PlayerOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, s.fail(err)
	}
	return s.reply(s.player.GoToChapter(ctx, input.Body.Number))
}

func (s *Server) handleSetVolume(ctx context.Context, input *VolumeInput) (*PlayerOutput, error) {
	return s.reply(s.player.SetVolume(ctx, input.Body.Volume))
}

func (s *Server) handleSetRate(ctx context.Context, input *RateInput) (*PlayerOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, s.fail(err)
	}
	return s.reply(s.player.SetRate(ctx, input.Body.Rate))
}
