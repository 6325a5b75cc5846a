package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/hlsvariant/internal/api/models"
	"github.com/smazurov/hlsvariant/internal/ffmpeg"
)

// registerEncoderRoutes registers the encoder validation results and the
// ffmpeg input option catalog.
func (s *Server) registerEncoderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-encoders",
		Method:      http.MethodGet,
		Path:        "/api/encoders",
		Summary:     "Encoder Validation",
		Description: "Get the results of the last validate-encoders run",
		Tags:        []string{"encoders"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.EncodersResponse, error) {
		resp := &models.EncodersResponse{}
		if s.options.Results == nil {
			return resp, nil
		}

		results, err := s.options.Results.Load()
		if err != nil {
			s.logger.Error("Failed to load encoder validation results", "error", err)
			return nil, huma.Error500InternalServerError("failed to load validation results", err)
		}
		resp.Body.Validated = results != nil
		resp.Body.Results = results
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-ffmpeg-options",
		Method:      http.MethodGet,
		Path:        "/api/options",
		Summary:     "FFmpeg Input Options",
		Description: "List the input options the ffmpeg engine accepts, with their categories and exclusive groups",
		Tags:        []string{"encoders"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.OptionsResponse, error) {
		return &models.OptionsResponse{Body: models.OptionsData{Options: ffmpeg.AllOptions}}, nil
	})
}
