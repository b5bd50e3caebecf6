package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dropzone/internal/api/models"
	"github.com/smazurov/dropzone/internal/cache"
)

func (s *Server) registerMediaRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "probe-video",
		Method:      http.MethodGet,
		Path:        "/api/media/probe",
		Summary:     "Probe Video",
		Description: "Read duration, codec, resolution, frame rate and audio properties of a file",
		Tags:        []string{"media"},
		Errors:      []int{400, 401, 404, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.PathQuery) (*models.ProbeResponse, error) {
		if err := requireFile(input.Path); err != nil {
			return nil, err
		}
		info, err := s.services.Prober.VideoInfo(ctx, input.Path)
		if err != nil {
			return nil, s.mapEngineError(err)
		}
		resp := &models.ProbeResponse{}
		resp.Body.Path = input.Path
		resp.Body.Info = info
		resp.Body.Duration = cache.FormatDuration(info.Duration())
		resp.Body.Label = cache.FormatLabel(info)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-keyframes",
		Method:      http.MethodGet,
		Path:        "/api/media/keyframes",
		Summary:     "Keyframes",
		Description: "List keyframe timestamps. An empty list means the file has to be re-encoded to cut.",
		Tags:        []string{"media"},
		Errors:      []int{400, 401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.KeyframesRequest) (*models.KeyframesResponse, error) {
		if err := requireFile(input.Path); err != nil {
			return nil, err
		}
		idx := s.services.Prober.Keyframes(ctx, input.Path, input.Refresh)
		resp := &models.KeyframesResponse{}
		resp.Body.Path = input.Path
		resp.Body.Count = len(idx)
		resp.Body.Keyframes = append([]float64{}, idx...)
		return resp, nil
	})
}
