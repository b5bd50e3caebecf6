package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dropzone/internal/api/models"
)

func (s *Server) registerPreviewRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "submit-preview",
		Method:        http.MethodPost,
		Path:          "/api/preview",
		Summary:       "Build Preview",
		Description:   "Start building the combined preview of an ordered clip list. A running build is cancelled and restarted with the new list.",
		Tags:          []string{"preview"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{400, 401, 404},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.PreviewRequest) (*models.JobResponse, error) {
		for _, src := range input.Body.Sources {
			if err := requireFile(src); err != nil {
				return nil, err
			}
		}
		resp := &models.JobResponse{}
		resp.Body.JobID = s.services.Preview.Submit(input.Body.Sources)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-preview",
		Method:      http.MethodGet,
		Path:        "/api/preview",
		Summary:     "Preview Status",
		Description: "Current build job, orchestrator state and progress",
		Tags:        []string{"preview"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.PreviewStatusResponse, error) {
		return &models.PreviewStatusResponse{Body: s.services.Preview.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "cancel-preview",
		Method:      http.MethodPost,
		Path:        "/api/preview/cancel",
		Summary:     "Cancel Preview",
		Description: "Stop the running build. Cancelling discards all working copies.",
		Tags:        []string{"preview"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.CancelResponse, error) {
		resp := &models.CancelResponse{}
		resp.Body.Cancelled = s.services.Preview.Cancel()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "retry-preview",
		Method:        http.MethodPost,
		Path:          "/api/preview/retry",
		Summary:       "Retry Preview",
		Description:   "Rebuild the last submitted clip list, reusing cached working copies",
		Tags:          []string{"preview"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401, 404, 409},
		Security:      withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.JobResponse, error) {
		id, err := s.services.Preview.Retry()
		if err != nil {
			return nil, s.mapEngineError(err)
		}
		resp := &models.JobResponse{}
		resp.Body.JobID = id
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "reset-preview",
		Method:        http.MethodDelete,
		Path:          "/api/preview",
		Summary:       "Reset Preview",
		Description:   "Delete every working copy and the combined preview. The last clip list stays available to retry.",
		Tags:          []string{"preview"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 409},
		Security:      withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		if err := s.services.Preview.Reset(); err != nil {
			return nil, s.mapEngineError(err)
		}
		s.logger.Info("Preview reset over API")
		return &struct{}{}, nil
	})
}
