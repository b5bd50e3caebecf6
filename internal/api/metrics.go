package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dropzone/internal/metrics"
)

type encodeJobsResponse struct {
	Body struct {
		Jobs map[string]*metrics.FFmpegJobMetrics `json:"jobs" doc:"Progress and speed of running ffmpeg jobs keyed by output name"`
	}
}

// registerMetricsRoutes exposes live encode progress. Counters are served
// by the Prometheus handler at /metrics.
func (s *Server) registerMetricsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-encode-jobs",
		Method:      http.MethodGet,
		Path:        "/api/metrics/jobs",
		Summary:     "Running Encodes",
		Description: "Progress of ffmpeg jobs currently running",
		Tags:        []string{"metrics"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*encodeJobsResponse, error) {
		resp := &encodeJobsResponse{}
		resp.Body.Jobs = metrics.GetAllFFmpegMetrics()
		return resp, nil
	})
}
