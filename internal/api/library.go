package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dropzone/internal/api/models"
	"github.com/smazurov/dropzone/internal/cache"
)

func (s *Server) registerCacheRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cache",
		Method:      http.MethodGet,
		Path:        "/api/cache",
		Summary:     "Working Copies",
		Description: "Cached working copies with their source identity, format and metadata",
		Tags:        []string{"preview"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.CacheResponse, error) {
		entries := s.services.Cache.Entries()
		resp := &models.CacheResponse{}
		resp.Body.Entries = entries
		resp.Body.Count = len(entries)
		return resp, nil
	})
}

func (s *Server) registerHistoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-history",
		Method:      http.MethodGet,
		Path:        "/api/history",
		Summary:     "Processed Clips",
		Description: "Clips already processed or uploaded, most recent first",
		Tags:        []string{"history"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.HistoryListRequest) (*models.HistoryListResponse, error) {
		records, err := s.services.History.List(ctx, input.Limit)
		if err != nil {
			return nil, s.mapEngineError(err)
		}
		resp := &models.HistoryListResponse{}
		resp.Body.Records = records
		resp.Body.Count = len(records)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "mark-history",
		Method:      http.MethodPost,
		Path:        "/api/history",
		Summary:     "Record Clip",
		Description: "Record the processing outcome of a clip",
		Tags:        []string{"history"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.HistoryMarkRequest) (*models.HistoryRecordResponse, error) {
		in := input.Body
		if err := requireFile(in.Path); err != nil {
			return nil, err
		}
		id, err := cache.NewIdentity(in.Path)
		if err != nil {
			return nil, s.mapEngineError(err)
		}
		if err := s.services.History.MarkProcessed(ctx, id, in.Status, in.Path, in.Message); err != nil {
			return nil, s.mapEngineError(err)
		}
		rec, _, err := s.services.History.Status(ctx, id)
		if err != nil {
			return nil, s.mapEngineError(err)
		}
		return &models.HistoryRecordResponse{Body: rec}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-history-record",
		Method:      http.MethodGet,
		Path:        "/api/history/{name}/{size}",
		Summary:     "Clip Record",
		Description: "Processing record of one clip identity",
		Tags:        []string{"history"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.IdentityPath) (*models.HistoryRecordResponse, error) {
		rec, ok, err := s.services.History.Status(ctx, cache.Identity{Name: input.Name, Size: input.Size})
		if err != nil {
			return nil, s.mapEngineError(err)
		}
		if !ok {
			return nil, huma.Error404NotFound("no record for " + input.Name)
		}
		return &models.HistoryRecordResponse{Body: rec}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "forget-history-record",
		Method:        http.MethodDelete,
		Path:          "/api/history/{name}/{size}",
		Summary:       "Forget Clip",
		Description:   "Remove a clip from the history so the next import processes it again",
		Tags:          []string{"history"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404, 500},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.IdentityPath) (*struct{}, error) {
		ok, err := s.services.History.Forget(ctx, cache.Identity{Name: input.Name, Size: input.Size})
		if err != nil {
			return nil, s.mapEngineError(err)
		}
		if !ok {
			return nil, huma.Error404NotFound("no record for " + input.Name)
		}
		return &struct{}{}, nil
	})
}
