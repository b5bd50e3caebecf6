package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dropzone/internal/api/models"
	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/events"
	"github.com/smazurov/dropzone/internal/history"
	"github.com/smazurov/dropzone/internal/upload"
)

func (s *Server) registerUploadRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "upload-dir",
		Method:      http.MethodPost,
		Path:        "/api/upload",
		Summary:     "Upload Directory",
		Description: "Copy an export directory to the configured club share",
		Tags:        []string{"upload"},
		Errors:      []int{401, 502},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.UploadRequest) (*models.UploadResponse, error) {
		var srv upload.Server
		if s.services.UploadServer != nil {
			srv = s.services.UploadServer()
		}

		ok, msg := s.services.Uploader.Upload(ctx, input.Body.Dir, srv)
		s.eventBus.Publish(events.UploadFinishedEvent{
			Dir:       input.Body.Dir,
			Success:   ok,
			Message:   msg,
			Timestamp: time.Now().Format(time.RFC3339),
		})
		if ok {
			s.recordUploaded(ctx, input.Body.Dir, msg)
		}

		if !ok {
			return nil, huma.Error502BadGateway(msg)
		}
		resp := &models.UploadResponse{}
		resp.Body.Success = true
		resp.Body.Message = msg
		return resp, nil
	})
}

// recordUploaded marks the top-level files of dir as uploaded.
func (s *Server) recordUploaded(ctx context.Context, dir, msg string) {
	if s.services.History == nil {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		id, err := cache.NewIdentity(path)
		if err != nil {
			continue
		}
		if err := s.services.History.MarkProcessed(ctx, id, history.StatusUploaded, path, msg); err != nil {
			s.logger.Warn("Failed to record upload", "path", path, "error", err)
		}
	}
}
