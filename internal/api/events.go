package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/dropzone/internal/events"
	"github.com/smazurov/dropzone/internal/preview"
)

// sseEventTypes maps SSE event names to payload types for the OpenAPI schema.
var sseEventTypes = map[string]any{
	"preview-state":     events.PreviewStateEvent{},
	"preview-progress":  events.PreviewProgressEvent{},
	"file-progress":     events.FileProgressEvent{},
	"file-done":         events.FileDoneEvent{},
	"preview-combined":  events.PreviewCombinedEvent{},
	"preview-failed":    events.PreviewFailedEvent{},
	"cut-progress":      events.CutProgressEvent{},
	"cut-finished":      events.CutFinishedEvent{},
	"hardware-detected": events.HardwareDetectedEvent{},
	"upload-finished":   events.UploadFinishedEvent{},
	"settings-reloaded": events.SettingsReloadedEvent{},
	"log-entry":         events.LogEntryEvent{},
}

func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Preview, cut, upload and hardware events. The current preview state is sent on connect.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, sseEventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 64)
		unsubscribe := events.SubscribeAll(s.eventBus, eventCh)
		defer unsubscribe()

		if err := send.Data(s.currentState()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

func (s *Server) currentState() events.PreviewStateEvent {
	ev := events.PreviewStateEvent{
		State:     string(preview.StateEmpty),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if s.services.Preview == nil {
		return ev
	}
	if snap := s.services.Preview.Status().Preview; snap != nil {
		ev.State = string(snap.State)
		ev.Mode = string(snap.Mode)
	}
	return ev
}
