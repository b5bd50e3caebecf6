package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/dropzone/internal/api/models"
	"github.com/smazurov/dropzone/internal/events"
	"github.com/smazurov/dropzone/internal/logging"
)

type logHistoryRequest struct {
	Module   string `query:"module" doc:"Only entries of this logger module"`
	Level    string `query:"level" enum:"debug,info,warn,error" doc:"Minimum level"`
	AfterSeq uint64 `query:"after" doc:"Only entries with a greater sequence number"`
	Limit    int    `query:"limit" minimum:"0" maximum:"10000" doc:"Newest N matching entries, 0 for all"`
}

type logHistoryResponse struct {
	Body struct {
		Entries []events.LogEntryEvent `json:"entries" doc:"Buffered log entries, oldest first"`
	}
}

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Log History",
		Description: "Recent log entries from the in-memory ring buffer",
		Tags:        []string{"logs"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *logHistoryRequest) (*logHistoryResponse, error) {
		resp := &logHistoryResponse{}
		resp.Body.Entries = bufferedLogs(logging.Filter{
			Module:   input.Module,
			MinLevel: input.Level,
			AfterSeq: input.AfterSeq,
			Limit:    input.Limit,
		})
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logs/{module}/level",
		Summary:     "Set Log Level",
		Description: "Change the level of one logger module until restart",
		Tags:        []string{"logs"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.LogLevelRequest) (*models.LogLevelResponse, error) {
		if !logging.SetModuleLevel(input.Module, input.Body.Level) {
			return nil, huma.Error400BadRequest("unknown level " + input.Body.Level)
		}
		s.logger.Info("Log level changed", "module", input.Module, "level", input.Body.Level)
		resp := &models.LogLevelResponse{}
		resp.Body.Module = input.Module
		resp.Body.Level = input.Body.Level
		return resp, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends historical logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before replaying so nothing logged in between is lost
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		var last uint64
		for _, entry := range bufferedLogs(logging.Filter{}) {
			if err := send.Data(entry); err != nil {
				return
			}
			last = entry.Seq
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				// already replayed from the buffer
				if e, ok := event.(events.LogEntryEvent); ok && e.Seq <= last {
					continue
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

func bufferedLogs(f logging.Filter) []events.LogEntryEvent {
	buffer := logging.GetBuffer()
	if buffer == nil {
		return []events.LogEntryEvent{}
	}
	entries := buffer.Query(f)
	out := make([]events.LogEntryEvent, 0, len(entries))
	for _, entry := range entries {
		out = append(out, LogEvent(entry))
	}
	return out
}

// LogEvent converts a buffered log entry to its event form.
func LogEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}
