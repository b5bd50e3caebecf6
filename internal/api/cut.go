package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dropzone/internal/api/models"
	"github.com/smazurov/dropzone/internal/cutter"
	"github.com/smazurov/dropzone/internal/events"
	"github.com/smazurov/dropzone/internal/ffmpeg"
)

func (s *Server) registerCutRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "trim-video",
		Method:      http.MethodPost,
		Path:        "/api/cut/trim",
		Summary:     "Trim Video",
		Description: "Keep [start, end) of a file, rewriting it in place with the cheapest correct strategy",
		Tags:        []string{"cut"},
		Errors:      []int{400, 401, 404, 409, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.TrimRequest) (*models.TrimResponse, error) {
		in := input.Body
		if err := requireFile(in.Path); err != nil {
			return nil, err
		}
		if in.End <= in.Start {
			return nil, huma.Error400BadRequest("end must be after start")
		}

		plan, err := s.services.Cutter.Trim(ctx, in.Path, in.Start, in.End, s.cutOptions("trim", in.Path, in.Software)...)
		s.publishCut("trim", in.Path, string(plan.Strategy), err)
		if err != nil {
			return nil, s.mapEngineError(err)
		}

		resp := &models.TrimResponse{}
		resp.Body.Path = in.Path
		resp.Body.Plan = plan
		resp.Body.Duration = plan.Duration()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "split-video",
		Method:      http.MethodPost,
		Path:        "/api/cut/split",
		Summary:     "Split Video",
		Description: "Cut a file into two parts at a point in time. The source is left untouched.",
		Tags:        []string{"cut"},
		Errors:      []int{400, 401, 404, 409, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SplitRequest) (*models.SplitResponse, error) {
		in := input.Body
		if err := requireFile(in.Path); err != nil {
			return nil, err
		}
		first, second := in.First, in.Second
		if first == "" || second == "" {
			first, second = cutter.SplitOutputs(in.Path)
		}

		plan, err := s.services.Cutter.Split(ctx, in.Path, in.At, first, second, s.cutOptions("split", in.Path, in.Software)...)
		s.publishCut("split", in.Path, string(plan.Strategy), err)
		if err != nil {
			return nil, s.mapEngineError(err)
		}

		resp := &models.SplitResponse{}
		resp.Body.First = first
		resp.Body.Second = second
		resp.Body.Plan = plan
		return resp, nil
	})
}

func (s *Server) cutOptions(op, path string, software bool) []cutter.EncodeOption {
	opts := []cutter.EncodeOption{
		cutter.WithProgress(func(percent float64, _ ffmpeg.Progress) {
			s.eventBus.Publish(events.CutProgressEvent{Path: path, Operation: op, Percent: percent})
		}),
	}
	if software {
		opts = append(opts, cutter.WithSoftware())
	}
	return opts
}

func (s *Server) publishCut(op, path, strategy string, err error) {
	ev := events.CutFinishedEvent{
		Path:      path,
		Operation: op,
		Strategy:  strategy,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.eventBus.Publish(ev)
}
