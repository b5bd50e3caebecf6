package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dropzone/internal/api/models"
	"github.com/smazurov/dropzone/internal/events"
	"github.com/smazurov/dropzone/internal/hardware"
)

func (s *Server) registerHardwareRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-hardware",
		Method:      http.MethodGet,
		Path:        "/api/hardware",
		Summary:     "Hardware Profile",
		Description: "Return the hardware encoder profile, detecting it on first use",
		Tags:        []string{"hardware"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.HardwareResponse, error) {
		p, err := s.services.Hardware.Detect(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("hardware detection failed", err)
		}
		return hardwareResponse(p), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh-hardware",
		Method:      http.MethodPost,
		Path:        "/api/hardware/refresh",
		Summary:     "Refresh Hardware Profile",
		Description: "Discard the cached profile and probe encoders again",
		Tags:        []string{"hardware"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.HardwareResponse, error) {
		p, err := s.services.Hardware.Refresh(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("hardware detection failed", err)
		}
		s.eventBus.Publish(events.HardwareDetectedEvent{
			Available: p.Available,
			Vendor:    string(p.Vendor),
			Encoder:   p.Encoder,
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return hardwareResponse(p), nil
	})
}

func hardwareResponse(p *hardware.Profile) *models.HardwareResponse {
	resp := &models.HardwareResponse{}
	resp.Body.Profile = p
	resp.Body.Summary = p.String()
	return resp
}
