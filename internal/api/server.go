package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/dropzone/internal/api/models"
	"github.com/smazurov/dropzone/internal/events"
	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/version"
)

const authRealm = `Basic realm="Dropzone API"`

// Server is the local control API.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	services   Services
	eventBus   *events.Bus
	logger     *slog.Logger
}

// basicAuthMiddleware creates middleware for HTTP basic authentication
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// Skip auth for operations without security requirements
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		var credentials string
		if authHeader := ctx.Header("Authorization"); authHeader != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(authHeader, prefix) {
				s.unauthorized(ctx, "Invalid authentication type")
				return
			}
			decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
			if err != nil {
				s.unauthorized(ctx, "Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		} else if queryAuth := ctx.Query("auth"); queryAuth != "" {
			// EventSource cannot set headers, so SSE clients pass credentials in the query
			decoded, err := base64.StdEncoding.DecodeString(queryAuth)
			if err != nil {
				s.unauthorized(ctx, "Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		}

		if credentials == "" {
			s.unauthorized(ctx, "Authentication required")
			return
		}

		user, pass, ok := strings.Cut(credentials, ":")
		if !ok {
			s.unauthorized(ctx, "Invalid credentials format")
			return
		}
		if user != username || pass != password {
			s.unauthorized(ctx, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

func (s *Server) unauthorized(ctx huma.Context, msg string, errs ...error) {
	ctx.SetHeader("WWW-Authenticate", authRealm)
	huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
}

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	CORSOrigin        string
	Services          Services
	EventBus          *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// NewServer creates the API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	if opts.CORSOrigin != "" {
		corsConfig.AllowOrigin = opts.CORSOrigin
	}
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("Dropzone API", version.Get().Version)
	config.Info.Description = "Skydiving video trimming, splitting and preview assembly"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	bus := opts.EventBus
	if bus == nil {
		bus = events.New()
	}

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		services: opts.Services,
		eventBus: bus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Registered before the API routes so CORS handling does not shadow it
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves the API on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting Dropzone API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down without waiting for SSE clients.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	if s.services.Hardware != nil {
		s.registerHardwareRoutes()
	}
	if s.services.Prober != nil {
		s.registerMediaRoutes()
	}
	if s.services.Cutter != nil {
		s.registerCutRoutes()
	}
	if s.services.Preview != nil {
		s.registerPreviewRoutes()
	}
	if s.services.Cache != nil {
		s.registerCacheRoutes()
	}
	if s.services.History != nil {
		s.registerHistoryRoutes()
	}
	if s.services.Uploader != nil {
		s.registerUploadRoutes()
	}

	s.registerLogRoutes()
	s.registerSSERoutes()
	s.registerMetricsRoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
