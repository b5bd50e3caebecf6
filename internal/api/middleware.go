package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dropzone/internal/logging"
)

// HTTPLoggingMiddleware logs requests at a level derived from the status code.
// Long-lived SSE streams are logged when they close.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	method := ctx.Method()
	logAttrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", ctx.URL().Path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if op := ctx.Operation(); op != nil && op.OperationID != "" {
		logAttrs = append(logAttrs, slog.String("operation", op.OperationID))
	}
	if userAgent := ctx.Header("User-Agent"); userAgent != "" {
		logAttrs = append(logAttrs, slog.String("user_agent", userAgent))
	}

	next(ctx)

	status := ctx.Status()
	logAttrs = append(logAttrs,
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)

	level := slog.LevelInfo
	switch {
	case method == http.MethodOptions:
		level = slog.LevelDebug
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx.Context(), level, "HTTP request completed", logAttrs...)
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowOrigin  string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int
}

// DefaultCORSConfig allows any origin; the API binds to localhost by default.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "Accept", "Origin", "Last-Event-ID"},
		MaxAge:       86400,
	}
}

func (c CORSConfig) headers() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  c.AllowOrigin,
		"Access-Control-Allow-Methods": strings.Join(c.AllowMethods, ", "),
		"Access-Control-Allow-Headers": strings.Join(c.AllowHeaders, ", "),
		"Access-Control-Max-Age":       strconv.Itoa(c.MaxAge),
	}
}

// NewCORSMiddleware sets CORS headers on every API response.
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	headers := config.headers()
	return func(ctx huma.Context, next func(huma.Context)) {
		for k, v := range headers {
			ctx.SetHeader(k, v)
		}
		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}
		next(ctx)
	}
}

// AddCORSHandler answers preflight requests, which never reach huma's
// middleware because no operation is registered for OPTIONS.
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	headers := config.headers()
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, _ *http.Request) {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
