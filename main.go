package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/dropzone/cmd"
	"github.com/smazurov/dropzone/internal/api"
	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/config"
	"github.com/smazurov/dropzone/internal/events"
	"github.com/smazurov/dropzone/internal/history"
	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/metrics"
	"github.com/smazurov/dropzone/internal/preview"
	"github.com/smazurov/dropzone/internal/upload"
	"github.com/smazurov/dropzone/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to settings file" short:"c" default:"dropzone.toml"`

	// API settings
	Listen       string `help:"Address to listen on" short:"l" default:"127.0.0.1:8090" toml:"api.listen" env:"API_LISTEN"`
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"api.username" env:"API_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"api.password" env:"API_PASSWORD"`
	CORSOrigin   string `help:"Allowed CORS origin" default:"*" toml:"api.cors_origin" env:"API_CORS_ORIGIN"`
	Metrics      bool   `help:"Expose Prometheus metrics at /metrics" default:"true" toml:"api.metrics" env:"API_METRICS"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingFile   string `help:"Also write JSON logs to this file" default:"" toml:"logging.file" env:"LOGGING_FILE"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Module levels and buffer size come from the [logging] table
		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		loggingConfig.File = opts.LoggingFile
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		var (
			server  *api.Server
			watcher *config.Watcher[config.Settings]
			store   *history.Store
			cancel  context.CancelFunc
		)

		hooks.OnStart(func() {
			logger.Info("Starting", "version", version.Banner(), "config", opts.Config)

			settings, err := config.LoadSettings(opts.Config)
			if err != nil {
				logger.Error("Invalid settings", "error", err)
				os.Exit(1)
			}

			eventBus := events.New()
			logging.SetLogCallback(func(entry logging.LogEntry) {
				eventBus.Publish(api.LogEvent(entry))
			})

			engine := cmd.NewEngine(settings)
			orch := engine.Orchestrator(events.NewPreviewNotifier(eventBus))

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			session := preview.NewSession(ctx, orch, logging.GetLogger("preview"))

			historyPath := settings.Paths.History
			if historyPath == "" {
				historyPath = history.DefaultPath()
			}
			store, err = history.Open(historyPath, logging.GetLogger("history"))
			if err != nil {
				logger.Warn("History store unavailable", "path", historyPath, "error", err)
				store = nil
			}
			recordCombined(eventBus, session, store)

			var uploadServer atomic.Pointer[upload.Server]
			uploadServer.Store(&settings.Server)

			watcher = config.NewWatcher(opts.Config, config.LoadSettings, logging.GetLogger("config"),
				config.WithErrorHandler[config.Settings](func(err error) {
					logger.Warn("Settings reload rejected, keeping previous values", "error", err)
				}))
			watcher.OnReload(func(s config.Settings) {
				engine.Apply(s)
				orch.Configure(s.PreviewConfig())
				uploadServer.Store(&s.Server)
				eventBus.Publish(events.SettingsReloadedEvent{
					Path:      opts.Config,
					Timestamp: time.Now().Format(time.RFC3339),
				})
				logger.Info("Settings reloaded", "hardware", s.Processing.HardwareAcceleration, "parallel", s.Processing.Parallel)
			})
			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Failed to start settings watcher, hot-reload disabled", "error", startErr)
				watcher = nil
			}

			services := api.Services{
				Prober:       engine.Prober,
				Cutter:       engine,
				Hardware:     engine.Detector,
				Preview:      session,
				Cache:        engine.Cache,
				Uploader:     upload.NewShareUploader(logging.GetLogger("upload")),
				UploadServer: func() upload.Server { return *uploadServer.Load() },
			}
			if store != nil {
				services.History = store
			}

			apiOpts := &api.Options{
				AuthUsername: opts.AuthUsername,
				AuthPassword: opts.AuthPassword,
				CORSOrigin:   opts.CORSOrigin,
				Services:     services,
				EventBus:     eventBus,
			}
			if opts.Metrics {
				apiOpts.PrometheusHandler = metrics.Handler()
			}
			server = api.NewServer(apiOpts)

			// Warm the hardware profile so the first build does not pay for it
			go func() {
				if p, detectErr := engine.Detector.Detect(ctx); detectErr == nil {
					eventBus.Publish(events.HardwareDetectedEvent{
						Available: p.Available,
						Vendor:    string(p.Vendor),
						Encoder:   p.Encoder,
						Timestamp: time.Now().Format(time.RFC3339),
					})
				}
			}()

			if startErr := server.Start(opts.Listen); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if server != nil {
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
			}
			// Cancelling the base context stops any running build and its ffmpeg processes
			if cancel != nil {
				cancel()
			}
			if watcher != nil {
				_ = watcher.Stop()
			}
			if store != nil {
				_ = store.Close()
			}
			_ = logging.Close()
		})
	})

	cli.Root().Use = version.Name
	cli.Root().Short = "Skydiving video trimming, splitting and preview assembly"
	cli.Root().Version = version.Banner()

	cli.Root().AddCommand(
		cmd.CreateProbeCmd(),
		cmd.CreateKeyframesCmd(),
		cmd.CreateDetectHWCmd(),
		cmd.CreateTrimCmd(),
		cmd.CreateSplitCmd(),
		cmd.CreatePreviewCmd(),
		cmd.CreateHistoryCmd(),
		cmd.CreateUploadCmd(),
		cmd.CreateLogsCmd(),
	)

	cli.Run()
}

// recordCombined marks the sources of every finished preview as processed.
func recordCombined(bus *events.Bus, session *preview.Session, store *history.Store) {
	if store == nil {
		return
	}
	logger := logging.GetLogger("history")
	bus.Subscribe(func(ev events.PreviewCombinedEvent) {
		st := session.Status()
		if st.Job == nil {
			return
		}
		for _, src := range st.Job.Sources {
			id, err := cache.NewIdentity(src)
			if err != nil {
				continue
			}
			if err := store.MarkProcessed(context.Background(), id, history.StatusProcessed, src, ev.Path); err != nil {
				logger.Warn("Failed to record clip", "source", src, "error", err)
			}
		}
	})
}
