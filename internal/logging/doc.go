// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//   - Appends JSON lines to a log file when Config.File is set (desktop installs)
//   - Keeps the latest entries in a ring buffer for GET /api/logs and the
//     log-entry SSE event
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"cutter": "debug",  // Per-module overrides
//			"api":    "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("preview")
//	logger.Info("Starting up", "port", 8090)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("preview").With("job", id)
//	logger.Info("Build started")  // Includes job in all logs
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// The system automatically detects available outputs:
//
//	Journal available + stdout available → MultiHandler (both)
//	Journal available only              → JournalHandler
//	Stdout available only               → TextHandler or JSONHandler
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t dropzone              # All dropzone logs
//	journalctl -t dropzone -f           # Follow live
//	journalctl -t dropzone --since "5m" # Last 5 minutes
//	journalctl -t dropzone -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t dropzone DROPZONE_MODULE=cutter
//	journalctl -t dropzone JOB=6f1c
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	file = "/var/log/dropzone/dropzone.log"
//
//	[logging.modules]
//	cutter = "debug"
//	api = "warn"
//	hardware = "error"
package logging
