package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is a duck-typed interface satisfied by *slog.Logger.
// Use this interface instead of *slog.Logger to decouple from the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{} // default level
	isInitialized   bool
	mutex           sync.RWMutex
	logBuffer       *RingBuffer
	logCallback     LogCallback
	logFile         io.WriteCloser
)

// Config represents logging configuration.
type Config struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// File, when set, receives JSON lines in addition to stdout and journal.
	File       string            `toml:"file"`
	BufferSize int               `toml:"buffer_size"`
	Modules    map[string]string `toml:"modules"`
}

// Initialize sets up the logging system. It may be called again to apply
// a reloaded configuration.
func Initialize(config Config) {
	var fileErr error
	// runs after the unlock below; the default handler takes mutex
	defer func() {
		if fileErr != nil {
			slog.Warn("Log file unavailable, continuing without it", "path", config.File, "error", fileErr)
		}
	}()

	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true

	size := config.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	if logBuffer == nil || logBuffer.Cap() != size {
		logBuffer = NewRingBuffer(size)
	}

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	if config.File != "" {
		f, err := openLogFile(config.File)
		if err != nil {
			fileErr = err
		} else {
			logFile = f
		}
	}

	globalLevelVar.Set(levelOrDefault(config.Level, slog.LevelInfo))

	// Handlers created before Initialize() lack the buffer and file sinks,
	// so existing module loggers are rebuilt.
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(module))
		moduleLoggers[module] = slog.New(createHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// Close flushes and closes the log file, if any.
func Close() error {
	mutex.Lock()
	defer mutex.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// GetBuffer returns the log ring buffer for reading historical logs.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetLogCallback sets a callback to be called for each new log entry.
// Used for publishing log events to SSE clients.
func SetLogCallback(callback LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = callback
}

// SetModuleLevel changes the level of one module at runtime. It reports
// false for an unknown level name.
func SetModuleLevel(module, level string) bool {
	parsed := parseLevel(level)
	if parsed == nil {
		return false
	}
	GetLogger(module)

	mutex.Lock()
	defer mutex.Unlock()
	if globalConfig.Modules == nil {
		globalConfig.Modules = make(map[string]string)
	}
	globalConfig.Modules[module] = level
	moduleLevelVars[module].Set(*parsed)
	return true
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	// Double-check in case another goroutine created it
	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		levelVar.Set(moduleLevel(module))
		format = globalConfig.Format
	}

	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// moduleLevel resolves the configured level of module; mutex must be held.
func moduleLevel(module string) slog.Level {
	level := levelOrDefault(globalConfig.Level, slog.LevelInfo)
	if levelStr, exists := globalConfig.Modules[module]; exists {
		level = levelOrDefault(levelStr, level)
	}
	return level
}

// createHandler creates a slog handler with the specified format and level.
// Logs to stdout, journal (when available), the log file (when configured),
// and the ring buffer for SSE streaming; mutex must be held.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdoutHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	if logFile != nil {
		handlers = append(handlers, slog.NewJSONHandler(logFile, opts))
	}

	// Always add buffer handler - it dynamically checks if buffer is available
	handlers = append(handlers, NewBufferHandler(level))

	switch len(handlers) {
	case 0:
		return stdoutHandler // Fallback
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	// Available if terminal, pipe, socket, or regular file (not /dev/null which is ModeDevice)
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

func levelOrDefault(level string, def slog.Level) slog.Level {
	if parsed := parseLevel(level); parsed != nil {
		return *parsed
	}
	return def
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		l := slog.LevelDebug
		return &l
	case "info":
		l := slog.LevelInfo
		return &l
	case "warn", "warning":
		l := slog.LevelWarn
		return &l
	case "error":
		l := slog.LevelError
		return &l
	default:
		return nil
	}
}
