package logging

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
)

// LogCallback receives every entry after it is buffered. main uses it to
// publish log-entry events without this package importing the event bus.
type LogCallback func(entry LogEntry)

// BufferHandler records into the package history buffer and invokes the
// LogCallback. Both are looked up per record, so handlers built before
// Initialize start recording once it runs.
type BufferHandler struct {
	level  slog.Leveler
	module string
	attrs  map[string]any
	prefix string
}

// NewBufferHandler creates a buffer handler.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return &BufferHandler{level: level, module: "app"}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelName(r.Level),
		Module:     h.module,
		Message:    r.Message,
		Attributes: make(map[string]any, len(h.attrs)+r.NumAttrs()),
	}
	maps.Copy(entry.Attributes, h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "module" && h.prefix == "" {
			entry.Module = a.Value.String()
			return true
		}
		flatten(entry.Attributes, h.prefix, a)
		return true
	})

	mutex.RLock()
	buffer, callback := logBuffer, logCallback
	mutex.RUnlock()

	if buffer != nil {
		entry = buffer.Write(entry)
	}
	if callback != nil {
		callback(entry)
	}
	return nil
}

// WithAttrs implements slog.Handler. Attributes are flattened once here
// rather than per record.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = maps.Clone(h.attrs)
	if next.attrs == nil {
		next.attrs = make(map[string]any, len(attrs))
	}
	for _, a := range attrs {
		if a.Key == "module" && h.prefix == "" {
			next.module = a.Value.String()
			continue
		}
		flatten(next.attrs, h.prefix, a)
	}
	return &next
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// flatten stores a into attrs with dotted keys for groups. Times and
// durations become strings, errors their message.
func flatten(attrs map[string]any, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	key := prefix + a.Key
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		for _, ga := range v.Group() {
			flatten(attrs, key+".", ga)
		}
	case slog.KindTime:
		attrs[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			attrs[key] = err.Error()
			return
		}
		attrs[key] = v.Any()
	default:
		attrs[key] = v.Any()
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// FormatLogLine renders entry the way `dropzone logs` prints it:
// timestamp, level, module, message, then sorted key=value attributes.
func FormatLogLine(entry LogEntry) string {
	var sb strings.Builder
	sb.WriteString(entry.Timestamp.Format(time.RFC3339Nano))
	sb.WriteString(" [" + strings.ToUpper(entry.Level) + "] [" + entry.Module + "] ")
	sb.WriteString(entry.Message)
	for _, k := range sortedKeys(entry.Attributes) {
		sb.WriteString(" " + k + "=")
		sb.WriteString(formatValue(entry.Attributes[k]))
	}
	return sb.String()
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

func formatValue(v any) string {
	s := fmt.Sprint(v)
	if strings.ContainsAny(s, " \t\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
