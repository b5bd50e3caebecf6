package logging

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry written by dropzone.
const SyslogIdentifier = "dropzone"

type journalSender func(message string, priority journal.Priority, vars map[string]string) error

// JournalHandler writes records to the systemd journal. The module attribute
// becomes DROPZONE_MODULE so `journalctl DROPZONE_MODULE=cutter` filters one
// logger; other attributes become upper-case fields.
type JournalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
	send   journalSender
}

// NewJournalHandler creates a journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, send: journal.Send}
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]string{"SYSLOG_IDENTIFIER": SyslogIdentifier}
	for _, a := range h.attrs {
		putJournalField(fields, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		putJournalField(fields, h.prefix, a)
		return true
	})
	return h.send(r.Message, journalPriority(r.Level), fields)
}

// WithAttrs implements slog.Handler.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "_"
	return &next
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func putJournalField(fields map[string]string, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			putJournalField(fields, prefix+a.Key+"_", ga)
		}
		return
	}

	key := journalFieldName(prefix + a.Key)
	if key == "MODULE" {
		key = "DROPZONE_MODULE"
	}
	if key == "" {
		return
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindFloat64:
		fields[key] = strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		fields[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			fields[key] = err.Error()
			return
		}
		fields[key] = v.String()
	default:
		fields[key] = v.String()
	}
}

// journalFieldName maps an attribute key to a valid journal field name:
// upper-case letters, digits and underscores, starting with a letter.
func journalFieldName(key string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(key) {
		switch {
		case c >= 'A' && c <= 'Z', c == '_':
			b.WriteRune(c)
		case c >= '0' && c <= '9':
			if b.Len() > 0 {
				b.WriteRune(c)
			}
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "_")
}

// IsJournalAvailable checks if systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
