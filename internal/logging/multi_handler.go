package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler fans records out to several sinks (stdout, journal, log
// file and history buffer). A failing sink does not stop the others.
type MultiHandler []slog.Handler

// NewMultiHandler creates a handler writing to every non-nil handler.
func NewMultiHandler(handlers ...slog.Handler) MultiHandler {
	m := make(MultiHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			m = append(m, h)
		}
	}
	return m
}

// Enabled implements slog.Handler.
func (m MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler. Sink errors are joined.
func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs implements slog.Handler.
func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

// WithGroup implements slog.Handler.
func (m MultiHandler) WithGroup(name string) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m MultiHandler) derive(fn func(slog.Handler) slog.Handler) MultiHandler {
	out := make(MultiHandler, len(m))
	for i, h := range m {
		out[i] = fn(h)
	}
	return out
}
