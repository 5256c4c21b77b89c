// Package build carries the daemon-side logging plumbing: a fan-out log
// handler so records reach both the console and a rotating log file, and the
// rotating file writer itself.
package build

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// HandlerSet mirrors one stream of log records onto several btclog handlers,
// which is how the daemon keeps its console and file logs identical. The
// level is fixed at construction from the daemon's --log-level flag and
// pushed down to every member; the method set below is dictated by the
// btclog.Handler and slog.Handler interfaces.
type HandlerSet struct {
	level    btclog.Level
	handlers []btclogv2.Handler
}

// NewHandlerSet builds a fan-out handler over the given members, all pinned
// to the given level.
func NewHandlerSet(level btclog.Level,
	handlers ...btclogv2.Handler) *HandlerSet {

	h := &HandlerSet{handlers: handlers}
	h.SetLevel(level)

	return h
}

// Enabled reports whether a record at the given level would reach every
// member.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle mirrors the record onto every member, stopping at the first one
// that errors.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs fans out attribute attachment, producing a plain slog fan-out
// since the btclog surface is not needed past this point.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &slogFanout{handlers: make([]slog.Handler, len(h.handlers))}
	for i, handler := range h.handlers {
		out.handlers[i] = handler.WithAttrs(attrs)
	}

	return out
}

// WithGroup fans out group scoping.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithGroup(name string) slog.Handler {
	out := &slogFanout{handlers: make([]slog.Handler, len(h.handlers))}
	for i, handler := range h.handlers {
		out.handlers[i] = handler.WithGroup(name)
	}

	return out
}

// SubSystem fans out the sub-system tag, keeping the members' levels.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SubSystem(tag string) btclogv2.Handler {
	out := &HandlerSet{
		level:    h.level,
		handlers: make([]btclogv2.Handler, len(h.handlers)),
	}
	for i, handler := range h.handlers {
		out.handlers[i] = handler.SubSystem(tag)
	}

	return out
}

// SetLevel pushes a new level down to every member.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SetLevel(level btclog.Level) {
	for _, handler := range h.handlers {
		handler.SetLevel(level)
	}
	h.level = level
}

// Level reports the level the set is pinned to.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) Level() btclog.Level {
	return h.level
}

// WithPrefix fans out message prefixing, keeping the members' levels.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) WithPrefix(prefix string) btclogv2.Handler {
	out := &HandlerSet{
		level:    h.level,
		handlers: make([]btclogv2.Handler, len(h.handlers)),
	}
	for i, handler := range h.handlers {
		out.handlers[i] = handler.WithPrefix(prefix)
	}

	return out
}

// Ensure HandlerSet implements btclog.Handler at compile time.
var _ btclogv2.Handler = (*HandlerSet)(nil)

// slogFanout mirrors plain slog records onto several slog handlers. It
// backs WithAttrs and WithGroup, whose results leave btclog territory.
type slogFanout struct {
	handlers []slog.Handler
}

// Enabled reports whether a record at the given level would reach every
// member.
//
// NOTE: this is part of the slog.Handler interface.
func (f *slogFanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range f.handlers {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle mirrors the record onto every member, stopping at the first one
// that errors.
//
// NOTE: this is part of the slog.Handler interface.
func (f *slogFanout) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range f.handlers {
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs fans out attribute attachment.
//
// NOTE: this is part of the slog.Handler interface.
func (f *slogFanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &slogFanout{handlers: make([]slog.Handler, len(f.handlers))}
	for i, handler := range f.handlers {
		out.handlers[i] = handler.WithAttrs(attrs)
	}

	return out
}

// WithGroup fans out group scoping.
//
// NOTE: this is part of the slog.Handler interface.
func (f *slogFanout) WithGroup(name string) slog.Handler {
	out := &slogFanout{handlers: make([]slog.Handler, len(f.handlers))}
	for i, handler := range f.handlers {
		out.handlers[i] = handler.WithGroup(name)
	}

	return out
}
