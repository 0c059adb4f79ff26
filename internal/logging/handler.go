package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// swappableHandler is a slog.Handler whose underlying handler can be replaced
// atomically while logging is in progress. Loggers created before a swap keep
// working and pick up the new handler on their next call.
type swappableHandler struct {
	inner atomic.Pointer[slog.Handler]
}

func newSwappableHandler(initial slog.Handler) *swappableHandler {
	h := &swappableHandler{}
	h.inner.Store(&initial)
	return h
}

func (h *swappableHandler) swap(next slog.Handler) {
	h.inner.Store(&next)
}

func (h *swappableHandler) current() slog.Handler {
	return *h.inner.Load()
}

func (h *swappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.current().Enabled(ctx, level)
}

func (h *swappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

func (h *swappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newSwappableHandler(h.current().WithAttrs(attrs))
}

func (h *swappableHandler) WithGroup(name string) slog.Handler {
	return newSwappableHandler(h.current().WithGroup(name))
}
