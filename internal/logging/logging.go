// Package logging wraps log/slog with the two conventions every
// component in this repository follows: one package-level logger per
// component via L("name"), and a single Init call from the binary's
// composition root once config is loaded. Loggers handed out before
// Init transparently pick up the configured handler afterwards.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// KeyComponent is the structured field every L() logger carries.
const KeyComponent = "component"

// deferredHandler proxies to whichever handler Init most recently
// installed, so package-level `var log = logging.L(...)` declarations
// that run before Init still log through the configured handler.
type deferredHandler struct {
	target *atomic.Value // holds handlerBox
	attrs  []slog.Attr
	groups []string
}

// handlerBox gives atomic.Value one concrete type to store, whichever
// slog.Handler implementation (text or JSON) Init installs.
type handlerBox struct{ h slog.Handler }

func newDeferredHandler(h slog.Handler) *deferredHandler {
	target := &atomic.Value{}
	target.Store(handlerBox{h})
	return &deferredHandler{target: target}
}

func (h *deferredHandler) install(handler slog.Handler) {
	h.target.Store(handlerBox{handler})
}

// resolve rebuilds the effective handler chain against the currently
// installed base, replaying any WithGroup/WithAttrs applied to this
// proxy before Init ran.
func (h *deferredHandler) resolve() slog.Handler {
	handler := h.target.Load().(handlerBox).h
	for _, g := range h.groups {
		handler = handler.WithGroup(g)
	}
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	return handler
}

func (h *deferredHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.resolve().Enabled(ctx, level)
}

func (h *deferredHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.resolve().Handle(ctx, record)
}

func (h *deferredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &deferredHandler{
		target: h.target,
		attrs:  merged,
		groups: append([]string{}, h.groups...),
	}
}

func (h *deferredHandler) WithGroup(name string) slog.Handler {
	return &deferredHandler{
		target: h.target,
		attrs:  append([]slog.Attr{}, h.attrs...),
		groups: append(append([]string{}, h.groups...), name),
	}
}

var (
	rootHandler   = newDeferredHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	defaultLogger = slog.New(rootHandler)
)

func init() {
	slog.SetDefault(defaultLogger)
}

// Init installs the configured handler. Call once after config is
// loaded. format is "json" or "text" (default text); level is "debug",
// "info", "warn" or "error" (default info); a nil output means stdout.
func Init(format, level string, output io.Writer) {
	if output == nil {
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	rootHandler.install(handler)
	defaultLogger = slog.New(rootHandler)
	slog.SetDefault(defaultLogger)
}

// L returns a logger tagged with the given component name.
func L(component string) *slog.Logger {
	return defaultLogger.With(slog.String(KeyComponent, component))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
