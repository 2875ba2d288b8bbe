package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fatih/color"
)

// consoleHandler is a minimal slog.Handler that renders records as
// "HH:MM:SS LEVEL msg key=value ...", colourising the level the way
// cmd/cpu/exec.go colourises instruction traces (FgGreen/FgYellow/FgRed
// per severity) when colour isn't disabled.
type consoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Level
	color  bool
	attrs  []slog.Attr
	groups []string
}

func newConsoleHandler(w io.Writer, level slog.Level, noColor bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, color: !noColor}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	level := h.levelString(r.Level)
	fmt.Fprintf(h.w, "%s %s %s", r.Time.Format(time.TimeOnly), level, r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, " %s=%v", a.Key, a.Value)
		return true
	})
	fmt.Fprintln(h.w)
	return nil
}

func (h *consoleHandler) levelString(l slog.Level) string {
	text := l.String()
	if !h.color {
		return text
	}
	switch {
	case l >= slog.LevelError:
		return color.New(color.FgRed, color.Bold).Sprint(text)
	case l >= slog.LevelWarn:
		return color.New(color.FgYellow).Sprint(text)
	case l >= slog.LevelInfo:
		return color.New(color.FgGreen).Sprint(text)
	default:
		return color.New(color.FgHiBlack).Sprint(text)
	}
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}
