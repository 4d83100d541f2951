// Package slogpretty - читаемый обработчик slog для локального запуска.
package slogpretty

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/exp/slog"
)

type Options struct {
	Level slog.Leveler
}

// Handler печатает "[time] LEVEL message {attrs}" с цветным уровнем.
type Handler struct {
	opts  Options
	mu    *sync.Mutex
	out   *stdlog.Logger
	attrs []slog.Attr
	group string
}

func (o Options) NewHandler(w io.Writer) *Handler {
	if o.Level == nil {
		o.Level = slog.LevelInfo
	}
	return &Handler{
		opts: o,
		mu:   &sync.Mutex{},
		out:  stdlog.New(w, "", 0),
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	switch {
	case r.Level >= slog.LevelError:
		level = color.RedString(level)
	case r.Level >= slog.LevelWarn:
		level = color.YellowString(level)
	case r.Level >= slog.LevelInfo:
		level = color.BlueString(level)
	default:
		level = color.MagentaString(level)
	}

	fields := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		fields[h.key(a.Key)] = attrValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[h.key(a.Key)] = attrValue(a.Value)
		return true
	})

	var extra string
	if len(fields) > 0 {
		raw, err := json.MarshalIndent(fields, "", "  ")
		if err != nil {
			return fmt.Errorf("encode log attrs: %w", err)
		}
		extra = color.WhiteString(string(raw))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.out.Println(r.Time.Format("[15:04:05.000]"), level, color.CyanString(r.Message), extra)
	return nil
}

func (h *Handler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		if s, ok := v.Any().(fmt.Stringer); ok {
			return s.String()
		}
		return v.Any()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindGroup:
		m := make(map[string]any)
		for _, a := range v.Group() {
			m[a.Key] = attrValue(a.Value)
		}
		return m
	default:
		return v.Any()
	}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *Handler) WithGroup(name string) slog.Handler {
	next := *h
	next.group = h.key(name)
	return &next
}
