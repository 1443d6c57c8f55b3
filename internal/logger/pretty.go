package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiGray   = "\033[90m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

// PrettyHandler writes one human-oriented line per record:
//
//	[2006-01-02 15:04:05] DEBUG tiles resolved m=1024 tiling=64_1024_64_64_64_64
type PrettyHandler struct {
	level slog.Leveler
	color bool
	w     io.Writer
	mu    *sync.Mutex
	group string
	attrs []slog.Attr
}

func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &PrettyHandler{
		level: level,
		color: isTerminal(w),
		w:     w,
		mu:    &sync.Mutex{},
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	buf = h.paint(buf, ansiGray, "["+r.Time.Format(time.DateTime)+"]")
	buf = append(buf, ' ')
	buf = h.paint(buf, levelColor(r.Level)+ansiBold, fmt.Sprintf("%-5s", r.Level.String()))
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	var attrs strings.Builder
	first := true
	write := func(a slog.Attr) {
		if !first {
			attrs.WriteByte(' ')
		}
		first = false
		writeAttr(&attrs, a, h.group)
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	if attrs.Len() > 0 {
		buf = append(buf, ' ')
		buf = h.paint(buf, ansiCyan, attrs.String())
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		next.group = h.group + "." + name
	} else {
		next.group = name
	}
	return &next
}

func (h *PrettyHandler) paint(buf []byte, code, s string) []byte {
	if !h.color {
		return append(buf, s...)
	}
	buf = append(buf, code...)
	buf = append(buf, s...)
	return append(buf, ansiReset...)
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiBlue
	default:
		return ansiGray
	}
}

func writeAttr(sb *strings.Builder, a slog.Attr, group string) {
	a.Value = a.Value.Resolve()
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for i, ga := range a.Value.Group() {
			if i > 0 {
				sb.WriteByte(' ')
			}
			writeAttr(sb, ga, key)
		}
		return
	}

	sb.WriteString(key)
	sb.WriteByte('=')
	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if needsQuoting(s) {
			fmt.Fprintf(sb, "%q", s)
		} else {
			sb.WriteString(s)
		}
	case slog.KindTime:
		sb.WriteString(a.Value.Time().Format(time.RFC3339))
	default:
		fmt.Fprint(sb, a.Value.Any())
	}
}

func needsQuoting(s string) bool {
	return strings.ContainsAny(s, " \t\n\"=")
}
