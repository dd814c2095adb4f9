// Package logging provides the append-only, secret-masking log writer.
//
// Each record is one line: "[<ISO-8601 UTC>] [<LEVEL>] <message>". Values of
// structured keys that look secret-bearing are replaced before formatting,
// and the message itself is scrubbed of token-shaped substrings. A failed
// write is swallowed: logging must never fail a workflow.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/teamflowhq/teamflow/internal/config"
)

// Logger wraps slog with the teamflow line format.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New opens (or creates) the log file for cfg and returns a Logger at the
// configured level. When the file cannot be opened, the logger degrades to
// a no-op writer rather than failing.
func New(cfg *config.Config) *Logger {
	level := parseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = slog.LevelDebug
	}

	var w io.Writer = io.Discard
	var closer io.Closer
	if err := os.MkdirAll(cfg.LogDir(), 0o755); err == nil {
		f, err := os.OpenFile(cfg.LogFile(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			w = f
			closer = f
		}
	}

	return &Logger{
		Logger: slog.New(newLineHandler(w, level)),
		closer: closer,
	}
}

// NewWriter returns a Logger emitting to w, used by tests and by the
// diagnostics renderer.
func NewWriter(w io.Writer, level slog.Level) *Logger {
	return &Logger{Logger: slog.New(newLineHandler(w, level))}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(newLineHandler(io.Discard, slog.LevelError))}
}

// Close releases the underlying file, if any.
func (l *Logger) Close() {
	if l.closer != nil {
		_ = l.closer.Close()
	}
}

func parseLevel(lv config.LogLevel) slog.Level {
	switch lv {
	case config.LogError:
		return slog.LevelError
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// lineHandler formats records as single masked lines.
type lineHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
}

func newLineHandler(w io.Writer, level slog.Level) *lineHandler {
	return &lineHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *lineHandler) Handle(_ context.Context, rec slog.Record) error {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(rec.Time.UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteString("] [")
	b.WriteString(levelLabel(rec.Level))
	b.WriteString("] ")
	b.WriteString(MaskMessage(rec.Message))

	writeAttr := func(a slog.Attr) {
		val := a.Value.String()
		if IsSensitiveKey(a.Key) {
			val = Masked
		} else {
			val = MaskMessage(val)
		}
		fmt.Fprintf(&b, " %s=%s", a.Key, val)
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	// Write failures are deliberately dropped.
	_, _ = io.WriteString(h.w, b.String())
	return nil
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &lineHandler{mu: h.mu, w: h.w, level: h.level, attrs: merged}
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	// Groups flatten to prefixed keys.
	if name == "" {
		return h
	}
	return h
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// TailFile returns up to n trailing lines of the log file, for the
// diagnostics view. Missing files yield an empty slice.
func TailFile(path string, n int) []string {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
