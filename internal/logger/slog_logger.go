package logger

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"time"
)

// levelTrace sits below slog's Debug
const levelTrace = slog.Level(-8)

// NewSlogLogger returns a text logger writing to w at a fixed level. A nil
// writer means stdout. tz is accepted for symmetry with the file output and
// ignored since console lines carry no timestamp.
func NewSlogLogger(w io.Writer, level LogLevel, _ *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl := parseLevel(string(level))
	return &scopedLogger{
		out:      slog.New(newTextHandler(w, lvl)),
		minLevel: lvl,
	}
}

// scopedLogger is the Logger handed to components
type scopedLogger struct {
	name     string
	out      *slog.Logger
	minLevel slog.Level
	attrs    []slog.Attr
	levels   func(string) slog.Level
}

func (s *scopedLogger) Module(name string) Logger {
	if s == nil {
		return nil
	}
	child := *s
	if s.name != "" {
		child.name = s.name + "." + name
	} else {
		child.name = name
	}
	if s.levels != nil {
		child.minLevel = s.levels(child.name)
	}
	child.attrs = append([]slog.Attr(nil), s.attrs...)
	return &child
}

func (s *scopedLogger) With(fields ...Field) Logger {
	if s == nil {
		return nil
	}
	child := *s
	child.attrs = make([]slog.Attr, 0, len(s.attrs)+len(fields))
	child.attrs = append(child.attrs, s.attrs...)
	for _, f := range fields {
		child.attrs = append(child.attrs, toAttr(f))
	}
	return &child
}

func (s *scopedLogger) WithContext(ctx context.Context) Logger {
	if s == nil {
		return nil
	}
	if id := RequestID(ctx); id != "" {
		return s.With(String(requestIDKey, id))
	}
	return s
}

func (s *scopedLogger) Trace(msg string, fields ...Field) { s.emit(levelTrace, msg, fields) }
func (s *scopedLogger) Debug(msg string, fields ...Field) { s.emit(slog.LevelDebug, msg, fields) }
func (s *scopedLogger) Info(msg string, fields ...Field)  { s.emit(slog.LevelInfo, msg, fields) }
func (s *scopedLogger) Warn(msg string, fields ...Field)  { s.emit(slog.LevelWarn, msg, fields) }

// Error is written regardless of the module level
func (s *scopedLogger) Error(msg string, fields ...Field) {
	if s == nil {
		return
	}
	s.write(slog.LevelError, msg, fields)
}

func (s *scopedLogger) emit(level slog.Level, msg string, fields []Field) {
	if s == nil || level < s.minLevel {
		return
	}
	s.write(level, msg, fields)
}

func (s *scopedLogger) write(level slog.Level, msg string, fields []Field) {
	attrs := make([]slog.Attr, 0, 1+len(s.attrs)+len(fields))
	if s.name != "" {
		attrs = append(attrs, slog.String(moduleKey, s.name))
	}
	attrs = append(attrs, s.attrs...)
	for _, f := range fields {
		attrs = append(attrs, toAttr(f))
	}
	s.out.LogAttrs(context.Background(), level, msg, attrs...)
}

// toAttr converts a Field, hiding values under sensitive keys
func toAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		if v != "" && isSensitiveKey(f.Key) {
			return slog.String(f.Key, redactedValue)
		}
		return slog.String(f.Key, v)
	case float64:
		return slog.Float64(f.Key, math.Round(v*1000)/1000)
	case time.Duration:
		return slog.String(f.Key, v.Round(time.Millisecond).String())
	default:
		return slog.Any(f.Key, v)
	}
}

// newTextHandler writes console lines without timestamps; the process
// supervisor adds its own
func newTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.Attr{}
			case slog.LevelKey:
				a.Value = slog.StringValue(levelName(a.Value))
			}
			return a
		},
	})
}

// newJSONHandler writes file lines with RFC3339 timestamps in tz
func newJSONHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Value = slog.StringValue(a.Value.Time().In(tz).Format(time.RFC3339))
			case slog.LevelKey:
				a.Value = slog.StringValue(levelName(a.Value))
			}
			return a
		},
	})
}

func levelName(v slog.Value) string {
	lvl, ok := v.Any().(slog.Level)
	if !ok {
		return v.String()
	}
	if lvl <= levelTrace {
		return "TRACE"
	}
	return lvl.String()
}

// parseLevel maps a level name to slog; unknown names mean info
func parseLevel(level string) slog.Level {
	switch LogLevel(level) {
	case LogLevelTrace:
		return levelTrace
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
