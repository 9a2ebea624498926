// Package logger is the structured logging layer of the garden tracker.
//
// One CentralLogger is built at startup from the logging section of the
// configuration. Components never see it directly; they get a Logger scoped
// to their module name:
//
//	cl, err := logger.NewCentralLogger(&settings.Logging)
//	if err != nil {
//	    return err
//	}
//	defer cl.Close()
//
//	storeLog := cl.Module("datastore")
//	storeLog.Info("database opened", logger.String("driver", "sqlite"))
//
// Request handlers call WithContext so lines carry the request id that the
// HTTP layer also returns as the error correlation id.
package logger

import (
	"context"
	"time"
)

// LogLevel is a level name as written in configuration
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

const (
	errorKey     = "error"
	moduleKey    = "module"
	requestIDKey = "request_id"
)

// Field is a key and value attached to one log line
type Field struct {
	Key   string
	Value any
}

// Logger is passed to every component constructor
type Logger interface {
	// Module returns a child logger named parent.name
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that adds fields to every line
	With(fields ...Field) Logger

	// WithContext returns a logger tagged with the request id in ctx, if any
	WithContext(ctx context.Context) Logger
}

type requestIDContextKey struct{}

// WithRequestID stores the request id used by Logger.WithContext
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestID returns the request id stored in ctx
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Uint is used for record identifiers
func Uint(key string, value uint) Field { return Field{Key: key, Value: uint64(value)} }

// Float64 values are rounded to three decimals on output
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration values are rounded to the millisecond on output
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Error records err's message under "error". A nil error logs as null.
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey}
	}
	return Field{Key: errorKey, Value: err.Error()}
}
