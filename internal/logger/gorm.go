package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormOption configures the GORM logger
type GormOption func(*gormLogger)

// WithSlowThreshold logs statements slower than d at WARN
func WithSlowThreshold(d time.Duration) GormOption {
	return func(g *gormLogger) { g.slow = d }
}

// WithSlowQueryHook calls fn for every slow statement, used for metrics
func WithSlowQueryHook(fn func(elapsed time.Duration)) GormOption {
	return func(g *gormLogger) { g.onSlow = fn }
}

// gormLogger routes GORM output into a module logger. Statements go to
// TRACE, failures other than a missing record go to WARN.
type gormLogger struct {
	log    Logger
	slow   time.Duration
	onSlow func(time.Duration)
}

// NewGormLogger returns a GORM logger writing to log
func NewGormLogger(log Logger, opts ...GormOption) gormlogger.Interface {
	g := &gormLogger{log: log}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LogMode is ignored; the module level decides what is written
func (g *gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return g }

func (g *gormLogger) Info(ctx context.Context, format string, args ...any) {
	g.log.WithContext(ctx).Debug(fmt.Sprintf(format, args...))
}

func (g *gormLogger) Warn(ctx context.Context, format string, args ...any) {
	g.log.WithContext(ctx).Warn(fmt.Sprintf(format, args...))
}

func (g *gormLogger) Error(ctx context.Context, format string, args ...any) {
	g.log.WithContext(ctx).Error(fmt.Sprintf(format, args...))
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	stmt, rows := fc()
	log := g.log.WithContext(ctx).With(
		String("sql", stmt),
		Int64("rows", rows),
		Duration("elapsed", elapsed))

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn("statement failed", Error(err))
		return
	}
	if g.slow > 0 && elapsed > g.slow {
		log.Warn("slow statement", Duration("threshold", g.slow))
		if g.onSlow != nil {
			g.onSlow(elapsed)
		}
		return
	}
	log.Trace("statement")
}
