package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"crimewatch/pkg/errors"
)

var (
	mu           sync.RWMutex
	globalLogger *Logger
)

// Logger is a zap SugaredLogger that forwards errors to a Tracker when one is attached
type Logger struct {
	*zap.SugaredLogger
	tracker errors.Tracker
}

// New wraps an existing zap logger
func New(base *zap.Logger) *Logger {
	return &Logger{SugaredLogger: base.Sugar()}
}

// Nop returns a logger that discards everything, handy in tests
func Nop() *Logger {
	return New(zap.NewNop())
}

// Init builds the process-wide logger. env "production" selects JSON output.
func Init(level string, env string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	base, err := cfg.Build(zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return fmt.Errorf("build zap logger: %w", err)
	}

	mu.Lock()
	globalLogger = New(base)
	mu.Unlock()
	return nil
}

// SetErrorTracker attaches a tracker to the global logger
func SetErrorTracker(tracker errors.Tracker) {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger != nil {
		globalLogger.tracker = tracker
	}
}

// Get returns the global logger, falling back to a development logger before Init
func Get() *Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		base, _ := zap.NewDevelopment()
		globalLogger = New(base)
	}
	return globalLogger
}

// With creates a child logger with additional fields
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		tracker:       l.tracker,
	}
}

// Error logs and reports to the tracker
func (l *Logger) Error(args ...interface{}) {
	l.SugaredLogger.Error(args...)
	l.capture(context.Background(), errors.Wrapf(errors.ErrInternal, "%v", fmt.Sprint(args...)), nil)
}

// Errorf logs and reports to the tracker
func (l *Logger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)
	l.capture(context.Background(), fmt.Errorf(template, args...), nil)
}

// Errorw logs with fields and reports to the tracker. An "error" field, when
// present, is what gets captured.
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
	err := errors.New(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, _ := keysAndValues[i].(string); k == "error" {
			if e, ok := keysAndValues[i+1].(error); ok {
				err = errors.Wrap(e, msg)
			}
		}
	}
	l.capture(context.Background(), err, nil)
}

// ErrorWithContext logs err and reports it with tags
func (l *Logger) ErrorWithContext(ctx context.Context, err error, tags map[string]string) {
	l.SugaredLogger.Errorw(err.Error(), "tags", tags)
	l.capture(ctx, err, tags)
}

func (l *Logger) capture(ctx context.Context, err error, tags map[string]string) {
	if l.tracker == nil {
		return
	}
	if tags == nil {
		tags = map[string]string{"component": "logger"}
	}
	_ = l.tracker.CaptureError(ctx, err, tags)
}

// Sync flushes any buffered log entries
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
