// Package logger wraps zerolog with rotation support and the component-scoped
// sub-loggers used throughout the daemon's trace stream.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog with rotation support.
type Logger struct {
	logger zerolog.Logger
	writer io.Writer
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Config holds logger configuration.
type Config struct {
	Path       string
	Level      string
	Format     string // json or console
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Init initializes the global logger exactly once.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		globalLogger, err = New(cfg)
	})
	return err
}

// New creates a standalone logger instance.
func New(cfg Config) (*Logger, error) {
	if cfg.Path != "" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	var writer io.Writer
	if cfg.Path != "" {
		writer = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	} else {
		writer = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var zlog zerolog.Logger
	if cfg.Format == "console" {
		zlog = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	} else {
		zlog = zerolog.New(writer).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zlog = zlog.Level(level)

	return &Logger{logger: zlog, writer: writer}, nil
}

// Get returns the global logger, falling back to a bare stderr logger if Init
// was never called (useful for test scaffolding).
func Get() *Logger {
	if globalLogger == nil {
		globalLogger = &Logger{
			logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
			writer: os.Stderr,
		}
	}
	return globalLogger
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	event := l.logger.Debug()
	l.addFields(event, fields...)
	event.Msg(msg)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	event := l.logger.Info()
	l.addFields(event, fields...)
	event.Msg(msg)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	event := l.logger.Warn()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Drop logs a dropped-frame diagnostic with the drop kind attached.
func (l *Logger) Drop(reason string, fields ...interface{}) {
	event := l.logger.Warn().Str("kind", "drop")
	l.addFields(event, fields...)
	event.Msg(reason)
}

func (l *Logger) Error(msg string, err error, fields ...interface{}) {
	event := l.logger.Error().Err(err)
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Fatal logs and exits with the given process exit code (1 configuration,
// 2 I/O, 3 RCP incompatibility).
func (l *Logger) Fatal(msg string, err error, code int, fields ...interface{}) {
	event := l.logger.Error().Err(err).Int("exit_code", code)
	l.addFields(event, fields...)
	event.Msg(msg)
	os.Exit(code)
}

func (l *Logger) addFields(event *zerolog.Event, fields ...interface{}) {
	if len(fields)%2 != 0 {
		event.Interface("invalid_fields", fields)
		return
	}
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		event.Interface(key, fields[i+1])
	}
}

// WithComponent returns a new logger with a component field, the idiom
// every subsystem uses to tag its trace output.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", component).Logger(), writer: l.writer}
}

// With exposes the underlying zerolog context for components that take a
// bare zerolog.Logger instead of this wrapper.
func (l *Logger) With() zerolog.Context {
	return l.logger.With()
}

// Global convenience functions.

func Debug(msg string, fields ...interface{}) { Get().Debug(msg, fields...) }
func Info(msg string, fields ...interface{})  { Get().Info(msg, fields...) }
func Warn(msg string, fields ...interface{})  { Get().Warn(msg, fields...) }
func Error(msg string, err error, fields ...interface{}) {
	Get().Error(msg, err, fields...)
}
