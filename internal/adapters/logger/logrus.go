// Package logger adapts logrus to the ports.Logger interface, with optional
// size-based file rotation.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config for the logrus adapter.
type Config struct {
	Level string // debug, info, warn, error; defaults to info
	// FilePath, when set, sends output to a rotated log file instead of
	// stderr.
	FilePath   string
	MaxSizeMB  int // rotation threshold, defaults to 50
	MaxBackups int // rotated files kept, defaults to 3
}

// Logger implements ports.Logger on logrus.
type Logger struct {
	l *logrus.Logger
}

// New creates a configured logrus adapter.
func New(cfg Config) *Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	l.SetLevel(ParseLevel(cfg.Level))

	var out io.Writer = os.Stderr
	if cfg.FilePath != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}
		out = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   true,
		}
	}
	l.SetOutput(out)

	return &Logger{l: l}
}

// ParseLevel converts a string level to a logrus level, defaulting to Info.
func ParseLevel(s string) logrus.Level {
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func entry(l *logrus.Logger, fields ...map[string]interface{}) *logrus.Entry {
	if len(fields) > 0 && fields[0] != nil {
		return l.WithFields(logrus.Fields(fields[0]))
	}
	return logrus.NewEntry(l)
}

// Debug logs a message at Debug level.
func (a *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	entry(a.l, fields...).Debug(msg)
}

// Info logs a message at Info level.
func (a *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	entry(a.l, fields...).Info(msg)
}

// Warn logs a message at Warning level.
func (a *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	entry(a.l, fields...).Warn(msg)
}

// Error logs an error message at Error level.
func (a *Logger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	e := entry(a.l, fields...)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}
