// Package logger provides the structured, leveled logging used across the
// control plane: policy evaluation outcomes, dispatch results, and
// circuit-breaker/cooldown state changes are all logged through it rather
// than via fmt.Println.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger.
type Logger struct {
	*logrus.Logger
}

// Config controls logger construction, matching the log_level option of
// the configured log level (DEBUG/INFO/WARN/ERROR) plus format/output knobs.
type Config struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	Output     string `json:"output" yaml:"output"`
	FilePrefix string `json:"file_prefix" yaml:"file_prefix"`
}

// New creates a Logger from Config.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "kestrel"
		}
		if err := os.MkdirAll("logs", 0o755); err != nil {
			l.Errorf("failed to create logs directory: %v", err)
			break
		}
		logPath := filepath.Join("logs", prefix+".log")
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			l.Errorf("failed to open log file: %v", err)
			break
		}
		l.SetOutput(io.MultiWriter(os.Stdout, file))
	default:
		l.SetOutput(os.Stdout)
	}

	return &Logger{Logger: l}
}

// NewDefault returns a Logger at INFO level writing text to stdout.
func NewDefault() *Logger {
	return New(Config{Level: "info", Format: "text", Output: "stdout"})
}

// WithField returns a log entry with a field attached.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithFields returns a log entry with multiple fields attached.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// WithError returns a log entry carrying the given error.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}
