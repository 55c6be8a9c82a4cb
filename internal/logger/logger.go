// Package logger provides the process-wide structured logger for synch.
//
// The package keeps a zap SugaredLogger behind printf-style helpers
// (Infof, Warnf, ...) for operational messages, and hands out a logr.Logger
// through the request or run context for per-item debug logging.
package logger

import (
	"context"
	"os"
	"strings"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls how the logger is built.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `yaml:"level,omitempty"`

	// Format is json or console. Empty means json, or console when Level is debug.
	Format string `yaml:"format,omitempty"`

	// File, when set, additionally writes logs to a rotated file.
	File string `yaml:"file,omitempty"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `yaml:"maxSizeMB,omitempty"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `yaml:"maxBackups,omitempty"`
}

var current atomic.Pointer[zap.SugaredLogger]

func init() {
	current.Store(zap.NewNop().Sugar())
}

// Initialize builds the global logger from cfg and installs it.
func Initialize(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// New builds a zap logger from cfg without installing it.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return nil, err
	}

	format := cfg.Format
	if format == "" {
		format = "json"
		if level == zapcore.DebugLevel {
			format = "console"
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if strings.EqualFold(format, "console") {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	// stderr keeps stdout free for command output
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    defaultInt(cfg.MaxSizeMB, 10),
			MaxBackups: defaultInt(cfg.MaxBackups, 3),
			Compress:   true,
		}
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

// Set installs l as the global logger.
func Set(l *zap.Logger) {
	current.Store(l.Sugar())
}

// Get returns the global sugared logger.
func Get() *zap.SugaredLogger {
	return current.Load()
}

// Debugf logs a formatted message at debug level.
func Debugf(msg string, args ...any) { Get().Debugf(msg, args...) }

// Infof logs a formatted message at info level.
func Infof(msg string, args ...any) { Get().Infof(msg, args...) }

// Warnf logs a formatted message at warn level.
func Warnf(msg string, args ...any) { Get().Warnf(msg, args...) }

// Errorf logs a formatted message at error level.
func Errorf(msg string, args ...any) { Get().Errorf(msg, args...) }

// Fatalf logs a formatted message and exits.
func Fatalf(msg string, args ...any) { Get().Fatalf(msg, args...) }

// Debug logs at debug level.
func Debug(msg string) { Get().Debug(msg) }

// Info logs at info level.
func Info(msg string) { Get().Info(msg) }

// Warn logs at warn level.
func Warn(msg string) { Get().Warn(msg) }

// Error logs at error level.
func Error(msg string) { Get().Error(msg) }

type contextKey struct{}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l logr.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logr.Logger stored in ctx, or one backed by the
// global zap logger when ctx carries none.
func FromContext(ctx context.Context) logr.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(logr.Logger); ok {
			return l
		}
	}
	return zapr.NewLogger(Get().Desugar().WithOptions(zap.AddCallerSkip(-1)))
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
