package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Log *zap.Logger

// Options controls how Init builds the global logger.
type Options struct {
	Level      string // debug/info/warn/error
	File       string // optional rotating file, JSON encoded
	MaxSizeMB  int
	MaxBackups int
	Colour     bool
}

func init() {
	Log = zap.New(consoleCore(zapcore.DebugLevel, true), zap.AddCaller(), zap.AddCallerSkip(1))
}

func consoleEncoderConfig(colour bool) zapcore.EncoderConfig {
	level := zapcore.CapitalLevelEncoder
	if colour {
		level = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   level,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
}

func consoleCore(level zapcore.LevelEnabler, colour bool) zapcore.Core {
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig(colour)),
		zapcore.AddSync(os.Stdout),
		level,
	)
}

// Init replaces the global logger according to opts.
func Init(opts Options) error {
	var lvl zapcore.Level
	if err := lvl.Set(strings.ToLower(strings.TrimSpace(opts.Level))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	atom := zap.NewAtomicLevelAt(lvl)

	cores := []zapcore.Core{consoleCore(atom, opts.Colour)}
	if opts.File != "" {
		if opts.MaxSizeMB <= 0 {
			opts.MaxSizeMB = 100
		}
		if opts.MaxBackups <= 0 {
			opts.MaxBackups = 5
		}
		rotate := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		enc := consoleEncoderConfig(false)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(rotate), atom))
	}

	Set(zap.New(zapcore.NewTee(cores...), zap.AddCaller()))
	return nil
}

// Set swaps the global logger. The caller skip is added here so the
// helpers below report their call site.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	Log = l.WithOptions(zap.AddCallerSkip(1))
}

func Sync() { _ = Log.Sync() }

// 快捷方法
func Info(msg string, fields ...zap.Field) { Log.Info(msg, fields...) }
func Infof(format string, args ...interface{}) {
	Log.Info(fmt.Sprintf(format, args...))
}
func Warn(msg string, fields ...zap.Field) { Log.Warn(msg, fields...) }
func Warnf(format string, args ...interface{}) {
	Log.Warn(fmt.Sprintf(format, args...))
}
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }

func Errorf(format string, args ...interface{}) {
	Log.Error(fmt.Sprintf(format, args...))
}

func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }
func Debugf(format string, args ...interface{}) {
	Log.Debug(fmt.Sprintf(format, args...))
}
