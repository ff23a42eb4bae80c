// Package log provides the process-wide structured logger. It mirrors
// LinkMgrdMain's -v/-e verbosity and extra-log-file flags: console JSON
// by default, or a lumberjack-rotated file when a log file path is given.
package log

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logger, assigned by CreateLogger during
// daemon startup. Packages that have no reference to an injected logger
// read this field.
var Logger Interface = CreateLogger(zap.NewAtomicLevelAt(zapcore.InfoLevel), "")

// Interface is satisfied by *daemonLogger. It is the logging surface
// every linkmgrd package depends on instead of *zap.SugaredLogger
// directly, so Errorw can special-case context.Canceled.
type Interface interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Sync() error
}

type daemonLogger struct {
	*zap.SugaredLogger
}

// Errorw logs at error level, except a context.Canceled cause, which is
// logged at warn: shutdown races routinely surface it and it is not an
// operational failure.
func (l *daemonLogger) Errorw(msg string, keysAndValues ...interface{}) {
	for i := 1; i < len(keysAndValues); i += 2 {
		if errors.Is(asError(keysAndValues[i]), context.Canceled) {
			l.SugaredLogger.Warnw(msg, keysAndValues...)
			return
		}
	}
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}

func asError(v interface{}) error {
	err, _ := v.(error)
	return err
}

// ParseLogLevel parses a linkmgrd verbosity string ("", "debug", "info",
// "warn", "error") into a zap atomic level. An empty string defaults to
// info, matching LinkMgrdMain's default -v behavior.
func ParseLogLevel(level string) (zap.AtomicLevel, error) {
	if level == "" {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zap.AtomicLevel{}, err
	}
	return zap.NewAtomicLevelAt(l), nil
}

// CreateLoggerWithLumberjack builds a logger writing JSON lines to a
// lumberjack-rotated file, used when -e/--extra_log_file is set.
func CreateLoggerWithLumberjack(path string, maxSizeMB int, level zapcore.Level) Interface {
	writer := &lumberjack.Logger{
		Filename: path,
		MaxSize:  maxSizeMB,
		Compress: true,
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)
	core := zapcore.NewCore(encoder, zapcore.AddSync(writer), level)
	return &daemonLogger{zap.New(core, zap.AddCaller()).Sugar()}
}

// CreateLogger builds the process logger: a lumberjack file sink when
// logFile is non-empty, otherwise a console JSON sink at the given
// atomic level.
func CreateLogger(level zap.AtomicLevel, logFile string) Interface {
	if logFile != "" {
		return CreateLoggerWithLumberjack(logFile, 100, level.Level())
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zl, err := cfg.Build(zap.AddCaller())
	if err != nil {
		zl = zap.NewNop()
	}
	return &daemonLogger{zl.Sugar()}
}
