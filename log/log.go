// Package log is a thin facade over zap shared by every layer of the
// endpoint. Log lines go to stderr; an optional rotating file sink can
// be attached with EnableFile. The level is a runtime knob.
package log

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu    sync.Mutex
	atom  = zap.NewAtomicLevelAt(zap.InfoLevel)
	sugar *zap.SugaredLogger
	trace *zap.SugaredLogger
)

func init() {
	rebuild("")
}

func newCore(filePath string) zapcore.Core {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	console := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.Lock(os.Stderr), atom)
	if filePath == "" {
		return console
	}

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	})
	return zapcore.NewTee(console, zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, atom))
}

func rebuild(filePath string) {
	base := zap.New(newCore(filePath)).Sugar()
	sugar = base
	trace = base.With("trace", true)
}

// EnableFile adds a rotating file sink next to the stderr sink.
func EnableFile(path string) {
	mu.Lock()
	defer mu.Unlock()
	rebuild(path)
}

// SetLevel accepts one of: error, info, debug, trace.
// Unknown values keep the current level.
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "error":
		atom.SetLevel(zap.ErrorLevel)
	case "info":
		atom.SetLevel(zap.InfoLevel)
	case "debug", "trace": // zap has no trace level; Trace* tag at debug
		atom.SetLevel(zap.DebugLevel)
	}
}

func Debug(args ...interface{})                 { sugar.Debug(args...) }
func Debugf(format string, args ...interface{}) { sugar.Debugf(format, args...) }
func Info(args ...interface{})                  { sugar.Info(args...) }
func Infof(format string, args ...interface{})  { sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { sugar.Warnf(format, args...) }
func Error(args ...interface{})                 { sugar.Error(args...) }
func Errorf(format string, args ...interface{}) { sugar.Errorf(format, args...) }

func Trace(args ...interface{})                 { trace.Debug(args...) }
func Tracef(format string, args ...interface{}) { trace.Debugf(format, args...) }
