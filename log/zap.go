package log

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

type (
	Level  = zapcore.Level
	Field  = zap.Field
	Option = zap.Option
)

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	FatalLevel = zapcore.FatalLevel
)

type Logger struct {
	l     *zap.Logger
	level Level
}

type ctxKey struct{}

// field helpers
var (
	Skip     = zap.Skip
	Binary   = zap.Binary
	Bool     = zap.Bool
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Int32    = zap.Int32
	Int64    = zap.Int64
	Uint32   = zap.Uint32
	Uint64   = zap.Uint64
	Float32  = zap.Float32
	Float64  = zap.Float64
	Time     = zap.Time
	Duration = zap.Duration
	Any      = zap.Any
)

// options
var (
	WithCaller    = zap.WithCaller
	AddCallerSkip = zap.AddCallerSkip
	AddStacktrace = zap.AddStacktrace
)

var std = New(os.Stderr, InfoLevel)

func ErrorField(err error) Field {
	return zap.Error(err)
}

func ParseLevel(s string) (Level, error) {
	return zapcore.ParseLevel(s)
}

// New creates a json logger writing to out.
func New(out io.Writer, level Level, opts ...Option) *Logger {
	return newLogger(out, level, zap.NewProductionEncoderConfig(), true, opts...)
}

// DevLogger creates a console logger with colored levels.
func DevLogger(out io.Writer, level Level, opts ...Option) *Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return newLogger(out, level, cfg, false, opts...)
}

//nolint:whitespace // can't make both editor and linter happy
func newLogger(
	out io.Writer, level Level, cfg zapcore.EncoderConfig, json bool, opts ...Option,
) *Logger {
	if out == nil {
		out = os.Stderr
	}
	cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	var enc zapcore.Encoder
	if json {
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		enc = zapcore.NewConsoleEncoder(cfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(out), level)
	return &Logger{l: zap.New(core, opts...), level: level}
}

// WithFilter returns a logger whose output is restricted by zapfilter rules
// like "info+:* debug+:signalr*".
// The logger level still applies, rules can only narrow the output.
func (l *Logger) WithFilter(rules string) (*Logger, error) {
	if rules == "" {
		return l, nil
	}
	filter, err := zapfilter.ParseRules(rules)
	if err != nil {
		return nil, err
	}
	wrapped := l.l.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapfilter.NewFilteringCore(c, filter)
	}))
	return &Logger{l: wrapped, level: l.level}, nil
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

func (l *Logger) WithOptions(opts ...Option) *Logger {
	return &Logger{l: l.l.WithOptions(opts...), level: l.level}
}

func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{l: l.l.With(fields...), level: l.level}
}

func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.l.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.l.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.l.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.l.Error(msg, fields...)
}

func (l *Logger) Fatal(msg string, fields ...Field) {
	l.l.Fatal(msg, fields...)
}

func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.l.Sugar().Debugw(msg, keysAndValues...)
}

func (l *Logger) Fatalf(template string, args ...interface{}) {
	l.l.Sugar().Fatalf(template, args...)
}

func (l *Logger) Sync() error {
	return l.l.Sync()
}

// ResetDefault replaces the package logger. Not safe for concurrent use,
// call it during startup only.
func ResetDefault(l *Logger) {
	std = l
	Debug = std.Debug
	Info = std.Info
	Warn = std.Warn
	Error = std.Error
	Fatal = std.Fatal
	Fatalf = std.Fatalf
	Debugw = std.Debugw
}

func Default() *Logger {
	return std
}

func AddToContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// GetFromContext returns the logger stored in ctx or the default logger.
func GetFromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return std
}

var (
	Debug  = std.Debug
	Info   = std.Info
	Warn   = std.Warn
	Error  = std.Error
	Fatal  = std.Fatal
	Fatalf = std.Fatalf
	Debugw = std.Debugw
)

func Sync() error {
	if std != nil {
		return std.Sync()
	}
	return nil
}
