package logger

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger routes Logger calls to a *zap.Logger.
type zapLogger struct {
	z     *zap.Logger
	atom  zap.AtomicLevel
	level LogLevel
}

// NewZapLogger wraps z. Level filtering happens both here and in z's core.
func NewZapLogger(z *zap.Logger) Logger {
	return &zapLogger{z: z, atom: zap.NewAtomicLevelAt(zapcore.DebugLevel), level: LogLevelInfo}
}

// NewZapProduction builds a JSON zap logger writing to w.
func NewZapProduction(w io.Writer, level LogLevel) Logger {
	atom := zap.NewAtomicLevelAt(zapLevel(level))
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), atom)
	return &zapLogger{z: zap.New(core), atom: atom, level: level}
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelSilent:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) SetLevel(level LogLevel) {
	l.level = level
	l.atom.SetLevel(zapLevel(level))
}

// SetFormat is a no-op; the encoder is fixed when the zap core is built.
func (l *zapLogger) SetFormat(LogFormat) {}

func (l *zapLogger) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	l.z = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), l.atom))
}

func (l *zapLogger) SetLevelOutput(level LogLevel, w io.Writer) {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	want := zapLevel(level)
	mirror := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w),
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl == want }))
	l.z = zap.New(zapcore.NewTee(l.z.Core(), mirror))
}

func (l *zapLogger) WithFields(fields map[string]any) Logger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return &zapLogger{z: l.z.With(zf...), atom: l.atom, level: l.level}
}

func (l *zapLogger) Info(format string, args ...any) {
	if l.level >= LogLevelInfo {
		l.z.Info(fmt.Sprintf(format, args...))
	}
}

func (l *zapLogger) Warn(format string, args ...any) {
	if l.level >= LogLevelWarn {
		l.z.Warn(fmt.Sprintf(format, args...))
	}
}

func (l *zapLogger) Error(format string, args ...any) {
	if l.level >= LogLevelError {
		l.z.Error(fmt.Sprintf(format, args...))
	}
}

func (l *zapLogger) SQL(sql string, duration time.Duration, args ...any) {
	if l.level < LogLevelInfo {
		return
	}
	l.z.Info("sql",
		zap.String("sql", sql),
		zap.Duration("duration", duration),
		zap.Any("args", args),
	)
}
