package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
)

// LogFormat defines the output format of the log
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// ParseLevel maps a config string to a LogLevel. Unknown names yield LogLevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "off", "none":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarn
	default:
		return LogLevelInfo
	}
}

// Logger is the interface for logging SQL statements and pool events.
type Logger interface {
	SetLevel(level LogLevel)
	SetFormat(format LogFormat)
	SetOutput(w io.Writer)
	// SetLevelOutput mirrors entries at exactly the given level to w.
	SetLevelOutput(level LogLevel, w io.Writer)
	WithFields(fields map[string]any) Logger
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	SQL(sql string, duration time.Duration, args ...any)
}

type baseLogger struct {
	mu          *sync.Mutex
	level       LogLevel
	format      LogFormat
	writer      io.Writer
	levelWriter map[LogLevel]io.Writer
	fields      map[string]any
}

func (l *baseLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *baseLogger) SetFormat(format LogFormat) {
	l.format = format
}

func (l *baseLogger) SetOutput(w io.Writer) {
	l.writer = w
}

func (l *baseLogger) SetLevelOutput(level LogLevel, w io.Writer) {
	if l.levelWriter == nil {
		l.levelWriter = make(map[LogLevel]io.Writer)
	}
	l.levelWriter[level] = w
}

func (l *baseLogger) clone() *baseLogger {
	newFields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	levelWriter := make(map[LogLevel]io.Writer, len(l.levelWriter))
	for k, v := range l.levelWriter {
		levelWriter[k] = v
	}
	return &baseLogger{
		mu:          l.mu,
		level:       l.level,
		format:      l.format,
		writer:      l.writer,
		levelWriter: levelWriter,
		fields:      newFields,
	}
}

// stdLogger is the default implementation of Logger
type stdLogger struct {
	baseLogger
}

// NewStdLogger creates a logger writing text lines to stdout at LogLevelInfo.
func NewStdLogger() Logger {
	return &stdLogger{
		baseLogger: baseLogger{
			mu:     &sync.Mutex{},
			level:  LogLevelInfo,
			format: LogFormatText,
			writer: os.Stdout,
			fields: make(map[string]any),
		},
	}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	l := NewStdLogger()
	l.SetLevel(LogLevelSilent)
	l.SetOutput(io.Discard)
	return l
}

func (l *stdLogger) WithFields(fields map[string]any) Logger {
	newLogger := &stdLogger{
		baseLogger: *l.clone(),
	}
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

func (l *stdLogger) Info(format string, args ...any) {
	if l.level >= LogLevelInfo {
		l.log(LogLevelInfo, "INFO", format, args...)
	}
}

func (l *stdLogger) Warn(format string, args ...any) {
	if l.level >= LogLevelWarn {
		l.log(LogLevelWarn, "WARN", format, args...)
	}
}

func (l *stdLogger) Error(format string, args ...any) {
	if l.level >= LogLevelError {
		l.log(LogLevelError, "ERROR", format, args...)
	}
}

func (l *stdLogger) SQL(sql string, duration time.Duration, args ...any) {
	if l.level < LogLevelInfo {
		return
	}
	if l.format == LogFormatJSON {
		l.log(LogLevelInfo, "SQL", "", "sql", sql, "duration", duration.String(), "args", args)
		return
	}
	msg := fmt.Sprintf("[%v] %s", duration, sql)
	if len(args) > 0 {
		msg += fmt.Sprintf(" | args: %v", args)
	}
	l.log(LogLevelInfo, "SQL", "%s%s%s", sqlColor(sql), msg, ansiReset)
}

func (l *stdLogger) log(level LogLevel, label string, format string, args ...any) {
	var line []byte
	now := time.Now()
	if l.format == LogFormatJSON {
		data := make(map[string]any, len(l.fields)+3)
		for k, v := range l.fields {
			data[k] = v
		}
		data["time"] = now.Format(time.RFC3339)
		data["level"] = label
		if format != "" {
			data["msg"] = fmt.Sprintf(format, args...)
		} else {
			// structured key/value pairs
			for i := 0; i+1 < len(args); i += 2 {
				if key, ok := args[i].(string); ok {
					data[key] = args[i+1]
				}
			}
		}
		b, err := json.Marshal(data)
		if err != nil {
			return
		}
		line = append(b, '\n')
	} else {
		msg := fmt.Sprintf(format, args...)
		fieldStr := ""
		if len(l.fields) > 0 {
			fieldStr = fmt.Sprintf(" fields: %v", l.fields)
		}
		line = []byte(fmt.Sprintf("[leasedb] %s %s: %s%s\n", now.Format("2006-01-02 15:04:05"), label, msg, fieldStr))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		_, _ = l.writer.Write(line)
	}
	if w, ok := l.levelWriter[level]; ok && w != nil && w != l.writer {
		_, _ = w.Write(line)
	}
}

func sqlColor(sqlStr string) string {
	s := strings.TrimSpace(strings.ToUpper(sqlStr))
	switch {
	case strings.HasPrefix(s, "SELECT"):
		return ansiYellow
	case strings.HasPrefix(s, "INSERT"), strings.HasPrefix(s, "UPDATE"):
		return ansiGreen
	case strings.HasPrefix(s, "DELETE"):
		return ansiRed
	default:
		return ansiCyan
	}
}
