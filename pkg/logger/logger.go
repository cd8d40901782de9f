package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents log level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Config holds logger configuration
type Config struct {
	Level  string
	Format string // "text" (default) or "json"
	Output io.Writer
}

// Logger represents a structured logger
type Logger struct {
	level     Level
	format    string
	component string
	fields    []Field
	logger    *log.Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// New creates a new logger
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	format := strings.ToLower(cfg.Format)
	flags := log.LstdFlags
	if format == "json" {
		flags = 0
	}

	return &Logger{
		level:  parseLevel(cfg.Level),
		format: format,
		logger: log.New(output, "", flags),
	}
}

// WithComponent creates a child logger with a component prefix
func (l *Logger) WithComponent(component string) *Logger {
	child := l.clone()
	child.component = component
	if l.format != "json" {
		child.logger = log.New(l.logger.Writer(), fmt.Sprintf("[%s] ", component), log.LstdFlags)
	}
	return child
}

// With creates a child logger that adds fields to every entry
func (l *Logger) With(fields ...Field) *Logger {
	child := l.clone()
	child.fields = append(append([]Field(nil), l.fields...), fields...)
	return child
}

func (l *Logger) clone() *Logger {
	c := *l
	return &c
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	if l.level <= DebugLevel {
		l.log("DEBUG", msg, fields...)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) {
	if l.level <= InfoLevel {
		l.log("INFO", msg, fields...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) {
	if l.level <= WarnLevel {
		l.log("WARN", msg, fields...)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Field) {
	if l.level <= ErrorLevel {
		l.log("ERROR", msg, fields...)
	}
}

// Enabled reports whether entries at level would be written
func (l *Logger) Enabled(level Level) bool {
	return l.level <= level
}

func (l *Logger) log(level, msg string, fields ...Field) {
	all := fields
	if len(l.fields) > 0 {
		all = append(append([]Field(nil), l.fields...), fields...)
	}

	if l.format == "json" {
		l.logJSON(level, msg, all)
		return
	}

	if len(all) == 0 {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}

	var fieldStrs []string
	for _, f := range all {
		fieldStrs = append(fieldStrs, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}

	l.logger.Printf("[%s] %s %s", level, msg, strings.Join(fieldStrs, " "))
}

func (l *Logger) logJSON(level, msg string, fields []Field) {
	entry := make(map[string]interface{}, len(fields)+3)
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	entry["level"] = strings.ToLower(level)
	entry["msg"] = msg
	if l.component != "" {
		entry["component"] = l.component
	}

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf(`{"level":"error","msg":"unencodable log entry","error":%q}`, err.Error())
		return
	}
	l.logger.Print(string(data))
}

func parseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Field constructors

// String creates a string field
func String(key, val string) Field {
	return Field{Key: key, Value: val}
}

// Int creates an int field
func Int(key string, val int) Field {
	return Field{Key: key, Value: val}
}

// Int64 creates an int64 field
func Int64(key string, val int64) Field {
	return Field{Key: key, Value: val}
}

// Bool creates a bool field
func Bool(key string, val bool) Field {
	return Field{Key: key, Value: val}
}

// Float64 creates a float64 field
func Float64(key string, val float64) Field {
	return Field{Key: key, Value: val}
}

// Error creates an error field
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "nil"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a field with any value
func Any(key string, val interface{}) Field {
	return Field{Key: key, Value: val}
}
