package logger

import (
	"encoding/json"
	"io"
	"log"
	"maps"
	"os"
	"strings"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// Logger writes one JSON object per line. Loggers derived with With share
// the underlying writer and level.
type Logger struct {
	level  Level
	logger *log.Logger
	base   map[string]any
}

type logEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// New creates a logger writing to output (stdout when nil) at the given level.
func New(level string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	return &Logger{
		level:  ParseLevel(level),
		logger: log.New(output, "", 0),
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return New("ERROR", io.Discard)
}

// ParseLevel converts a level name to a Level, defaulting to INFO.
// FATAL is accepted by the config layer and maps to ERROR here.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR", "FATAL":
		return ERROR
	default:
		return INFO
	}
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	base := make(map[string]any, len(l.base)+len(fields))
	maps.Copy(base, l.base)
	maps.Copy(base, fields)
	return &Logger{level: l.level, logger: l.logger, base: base}
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) write(level Level, message string, fields []map[string]any) {
	if !l.Enabled(level) {
		return
	}

	var merged map[string]any
	if len(l.base) > 0 || (len(fields) > 0 && len(fields[0]) > 0) {
		merged = make(map[string]any, len(l.base))
		maps.Copy(merged, l.base)
		if len(fields) > 0 {
			maps.Copy(merged, fields[0])
		}
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   message,
		Fields:    merged,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		// unmarshalable field value, keep the message at least
		l.logger.Printf(`{"level":%q,"message":%q,"log_error":%q}`, entry.Level, message, err.Error())
		return
	}
	l.logger.Println(string(data))
}

func (l *Logger) Debug(message string, fields ...map[string]any) {
	l.write(DEBUG, message, fields)
}

func (l *Logger) Info(message string, fields ...map[string]any) {
	l.write(INFO, message, fields)
}

func (l *Logger) Warn(message string, fields ...map[string]any) {
	l.write(WARN, message, fields)
}

func (l *Logger) Error(message string, fields ...map[string]any) {
	l.write(ERROR, message, fields)
}

// Task logs an INFO entry about a single task.
func (l *Logger) Task(taskID, message string, fields ...map[string]any) {
	allFields := map[string]any{
		"task_id": taskID,
		"type":    "task",
	}
	if len(fields) > 0 {
		maps.Copy(allFields, fields[0])
	}
	l.write(INFO, message, []map[string]any{allFields})
}

// Persist logs the outcome of a storage call. Failures are logged at WARN
// because the store compensates for them itself.
func (l *Logger) Persist(op, taskID string, duration time.Duration, err error) {
	fields := map[string]any{
		"op":          op,
		"duration_ns": duration.Nanoseconds(),
		"type":        "persist",
	}
	if taskID != "" {
		fields["task_id"] = taskID
	}
	if err != nil {
		fields["error"] = err.Error()
		l.write(WARN, "storage call failed", []map[string]any{fields})
		return
	}
	l.write(DEBUG, "storage call succeeded", []map[string]any{fields})
}

func (l *Logger) HTTP(method, path string, statusCode int, duration time.Duration, fields ...map[string]any) {
	allFields := map[string]any{
		"http_method": method,
		"http_path":   path,
		"http_status": statusCode,
		"duration_ns": duration.Nanoseconds(),
		"type":        "http_request",
	}
	if len(fields) > 0 {
		maps.Copy(allFields, fields[0])
	}

	level := INFO
	if statusCode >= 500 {
		level = ERROR
	}
	l.write(level, "HTTP request completed", []map[string]any{allFields})
}
