package observability

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a log level string, defaulting to INFO.
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "DEBUG", "debug":
		return DEBUG
	case "INFO", "info":
		return INFO
	case "WARN", "warn", "WARNING", "warning":
		return WARN
	case "ERROR", "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger provides leveled logging with attached fields
type Logger struct {
	level  LogLevel
	output io.Writer
	fields map[string]interface{}
	mu     *sync.Mutex
}

// NewLogger creates a new logger
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stderr
	}
	return &Logger{
		level:  level,
		output: output,
		fields: make(map[string]interface{}),
		mu:     &sync.Mutex{},
	}
}

// WithFields returns a logger carrying additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, output: l.output, fields: merged, mu: l.mu}
}

// WithField returns a logger carrying one additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) { l.log(DEBUG, msg) }

// Info logs an info message
func (l *Logger) Info(msg string) { l.log(INFO, msg) }

// Warn logs a warning message
func (l *Logger) Warn(msg string) { l.log(WARN, msg) }

// Error logs an error message
func (l *Logger) Error(msg string) { l.log(ERROR, msg) }

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(DEBUG, fmt.Sprintf(format, args...)) }

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) { l.log(INFO, fmt.Sprintf(format, args...)) }

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) { l.log(WARN, fmt.Sprintf(format, args...)) }

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(ERROR, fmt.Sprintf(format, args...)) }

func (l *Logger) log(level LogLevel, msg string) {
	if level < l.level {
		return
	}

	entry := fmt.Sprintf("[%s] %s: %s", time.Now().Format(time.RFC3339), level, msg)
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entry += " |"
		for _, k := range keys {
			entry += fmt.Sprintf(" %s=%v", k, l.fields[k])
		}
	}
	entry += "\n"

	l.mu.Lock()
	l.output.Write([]byte(entry))
	l.mu.Unlock()
}

// LogOperation logs the start and outcome of an operation with its duration
func (l *Logger) LogOperation(operation string, fn func() error) error {
	start := time.Now()
	l.Infof("starting %s", operation)

	err := fn()

	if err != nil {
		l.WithField("duration", time.Since(start)).Errorf("%s failed: %v", operation, err)
	} else {
		l.WithField("duration", time.Since(start)).Infof("%s completed", operation)
	}
	return err
}

var (
	globalMu     sync.RWMutex
	globalLogger = NewLogger(INFO, os.Stderr)
)

// SetGlobalLogger sets the global logger
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger returns the global logger
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Debugf logs a formatted debug message using the global logger
func Debugf(format string, args ...interface{}) { GetGlobalLogger().Debugf(format, args...) }

// Infof logs a formatted info message using the global logger
func Infof(format string, args ...interface{}) { GetGlobalLogger().Infof(format, args...) }

// Warnf logs a formatted warning message using the global logger
func Warnf(format string, args ...interface{}) { GetGlobalLogger().Warnf(format, args...) }

// Errorf logs a formatted error message using the global logger
func Errorf(format string, args ...interface{}) { GetGlobalLogger().Errorf(format, args...) }
