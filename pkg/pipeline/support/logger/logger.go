// Package logger provides a simple leveled logging utility for the krishi pipeline.
// It wraps the standard `log` package and filters messages based on the configured level.
package logger

import (
	"log"
	"strings"
)

// LogLevel is a type representing the logging level.
type LogLevel int

const (
	// LevelDebug is the log level used for detailed debugging information.
	LevelDebug LogLevel = iota
	// LevelInfo is the log level used for general informational messages.
	LevelInfo
	// LevelWarn is the log level used for potential issues or warning messages.
	LevelWarn
	// LevelError is the log level used for error messages.
	LevelError
)

// logLevel is the currently set global log level. Only messages at or above this level are output.
var logLevel = LevelInfo

// ParseLevel maps a configuration string to a LogLevel, case-insensitively.
// The second return value reports whether the string named a known level;
// an unknown string yields the default LevelInfo.
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// String returns the configuration spelling of the level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// SetLogLevel sets the global log level for the pipeline from its
// configuration spelling. An unrecognized value falls back to the default
// INFO level with a warning.
func SetLogLevel(level string) {
	parsed, ok := ParseLevel(level)
	if !ok {
		Warnf("Unknown log level '%s' specified. Defaulting to %s level.", level, parsed)
	}
	logLevel = parsed
}

// Debugf formats and outputs a DEBUG level log message.
// It is only output if the current log level is DEBUG.
func Debugf(format string, v ...interface{}) {
	if logLevel <= LevelDebug {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Infof formats and outputs an INFO level log message.
func Infof(format string, v ...interface{}) {
	if logLevel <= LevelInfo {
		log.Printf("[INFO] "+format, v...)
	}
}

// Warnf formats and outputs a WARN level log message.
// Skipped source stores, tables and views are reported at this level.
func Warnf(format string, v ...interface{}) {
	if logLevel <= LevelWarn {
		log.Printf("[WARN] "+format, v...)
	}
}

// Errorf formats and outputs an ERROR level log message.
func Errorf(format string, v ...interface{}) {
	if logLevel <= LevelError {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf formats and outputs a FATAL level log message, then terminates the
// program by calling os.Exit(1). Fatal messages are never filtered.
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
