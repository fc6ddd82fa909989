package dnp3

import (
	"avaneesh/dnp3-cache/pkg/internal/logger"
)

// LogLevel represents logging level
type LogLevel int

const (
	// LevelDebug shows all log messages (most verbose)
	LevelDebug LogLevel = iota
	// LevelInfo shows info and above (default)
	LevelInfo
	// LevelWarn shows warnings and errors
	LevelWarn
	// LevelError shows only error messages
	LevelError
)

// ParseLogLevel converts "debug", "info", "warn" or "error" to a LogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	level, err := logger.ParseLevel(s)
	return LogLevel(level), err
}

// SetLogLevel sets the global logging level used by managers created
// afterwards with NewManager
func SetLogLevel(level LogLevel) {
	logger.SetDefault(logger.NewDefaultLogger(logger.Level(level)))
}
