// Package logging is a small leveled wrapper around the standard logger.
//
// The level comes from DEBUG (1/true/yes/on forces debug) or LOG_LEVEL
// (debug, info, warn, error). Info is the default.
package logging

import (
	"log"
	"os"
	"strings"
	"sync"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu      sync.RWMutex
	current Level
	once    sync.Once
)

func initLevel() {
	once.Do(func() {
		lvl := ParseLevel(os.Getenv("LOG_LEVEL"))
		switch strings.ToLower(os.Getenv("DEBUG")) {
		case "1", "true", "yes", "on":
			lvl = LevelDebug
		}
		mu.Lock()
		current = lvl
		mu.Unlock()
	})
}

// ParseLevel maps a level name to a Level. Unknown names yield LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel overrides the level picked up from the environment.
func SetLevel(l Level) {
	initLevel()
	mu.Lock()
	current = l
	mu.Unlock()
}

// GetLevel returns the current level.
func GetLevel() Level {
	initLevel()
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func logf(l Level, prefix, format string, args ...interface{}) {
	if GetLevel() <= l {
		log.Printf(prefix+format, args...)
	}
}

// Debug logs at debug level.
func Debug(format string, args ...interface{}) { logf(LevelDebug, "[DEBUG] ", format, args...) }

// Info logs at info level.
func Info(format string, args ...interface{}) { logf(LevelInfo, "[INFO] ", format, args...) }

// Warn logs at warn level.
func Warn(format string, args ...interface{}) { logf(LevelWarn, "[WARN] ", format, args...) }

// Error logs at error level.
func Error(format string, args ...interface{}) { logf(LevelError, "[ERROR] ", format, args...) }
