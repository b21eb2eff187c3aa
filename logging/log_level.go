package logging

import (
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// ParseLogLevel reads a level from the named environment variable, returning
// def when it is unset or not a level name.
//
// Example:
//
//	level := ParseLogLevel("KANDINSKY_LOG_LEVEL", zapcore.InfoLevel)
func ParseLogLevel(envVarName string, def zapcore.Level) zapcore.Level {
	return ParseLogLevelString(os.Getenv(envVarName), def)
}

// ParseLogLevelString parses debug, info, warn/warning, error or fatal,
// case-insensitively.
func ParseLogLevelString(s string, def zapcore.Level) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return def
	}
}
