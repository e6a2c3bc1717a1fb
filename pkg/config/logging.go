package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/pion/logging"
)

// ParseLevel maps a level name to a pion log level.
func ParseLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return logging.LogLevelInfo, nil
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("unknown level %q", s)
	}
}

// LoggerFactory builds a pion logger factory writing to w at the
// configured level.
func (l LoggingConfig) LoggerFactory(w io.Writer) logging.LoggerFactory {
	level, err := ParseLevel(l.Level)
	if err != nil {
		level = logging.LogLevelInfo
	}
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = level
	if w != nil {
		f.Writer = w
	}
	return f
}
