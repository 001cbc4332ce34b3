package logging

import (
	"io"
	"os"
	"strings"

	"bulkctl/cli/internal/errors"

	"github.com/pterm/pterm"
)

var levels = map[string]pterm.LogLevel{
	"trace":    pterm.LogLevelTrace,
	"debug":    pterm.LogLevelDebug,
	"info":     pterm.LogLevelInfo,
	"warn":     pterm.LogLevelWarn,
	"warning":  pterm.LogLevelWarn,
	"error":    pterm.LogLevelError,
	"disabled": pterm.LogLevelDisabled,
	"off":      pterm.LogLevelDisabled,
}

// ParseLevel maps a config level name to a pterm level. Empty means info.
func ParseLevel(s string) (pterm.LogLevel, error) {
	if s == "" {
		return pterm.LogLevelInfo, nil
	}
	l, ok := levels[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, errors.Newf(errors.Configuration, "unknown log level %q", s)
	}
	return l, nil
}

// New builds the structured logger used across the CLI. A nil writer means
// stderr, keeping stdout free for command output.
func New(level string, w io.Writer) (*pterm.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	return pterm.DefaultLogger.WithLevel(l).WithWriter(w), nil
}

// Disabled returns a logger that drops everything.
func Disabled() *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
}
