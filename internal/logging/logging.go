// Package logging builds the process-wide zerolog logger from the log
// settings: level, text or JSON format, and an optional log directory for a
// file sink alongside stderr.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Setup returns the root logger. Unknown level names fall back to info.
// When dir is non-empty the log also goes to <dir>/teamarr.log.
func Setup(level, format, dir string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var sinks []io.Writer
	if format == "json" {
		sinks = append(sinks, os.Stderr)
	} else {
		sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			f, err := os.OpenFile(filepath.Join(dir, "teamarr.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err == nil {
				sinks = append(sinks, f)
			}
		}
	}

	var w io.Writer = sinks[0]
	if len(sinks) > 1 {
		w = zerolog.MultiLevelWriter(sinks...)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
