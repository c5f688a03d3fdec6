// internal/logging/logging.go
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. format is "console" or "json".
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("logging: %w", err)
		}
	}

	if w == nil {
		w = os.Stderr
	}

	switch format {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("logging: unknown format %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// ForDevice returns the child logger every component of one device logs with.
func ForDevice(log zerolog.Logger, name, model, instanceID string) zerolog.Logger {
	return log.With().
		Str("device", name).
		Str("model", model).
		Str("device_id", instanceID).
		Logger()
}
