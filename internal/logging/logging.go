// Package logging configures the process-wide zerolog output.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console-formatted logger writing to w at the given level.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// LevelFromVerbosity maps repeated -v flags to a log level.
func LevelFromVerbosity(count int) zerolog.Level {
	switch {
	case count <= 0:
		return zerolog.InfoLevel
	case count == 1:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
