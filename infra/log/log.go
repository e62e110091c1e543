// Package log builds the process logger.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

type Logger = zerolog.Logger

type Options struct {
	Level  string
	Pretty bool
	Out    io.Writer
}

// New returns a timestamped logger. Unknown levels fall back to info.
func New(opts Options) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
