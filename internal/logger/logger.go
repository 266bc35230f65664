package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Setup returns the process logger. Output is human readable on a terminal
// or in debug mode and JSON otherwise.
func Setup(debug bool) zerolog.Logger {
	return New(os.Stderr, debug, term.IsTerminal(int(os.Stderr.Fd())))
}

func New(out io.Writer, debug, console bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()

	if debug || console {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.Kitchen)
		}}).Level(level)
	}
	if debug {
		logger = logger.With().Caller().Stack().Logger()
	}

	return logger
}
