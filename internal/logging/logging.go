package logging

import (
	"io"
	"os"
	"strings"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. Pretty mode writes a
// human-readable console format for local runs; otherwise logs go out
// as one JSON object per line for log shippers. Standard library log
// output is redirected through the same logger so third-party code
// lands in the same stream.
func Init(level string, pretty bool, service string) {
	lvl := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil {
		lvl = l
	}
	zerolog.SetGlobalLevel(lvl)

	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	zlog.Logger = zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()

	// Redirect the stdlib logger (used by the config loader and some
	// dependencies) into zerolog.
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}
