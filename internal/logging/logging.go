// Package logging configures the process-wide zerolog logger and hands out
// per-component child loggers, replacing the teacher's log.SetFlags(...) /
// log.Printf convention with structured equivalents at the same call sites.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. Call once from main before any
// component starts logging. verbose mirrors the teacher's DEBUG_DECODERS-style
// env toggles: when true, decoder probing and fallback paths log at debug.
func Init(verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}

// For returns a child logger tagged with the owning component, e.g.
// logging.For("lowres-decoder").
func For(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
