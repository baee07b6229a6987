// Package obslog provides JSON structured logging for the observer,
// using zerolog the way carverauto-serviceradar's pkg/logger does.
package obslog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var global zerolog.Logger

func init() {
	global = zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339
}

// Config controls the package-level logger created by Init.
type Config struct {
	Level  string
	Debug  bool
	Output string // "stdout" (default) or "stderr"
}

// Init reconfigures the global logger. Safe to call once at process
// startup; not safe for concurrent use with logging calls.
func Init(cfg Config) error {
	var out io.Writer = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		level = parsed
	}

	global = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return nil
}

// Component returns a child logger tagged with the given component
// name, the way every worker in the orchestrator identifies itself.
func Component(name string) zerolog.Logger {
	return global.With().Str("component", name).Logger()
}

func Debug() *zerolog.Event { return global.Debug() }
func Info() *zerolog.Event  { return global.Info() }
func Warn() *zerolog.Event  { return global.Warn() }
func Error() *zerolog.Event { return global.Error() }
