// Package logging builds the zerolog loggers used by the binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Environment overrides, read with the CONTACTSYNC prefix:
// CONTACTSYNC_LOG_LEVEL, CONTACTSYNC_LOG_FORMAT, CONTACTSYNC_LOG_NOCOLOR.
const envPrefix = "CONTACTSYNC"

// Format selects the log encoding.
type Format string

const (
	FormatAuto    Format = "auto" // console on a terminal, JSON otherwise
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config controls the logger built by New.
type Config struct {
	Level   string `envconfig:"LOG_LEVEL" default:"info"`
	Format  Format `envconfig:"LOG_FORMAT" default:"auto"`
	NoColor bool   `envconfig:"LOG_NOCOLOR" default:"false"`
}

// FromEnv returns the default config with environment overrides applied.
func FromEnv() (Config, error) {
	var cfg Config
	err := envconfig.Process(envPrefix, &cfg)
	return cfg, err
}

// New returns a logger writing to w.
func New(w io.Writer, cfg Config) zerolog.Logger {
	level, ok := ParseLevel(cfg.Level)
	if !ok {
		level = zerolog.InfoLevel
	}

	out := w
	if useConsole(w, cfg.Format) {
		out = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    cfg.NoColor,
			TimeFormat: time.TimeOnly,
		}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ParseLevel accepts zerolog level names plus a few aliases.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func useConsole(w io.Writer, format Format) bool {
	switch format {
	case FormatConsole:
		return true
	case FormatJSON:
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
