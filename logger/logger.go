package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const simpleTimeFormat = "02-01-2006 15:04:05"

// New builds the service logger. Development gets a console writer, every
// other environment JSON on stdout. Explicit writers override both.
func New(env, level string, writers ...io.Writer) (*zerolog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = simpleTimeFormat
	zerolog.DurationFieldUnit = time.Millisecond

	var output io.Writer
	switch {
	case len(writers) > 0:
		output = io.MultiWriter(writers...)
	case strings.EqualFold(env, "development") || strings.EqualFold(env, "dev"):
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: simpleTimeFormat}
	default:
		output = os.Stdout
	}

	logger := zerolog.New(output).With().Timestamp().Str("app", "contribd").Logger().Level(lvl)
	return &logger, nil
}

// Nop returns a disabled logger for callers that were given none.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func parseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		level = zerolog.InfoLevel.String()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, err
	}
	return lvl, nil
}
