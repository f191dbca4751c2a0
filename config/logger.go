package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
)

// NewLogger - nil out writes to stderr
func (c LoggingConfig) NewLogger(out io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if c.Level != "" {
		var err error
		if level, err = zerolog.ParseLevel(c.Level); err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
		}
	}

	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(c.Format) {
	case "", "json":
	case "console":
		if f, ok := out.(*os.File); ok {
			out = colorable.NewColorable(f)
		}
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: zerolog.TimeFieldFormat}
	case "console_no_color":
		out = zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: zerolog.TimeFieldFormat}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q, allowed: json, console, console_no_color", c.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
