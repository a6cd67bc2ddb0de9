package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLevel  = "MODELGATE_LOG_LEVEL"
	EnvFormat = "MODELGATE_LOG_FORMAT"

	FormatConsole = "console"
	FormatJSON    = "json"
)

type Options struct {
	Level  string
	Format string
	// Writer defaults to stderr; stdout is reserved for command output.
	Writer io.Writer
}

// New builds a logger. Empty level means info and empty format means console.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if trimmed := strings.ToLower(strings.TrimSpace(opts.Level)); trimmed != "" {
		parsed, err := zerolog.ParseLevel(trimmed)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", FormatConsole:
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339, NoColor: !isTerminal(writer)}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("log format must be console or json, got %q", opts.Format)
	}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger(), nil
}

// Resolve layers explicit values over the environment over fallback.
func Resolve(flagValue, envName, fallback string) string {
	if value := strings.TrimSpace(flagValue); value != "" {
		return value
	}
	if value := strings.TrimSpace(os.Getenv(envName)); value != "" {
		return value
	}
	return fallback
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
