package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogConfig selects the log level, destination and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"` // "stdout" or "stderr"
	Format string `yaml:"format"` // "json" or "console"
}

// NewLogger builds the root logger from config.
func NewLogger(config LogConfig) (zerolog.Logger, error) {
	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}
	if config.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	if config.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return zerolog.Nop(), err
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(output).Level(level).With().Timestamp().Logger(), nil
}
