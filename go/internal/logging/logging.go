package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level string
	// File enables a rolling JSON log next to console output
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Pretty     bool
}

// Setup points the global logger at stderr and, when configured, a rolling
// file. The returned closer flushes and closes the file sink.
func Setup(cfg Config, stderr io.Writer) (io.Closer, error) {
	if stderr == nil {
		stderr = os.Stderr
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	var console io.Writer = stderr
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 10), // MB
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 7), // days
		}
		writers = append(writers, lj)
		closer = lj
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return closer, nil
}

func orDefault(v, d int) int {
	if v > 0 {
		return v
	}
	return d
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
