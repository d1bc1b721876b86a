package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nhle/deadliner/internal/model"
)

// newLogger returns a console logger writing to cfg.File, or to fallback
// when no file is configured.
func newLogger(cfg model.LogConfig, fallback io.Writer) (zerolog.Logger, func() error, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := fallback
	closeFn := func() error { return nil }
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
		}
		out, closeFn = f, f.Close
	}
	if out == nil {
		out = os.Stderr
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02_15:04:05",
		NoColor:    cfg.File != "",
	}).Level(level).With().Timestamp().Logger()

	return logger, closeFn, nil
}
