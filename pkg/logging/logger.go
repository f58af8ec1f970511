package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level      string
	Format     string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// New builds the process logger. When the log file cannot be prepared the
// logger falls back to stdout and records a warning instead of failing.
func New(cfg Config) (*logrus.Logger, error) {
	level := logrus.InfoLevel

	if cfg.Level != "" {
		l, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("could not parse the log level: %w", err)
		}

		level = l
	}

	var formatter logrus.Formatter

	switch cfg.Format {
	case "", "text":
		formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339}
	case "json":
		formatter = &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	default:
		return nil, fmt.Errorf("%q: unhandled log format", cfg.Format)
	}

	output, outErr := buildOutput(cfg)

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(formatter)

	if outErr != nil {
		logger.WithField("path", cfg.FilePath).Warnf("Logging to stdout: %v", outErr)
	}

	return logger, nil
}

func buildOutput(cfg Config) (io.Writer, error) {
	if cfg.FilePath == "" {
		return os.Stdout, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return os.Stdout, fmt.Errorf("could not create the log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}
