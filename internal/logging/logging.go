// Package logging builds the zap logger shared by every navstatus component.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/runnerr0/navstatus/internal/config"
)

// New builds a logger from cfg. Logs go to stderr, and also to cfg.File
// when it is set.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	return build(cfg, level)
}

// NewTrace builds the event trace logger. It shares New's outputs and
// format but is always enabled at info, so an explicitly requested trace
// is never filtered by logging.level.
func NewTrace(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	if level > zapcore.InfoLevel {
		level = zapcore.InfoLevel
	}
	logger, err := build(cfg, level)
	if err != nil {
		return nil, err
	}
	return logger.Named("trace"), nil
}

func build(cfg config.LoggingConfig, level zapcore.Level) (*zap.Logger, error) {
	var zc zap.Config
	switch cfg.Format {
	case "", "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("logging.format must be json or console, got %q", cfg.Format)
	}
	// Trace lines repeat one message per channel; sampling would drop them.
	zc.Sampling = nil
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		path, err := config.ExpandPath(cfg.File)
		if err != nil {
			return nil, err
		}
		zc.OutputPaths = append(zc.OutputPaths, path)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
