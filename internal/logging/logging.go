// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gftdcojp/tng-client/internal/config"
	"github.com/gftdcojp/tng-client/internal/file"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DeveloperFileLayout names developer log files after the process start time.
const DeveloperFileLayout = "01-02-06_15-04-05"

// New builds a logger. When developer logging is enabled with an output
// directory, every entry at debug level and above is also written to a
// file in that directory. The returned func closes that file.
func New(cfg config.LoggingConfig, start time.Time) (*zap.Logger, func(), error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level.SetLevel(zap.DebugLevel)
	case "info":
		zapCfg.Level.SetLevel(zap.InfoLevel)
	case "warn":
		zapCfg.Level.SetLevel(zap.WarnLevel)
	case "error":
		zapCfg.Level.SetLevel(zap.ErrorLevel)
	}

	switch cfg.Output {
	case "stdout":
		zapCfg.OutputPaths = []string{"stdout"}
	case "", "stderr":
		zapCfg.OutputPaths = []string{"stderr"}
	default:
		zapCfg.OutputPaths = []string{cfg.Output}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, err
	}

	dev := cfg.Developer
	if !dev.Enabled {
		return logger, func() {}, nil
	}
	if dev.OutputDirectory == "" {
		logger.Warn("developer logging enabled without output_directory, ignoring")
		return logger, func() {}, nil
	}

	if err := file.EnsureDir(dev.OutputDirectory); err != nil {
		return nil, nil, fmt.Errorf("developer log directory: %w", err)
	}
	path := DeveloperLogPath(dev.OutputDirectory, start)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening developer log: %w", err)
	}

	fileCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(f),
		zap.DebugLevel,
	)
	logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))
	logger.Debug("developer log opened", zap.String("path", path))

	return logger, func() {
		logger.Sync()
		f.Close()
	}, nil
}

// DeveloperLogPath returns the developer log file for a process started at t.
func DeveloperLogPath(dir string, t time.Time) string {
	return filepath.Join(dir, t.Format(DeveloperFileLayout)+".log")
}
