package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nachoal/kaizen-chat/config"
)

// New builds the application logger. The terminal belongs to the UI, so
// logs go to the configured file and only when verbose is set or the level
// is debug; otherwise a no-op logger is returned. The closer flushes and
// releases the output.
func New(cfg config.LogConfig, verbose bool) (*zap.Logger, func() error, error) {
	level := parseLevel(cfg.Level)
	if verbose {
		level = zapcore.DebugLevel
	}
	if !verbose && level != zapcore.DebugLevel {
		return zap.NewNop(), func() error { return nil }, nil
	}

	sink, closer, err := openOutput(cfg.File)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	logger := zap.New(zapcore.NewCore(encoder, sink, level))
	logger = logger.With(zap.Int("pid", os.Getpid()))

	return logger, func() error {
		_ = logger.Sync()
		return closer()
	}, nil
}

// parseLevel converts a string level to a zap level
func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func openOutput(output string) (zapcore.WriteSyncer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return zapcore.Lock(os.Stdout), noop, nil
	case "stderr", "":
		return zapcore.Lock(os.Stderr), noop, nil
	default:
		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, err
		}
		return zapcore.AddSync(f), f.Close, nil
	}
}
