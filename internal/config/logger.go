package config

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Параметры ротации файла логов.
const (
	logMaxSizeMB  = 100
	logMaxBackups = 5
	logMaxAgeDays = 14
)

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
// При заданном LV_LOG_FILE записи дублируются в файл с ротацией.
// Возвращаемый io.Closer закрывает файл логов (no-op без файла).
func SetupLogger(cfg *Config) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, lj)
		closer = lj
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
