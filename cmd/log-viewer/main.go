// Точка входа Log Viewer — сервиса просмотра и фильтрации лог-файлов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/goartstore/log-viewer/internal/api/handlers"
	"github.com/bigkaa/goartstore/log-viewer/internal/api/middleware"
	"github.com/bigkaa/goartstore/log-viewer/internal/config"
	"github.com/bigkaa/goartstore/log-viewer/internal/server"
	"github.com/bigkaa/goartstore/log-viewer/internal/service"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/catalog"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/contentstore"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/filestore"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/journal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}

	// Настройка логгера
	logger, logCloser := config.SetupLogger(cfg)
	defer logCloser.Close()

	logger.Info("Log Viewer запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.Bool("journal", cfg.CatalogDB != ""),
	)

	// --- Инициализация компонентов ---

	// 1. Файловое хранилище
	files, err := filestore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
		return err
	}

	// 2. Хранилище содержимого: загрузка тел с диска
	store := contentstore.New(files, contentstore.Options{
		MaxCapacity:  cfg.MaxCapacity,
		MaxLineBytes: cfg.MaxLineBytes,
	}, logger)
	if _, err := store.Recover(); err != nil {
		logger.Error("Ошибка восстановления хранилища", slog.String("error", err.Error()))
		return err
	}

	// 3. Журнал и каталог
	var (
		cat *catalog.Catalog
		jrn *journal.SQLite
	)
	if cfg.CatalogDB != "" {
		jrn, err = journal.Open(cfg.CatalogDB)
		if err != nil {
			logger.Error("Ошибка открытия журнала каталога",
				slog.String("path", cfg.CatalogDB),
				slog.String("error", err.Error()),
			)
			return err
		}
		defer jrn.Close()
		cat = catalog.New(store, jrn, logger)
	} else {
		cat = catalog.New(store, nil, logger)
	}
	if _, err := cat.Replay(); err != nil {
		logger.Error("Ошибка восстановления каталога", slog.String("error", err.Error()))
		return err
	}

	// 4. Сервисы
	cache := service.NewResultCache(cfg.ResultCacheSize, cfg.ResultCacheTTL, cfg.ResultCacheMaxLines)
	logSvc := service.NewLogService(store, cat, cache, service.LogOptions{
		MaxResults:   cfg.MaxResults,
		MaxLineBytes: cfg.MaxLineBytes,
	}, logger)

	presets := service.NewPresetService(cfg.PresetsFile, logger)
	if err := presets.Watch(); err != nil {
		logger.Warn("Слежение за наборами фильтров недоступно", slog.String("error", err.Error()))
	}
	defer presets.Stop()

	// 5. Фоновые процессы
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retention := service.NewRetentionService(cat, store, service.RetentionConfig{
		MaxAge:         cfg.Retention,
		FullSweepHour:  cfg.FullSweepHour,
		OrphanInterval: cfg.OrphanSweepInterval,
		TempMaxAge:     cfg.TempMaxAge,
	}, logger)
	retention.Start(ctx)
	defer retention.Stop()

	limiter := middleware.NewRateLimiter(cfg.UploadRate, cfg.UploadBurst)
	limiter.Start(ctx)

	// 6. HTTP
	sessions := middleware.NewSessions(middleware.SessionConfig{
		Secret: cfg.SessionSecret,
		TTL:    cfg.SessionTTL,
		Secure: cfg.CookieSecure || cfg.TLSEnabled(),
	}, logger)

	var pinger handlers.Pinger
	if jrn != nil {
		pinger = jrn
	}

	router := server.NewRouter(logger, server.Handlers{
		Files:   handlers.NewFilesHandler(logSvc, cfg.MaxFileSize, logger),
		Logs:    handlers.NewLogsHandler(logSvc, logger),
		Presets: handlers.NewPresetsHandler(presets),
		System:  handlers.NewSystemHandler(cfg, store, cat, getDiskUsage, logger),
		Health:  handlers.NewHealthHandler(cfg.DataDir, pinger),
	}, sessions, limiter)

	srv := server.New(cfg, logger, router)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Log Viewer остановлен")
	return nil
}
