// Пакет server — HTTP-сервер Log Viewer с TLS и graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goartstore/log-viewer/internal/api/handlers"
	"github.com/bigkaa/goartstore/log-viewer/internal/api/middleware"
	"github.com/bigkaa/goartstore/log-viewer/internal/config"
)

// Handlers — набор обработчиков, монтируемых в роутер.
type Handlers struct {
	Files   *handlers.FilesHandler
	Logs    *handlers.LogsHandler
	Presets *handlers.PresetsHandler
	System  *handlers.SystemHandler
	Health  *handlers.HealthHandler
}

// Server — HTTP-сервер Log Viewer.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// NewRouter собирает маршруты.
// /api/v1/* (кроме info) работают в контексте сессии; загрузка
// дополнительно ограничена по частоте.
func NewRouter(logger *slog.Logger, h Handlers, sessions *middleware.Sessions, limiter *middleware.RateLimiter) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/api/v1/info", h.System.GetInfo)

	router.Group(func(r chi.Router) {
		r.Use(sessions.Middleware())

		r.With(limiter.Middleware()).Post("/api/v1/files", h.Files.UploadFile)
		r.Get("/api/v1/files", h.Files.ListFiles)
		r.Delete("/api/v1/files/{file_id}", h.Files.DeleteFile)
		r.Get("/api/v1/files/{file_id}/time-range", h.Files.GetTimeRange)
		r.Post("/api/v1/logs/{file_id}", h.Logs.FilterLogs)
		r.Get("/api/v1/presets", h.Presets.ListPresets)
	})

	return router
}

// New создаёт HTTP-сервер с готовым роутером.
// WriteTimeout не задан: фильтрация больших файлов ограничена
// контекстом запроса, а не таймаутом записи.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if cfg.TLSEnabled() {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown с таймаутом
// LV_SHUTDOWN_TIMEOUT.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSEnabled()),
		)

		var err error
		if s.cfg.TLSEnabled() {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
