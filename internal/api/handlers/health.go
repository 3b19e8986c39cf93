// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/goartstore/log-viewer/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// Pinger — проверка доступности журнала каталога.
type Pinger interface {
	Ping() error
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// dataDir — путь к директории данных (для проверки FS)
	dataDir string
	// journal — журнал каталога (nil, если отключён)
	journal Pinger
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(dataDir string, journal Pinger) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		dataDir: dataDir,
		journal: journal,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "log-viewer",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: директория данных доступна на запись, журнал отвечает.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	journalCheck := h.checkJournal()
	if journalCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "log-viewer",
		"checks": map[string]any{
			"filesystem": fsCheck,
			"journal":    journalCheck,
		},
	})
}

// checkFilesystem проверяет доступность директории данных на запись.
func (h *HealthHandler) checkFilesystem() map[string]any {
	if h.dataDir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(h.dataDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория данных недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}

// checkJournal проверяет журнал каталога.
func (h *HealthHandler) checkJournal() map[string]any {
	if h.journal == nil {
		return map[string]any{
			"status":  "ok",
			"message": "Журнал отключён",
		}
	}
	if err := h.journal.Ping(); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Журнал недоступен: " + err.Error(),
		}
	}
	return map[string]any{
		"status": "ok",
	}
}
