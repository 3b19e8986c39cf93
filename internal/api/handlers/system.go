// system.go — обработчик GET /api/v1/info (состояние Log Viewer).
// Без сессии: для мониторинга.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/log-viewer/internal/config"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/catalog"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/contentstore"
)

// DiskUsageFunc возвращает total, used, available в байтах для path.
type DiskUsageFunc func(path string) (total, used, available int64, err error)

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	cfg       *config.Config
	store     *contentstore.Store
	catalog   *catalog.Catalog
	diskUsage DiskUsageFunc
	logger    *slog.Logger
}

// NewSystemHandler создаёт обработчик системных endpoints.
// diskUsage может быть nil — тогда блок disk не выводится.
func NewSystemHandler(
	cfg *config.Config,
	store *contentstore.Store,
	cat *catalog.Catalog,
	diskUsage DiskUsageFunc,
	logger *slog.Logger,
) *SystemHandler {
	return &SystemHandler{
		cfg:       cfg,
		store:     store,
		catalog:   cat,
		diskUsage: diskUsage,
		logger:    logger.With(slog.String("component", "system_handler")),
	}
}

type capacityInfo struct {
	MaxBytes       int64 `json:"max_bytes"`
	UsedBytes      int64 `json:"used_bytes"`
	AvailableBytes int64 `json:"available_bytes"`
}

type diskInfo struct {
	TotalBytes     int64 `json:"total_bytes"`
	UsedBytes      int64 `json:"used_bytes"`
	AvailableBytes int64 `json:"available_bytes"`
}

type infoResponse struct {
	Service      string        `json:"service"`
	Version      string        `json:"version"`
	Files        int           `json:"files"`
	Sessions     int           `json:"sessions"`
	Contents     int           `json:"contents"`
	PendingBlobs int           `json:"pending_blobs"`
	OpenReads    int           `json:"open_reads"`
	Capacity     *capacityInfo `json:"capacity,omitempty"`
	Disk         *diskInfo     `json:"disk,omitempty"`
	MaxFileSize  int64         `json:"max_file_size"`
	MaxResults   int           `json:"max_results"`
	Retention    string        `json:"retention"`
}

// GetInfo обрабатывает GET /api/v1/info.
func (h *SystemHandler) GetInfo(w http.ResponseWriter, _ *http.Request) {
	stats := h.store.Stats()
	entries, sessions := h.catalog.Count()

	resp := infoResponse{
		Service:      "log-viewer",
		Version:      config.Version,
		Files:        entries,
		Sessions:     sessions,
		Contents:     stats.Records,
		PendingBlobs: stats.Pending,
		OpenReads:    stats.Leases,
		MaxFileSize:  h.cfg.MaxFileSize,
		MaxResults:   h.cfg.MaxResults,
		Retention:    h.cfg.Retention.String(),
	}

	if h.cfg.MaxCapacity > 0 {
		available := h.cfg.MaxCapacity - stats.Bytes
		if available < 0 {
			available = 0
		}
		resp.Capacity = &capacityInfo{
			MaxBytes:       h.cfg.MaxCapacity,
			UsedBytes:      stats.Bytes,
			AvailableBytes: available,
		}
	}

	if h.diskUsage != nil {
		total, used, available, err := h.diskUsage(h.cfg.DataDir)
		if err != nil {
			h.logger.Warn("Ошибка получения ёмкости диска", slog.String("error", err.Error()))
		} else {
			resp.Disk = &diskInfo{TotalBytes: total, UsedBytes: used, AvailableBytes: available}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
