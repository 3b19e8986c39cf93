// Пакет service — бизнес-логика Log Viewer.
// logs.go — LogService: загрузка, список, удаление и фильтрация
// лог-файлов сессии поверх каталога и хранилища содержимого.
package service

import (
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
	"github.com/bigkaa/goartstore/log-viewer/internal/logfilter"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/catalog"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/contentstore"
)

// LogOptions — параметры LogService.
type LogOptions struct {
	// MaxResults — предел строк в ответе фильтрации (LV_MAX_RESULTS)
	MaxResults int
	// MaxLineBytes — предел длины строки (LV_MAX_LINE_BYTES)
	MaxLineBytes int
}

// LogService — операции сессии над лог-файлами.
type LogService struct {
	store   *contentstore.Store
	catalog *catalog.Catalog
	cache   *ResultCache
	scans   singleflight.Group
	opts    LogOptions
	logger  *slog.Logger
}

// NewLogService создаёт LogService. cache может быть nil (кэш отключён).
func NewLogService(
	store *contentstore.Store,
	cat *catalog.Catalog,
	cache *ResultCache,
	opts LogOptions,
	logger *slog.Logger,
) *LogService {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 50000
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = logfilter.DefaultMaxLineBytes
	}
	return &LogService{
		store:   store,
		catalog: cat,
		cache:   cache,
		opts:    opts,
		logger:  logger.With(slog.String("component", "log_service")),
	}
}

// MaxResults возвращает предел строк по умолчанию.
func (s *LogService) MaxResults() int {
	return s.opts.MaxResults
}

// ListFiles возвращает файлы сессии в порядке загрузки.
func (s *LogService) ListFiles(sessionID string) []model.CatalogEntry {
	return s.catalog.List(sessionID)
}

// DeleteFile удаляет файл сессии. Тело удаляется с диска, когда
// на него не остаётся ссылок и открытых чтений.
func (s *LogService) DeleteFile(sessionID, id string) error {
	return s.catalog.Delete(sessionID, id)
}

// GetTimeRange возвращает диапазон меток времени файла, вычисленный
// при загрузке. nil — в файле нет ни одной метки.
func (s *LogService) GetTimeRange(sessionID, id string) (*model.TimeRange, error) {
	entry, err := s.catalog.Get(sessionID, id)
	if err != nil {
		return nil, err
	}
	return entry.TimeRange, nil
}
