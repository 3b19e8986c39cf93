// upload.go — загрузка лог-файла: запись в хранилище содержимого
// (хэш + дедупликация) и создание записи каталога.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
)

// uploadsTotal — количество загрузок по результату.
var uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lv_uploads_total",
	Help: "Общее количество загрузок лог-файлов",
}, []string{"result"})

// UploadResult — результат загрузки файла.
type UploadResult struct {
	// Entry — запись каталога (новая или существующая при Duplicate)
	Entry model.CatalogEntry
	// Duplicate — сессия уже загружала этот файл
	Duplicate bool
	// Deduplicated — тело уже было в хранилище (загружено любой сессией)
	Deduplicated bool
}

// UploadFile загружает поток r в сессию sessionID.
//
// Поток:
//  1. contentstore.Put — запись, SHA-256, диапазон меток, ссылка
//  2. catalog.Create — новая запись или существующая (дубликат в сессии)
//
// При ошибке каталога и при дубликате взятая ссылка снимается.
func (s *LogService) UploadFile(ctx context.Context, sessionID, originalName string, r io.Reader) (*UploadResult, error) {
	rec, created, err := s.store.Put(ctx, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = errors.Join(model.ErrTooLarge, err)
		}
		uploadsTotal.WithLabelValues(uploadResultLabel(err)).Inc()
		s.logger.Warn("Ошибка загрузки файла",
			slog.String("filename", originalName),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	entry, dup, err := s.catalog.Create(sessionID, originalName, rec)
	if err != nil {
		s.release(rec.Hash)
		uploadsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка создания записи каталога",
			slog.String("hash", rec.Hash),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if dup {
		s.release(rec.Hash)
		uploadsTotal.WithLabelValues("duplicate").Inc()
		return &UploadResult{Entry: entry, Duplicate: true, Deduplicated: true}, nil
	}

	uploadsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Файл загружен",
		slog.String("file_id", entry.ID),
		slog.String("filename", originalName),
		slog.String("hash", rec.Hash),
		slog.Int64("size", rec.Size),
		slog.Bool("deduplicated", !created),
	)
	return &UploadResult{Entry: entry, Deduplicated: !created}, nil
}

func (s *LogService) release(hash string) {
	if err := s.store.Release(hash); err != nil {
		s.logger.Error("Ошибка снятия ссылки",
			slog.String("hash", hash),
			slog.String("error", err.Error()),
		)
	}
}

func uploadResultLabel(err error) string {
	switch {
	case errors.Is(err, model.ErrTooLarge):
		return "too_large"
	case errors.Is(err, model.ErrStorageFull):
		return "storage_full"
	case errors.Is(err, model.ErrCancelled):
		return "cancelled"
	default:
		return "error"
	}
}
