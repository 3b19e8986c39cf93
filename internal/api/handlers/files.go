// files.go — HTTP handlers для файлов сессии.
// Upload, List, Delete, Time range.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/log-viewer/internal/api/errors"
	"github.com/bigkaa/goartstore/log-viewer/internal/api/middleware"
	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
	"github.com/bigkaa/goartstore/log-viewer/internal/service"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/filestore"
)

// multipartOverhead — запас на заголовки multipart сверх лимита файла.
const multipartOverhead = 1 << 20

// isoLayout — формат меток в ответах: ISO 8601 без часового пояса,
// метки в логах «наивные».
const isoLayout = "2006-01-02T15:04:05.999999"

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	svc         *service.LogService
	maxFileSize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
// maxFileSize — предел размера загружаемого файла в байтах.
func NewFilesHandler(svc *service.LogService, maxFileSize int64, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		svc:         svc,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// uploadResponse — ответ POST /api/v1/files.
type uploadResponse struct {
	Success   bool               `json:"success"`
	File      model.CatalogEntry `json:"file"`
	Duplicate bool               `json:"duplicate"`
	Message   string             `json:"message,omitempty"`
}

// timeRangeResponse — ответ GET /api/v1/files/{file_id}/time-range.
type timeRangeResponse struct {
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// UploadFile обрабатывает POST /api/v1/files.
// Multipart form: file (обязательно, *.log). Тело читается потоком,
// без буферизации формы на диске.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionFromContext(r.Context())

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		apierrors.ValidationError(w, "Ожидается multipart/form-data")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		apierrors.ValidationError(w, "Ошибка разбора multipart: "+err.Error())
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			apierrors.ValidationError(w, "Поле 'file' обязательно")
			return
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				apierrors.FileTooLarge(w, "Файл превышает допустимый размер")
				return
			}
			apierrors.ValidationError(w, "Ошибка разбора multipart: "+err.Error())
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		h.uploadPart(w, r, sessionID, part.FileName(), part)
		_ = part.Close()
		return
	}
}

func (h *FilesHandler) uploadPart(w http.ResponseWriter, r *http.Request, sessionID, filename string, body io.Reader) {
	if filename == "" {
		apierrors.ValidationError(w, "Файл не выбран")
		return
	}
	if !allowedFile(filename) {
		apierrors.BadExtension(w, "Допускаются только файлы .log")
		return
	}

	limited := http.MaxBytesReader(w, io.NopCloser(body), h.maxFileSize)
	result, err := h.svc.UploadFile(r.Context(), sessionID, filestore.SanitizeName(filename), limited)
	if err != nil {
		apierrors.FromDomain(w, err)
		return
	}

	resp := uploadResponse{
		Success:   true,
		File:      result.Entry,
		Duplicate: result.Duplicate,
	}
	status := http.StatusCreated
	if result.Duplicate {
		resp.Message = "Этот файл уже загружен"
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// ListFiles обрабатывает GET /api/v1/files.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files := h.svc.ListFiles(middleware.SessionFromContext(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// DeleteFile обрабатывает DELETE /api/v1/files/{file_id}.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "file_id")
	if err := h.svc.DeleteFile(middleware.SessionFromContext(r.Context()), id); err != nil {
		apierrors.FromDomain(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTimeRange обрабатывает GET /api/v1/files/{file_id}/time-range.
// Для файла без меток возвращается пустой объект.
func (h *FilesHandler) GetTimeRange(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "file_id")
	tr, err := h.svc.GetTimeRange(middleware.SessionFromContext(r.Context()), id)
	if err != nil {
		apierrors.FromDomain(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timeRangeBody(tr))
}

func timeRangeBody(tr *model.TimeRange) timeRangeResponse {
	if tr == nil {
		return timeRangeResponse{}
	}
	return timeRangeResponse{
		StartTime: formatTime(tr.Start),
		EndTime:   formatTime(tr.End),
	}
}

func formatTime(t time.Time) string {
	return t.Format(isoLayout)
}

// allowedFile проверяет расширение .log без учёта регистра.
func allowedFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), filestore.BlobExt)
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
