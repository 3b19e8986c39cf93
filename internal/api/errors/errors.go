// Пакет errors — конструкторы ответов с ошибками Log Viewer.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // TODO: переименовать пакет errors, конфликт со stdlib

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
)

// Коды ошибок.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeInvalidFilter   = "INVALID_FILTER"
	CodeBadExtension    = "BAD_EXTENSION"
	CodeNotFound        = "NOT_FOUND"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeStorageFull     = "STORAGE_FULL"
	CodeRateLimited     = "RATE_LIMITED"
	CodeCancelled       = "CANCELLED"
	CodeInternalError   = "INTERNAL_ERROR"
)

// StatusClientClosedRequest — нестандартный статус для запроса,
// прерванного клиентом.
const StatusClientClosedRequest = 499

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// FromDomain переводит ошибку ядра в HTTP-ответ по её классу.
// Текст внутренних ошибок клиенту не раскрывается.
func FromDomain(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, model.ErrNotFound):
		NotFound(w, "Файл не найден")
	case stderrors.Is(err, model.ErrInvalidFilterSpec):
		InvalidFilter(w, err.Error())
	case stderrors.Is(err, model.ErrBadExtension):
		BadExtension(w, "Допускаются только файлы .log")
	case stderrors.Is(err, model.ErrTooLarge):
		FileTooLarge(w, "Файл превышает допустимый размер")
	case stderrors.Is(err, model.ErrStorageFull):
		StorageFull(w, "Хранилище заполнено")
	case stderrors.Is(err, model.ErrCancelled):
		WriteError(w, StatusClientClosedRequest, CodeCancelled, "Запрос отменён")
	default:
		InternalError(w, "Внутренняя ошибка")
	}
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// InvalidFilter — 400 некорректные параметры фильтра.
func InvalidFilter(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidFilter, message)
}

// BadExtension — 400 недопустимое расширение файла.
func BadExtension(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeBadExtension, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// RateLimited — 429 слишком много запросов.
func RateLimited(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, message)
}

// StorageFull — 507 нет свободного места.
func StorageFull(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInsufficientStorage, CodeStorageFull, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
