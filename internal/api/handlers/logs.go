// logs.go — HTTP handler фильтрации лог-файла.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/log-viewer/internal/api/errors"
	"github.com/bigkaa/goartstore/log-viewer/internal/api/middleware"
	"github.com/bigkaa/goartstore/log-viewer/internal/logfilter"
	"github.com/bigkaa/goartstore/log-viewer/internal/service"
)

// maxFilterBody — предел размера тела запроса фильтрации.
const maxFilterBody = 1 << 20

// LogsHandler — обработчик фильтрации.
type LogsHandler struct {
	svc    *service.LogService
	logger *slog.Logger
}

// NewLogsHandler создаёт обработчик фильтрации.
func NewLogsHandler(svc *service.LogService, logger *slog.Logger) *LogsHandler {
	return &LogsHandler{
		svc:    svc,
		logger: logger.With(slog.String("component", "logs_handler")),
	}
}

// filterRequest — тело POST /api/v1/logs/{file_id}.
type filterRequest struct {
	logfilter.Params
	MaxResults int `json:"max_results"`
}

// filterResponse — ответ фильтрации.
type filterResponse struct {
	Lines      []logfilter.Line `json:"lines"`
	Total      int64            `json:"total"`
	Returned   int              `json:"returned"`
	Truncated  bool             `json:"truncated"`
	MaxResults int              `json:"max_results"`
	StartTime  string           `json:"start_time,omitempty"`
	EndTime    string           `json:"end_time,omitempty"`
}

// FilterLogs обрабатывает POST /api/v1/logs/{file_id}.
// Пустое тело — фильтр без условий.
func (h *LogsHandler) FilterLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "file_id")

	var req filterRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFilterBody))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	spec, err := logfilter.NewSpec(req.Params)
	if err != nil {
		apierrors.FromDomain(w, err)
		return
	}

	res, err := h.svc.FilterLogs(r.Context(), middleware.SessionFromContext(r.Context()), id, spec, req.MaxResults)
	if err != nil {
		apierrors.FromDomain(w, err)
		return
	}

	resp := filterResponse{
		Lines:      res.Lines,
		Total:      res.Total,
		Returned:   len(res.Lines),
		Truncated:  res.Truncated,
		MaxResults: res.MaxResults,
	}
	if resp.Lines == nil {
		resp.Lines = []logfilter.Line{}
	}
	if res.TimeSpan != nil {
		resp.StartTime = formatTime(res.TimeSpan.Start)
		resp.EndTime = formatTime(res.TimeSpan.End)
	}
	writeJSON(w, http.StatusOK, resp)
}
