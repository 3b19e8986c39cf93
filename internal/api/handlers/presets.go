// presets.go — HTTP handler наборов фильтров.
package handlers

import (
	"net/http"

	"github.com/bigkaa/goartstore/log-viewer/internal/service"
)

// PresetsHandler — обработчик GET /api/v1/presets.
type PresetsHandler struct {
	presets *service.PresetService
}

// NewPresetsHandler создаёт обработчик наборов фильтров.
func NewPresetsHandler(presets *service.PresetService) *PresetsHandler {
	return &PresetsHandler{presets: presets}
}

// ListPresets возвращает последние успешно загруженные наборы.
// Ошибка последней перезагрузки отдаётся в поле warning.
func (h *PresetsHandler) ListPresets(w http.ResponseWriter, _ *http.Request) {
	presets, loadErr := h.presets.List()
	resp := map[string]any{
		"success": true,
		"presets": presets,
	}
	if loadErr != nil {
		resp["warning"] = loadErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
