// presets.go — наборы фильтров из JSON-файла с перезагрузкой при изменении.
//
// Формат файла — массив объектов:
//
//	[{"name": "Ошибки", "includes": ["ERROR"], "excludes": ["DEBUG"], "logic": "AND"}]
//
// Элементы без name пропускаются; элементы includes/excludes приводятся
// к строкам; logic вне AND/OR заменяется на AND.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bigkaa/goartstore/log-viewer/internal/logfilter"
)

// Preset — сохранённый набор условий фильтра.
type Preset struct {
	Name     string   `json:"name"`
	Includes []string `json:"includes"`
	Excludes []string `json:"excludes"`
	Logic    string   `json:"logic"`
}

// PresetService хранит последние успешно загруженные наборы.
type PresetService struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	presets []Preset
	loadErr error

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewPresetService создаёт сервис и выполняет первую загрузку.
// Отсутствие файла не ошибка: список пуст.
func NewPresetService(path string, logger *slog.Logger) *PresetService {
	ps := &PresetService{
		path:   path,
		logger: logger.With(slog.String("component", "presets")),
	}
	ps.Reload()
	return ps
}

// List возвращает копию наборов и ошибку последней загрузки (если была).
func (ps *PresetService) List() ([]Preset, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	out := make([]Preset, len(ps.presets))
	copy(out, ps.presets)
	return out, ps.loadErr
}

// Reload перечитывает файл. При ошибке разбора остаются прежние наборы.
func (ps *PresetService) Reload() {
	presets, err := LoadPresets(ps.path)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if err != nil {
		ps.loadErr = err
		ps.logger.Warn("Ошибка загрузки наборов фильтров",
			slog.String("path", ps.path),
			slog.String("error", err.Error()),
		)
		return
	}
	ps.presets = presets
	ps.loadErr = nil
	ps.logger.Info("Наборы фильтров загружены",
		slog.String("path", ps.path),
		slog.Int("count", len(presets)),
	)
}

// Watch следит за директорией файла и перезагружает наборы при
// изменении. Директория, а не файл: редакторы заменяют файл целиком.
func (ps *PresetService) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ошибка создания fsnotify: %w", err)
	}
	if err := watcher.Add(filepath.Dir(ps.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("ошибка подписки на %s: %w", filepath.Dir(ps.path), err)
	}

	ps.watcher = watcher
	ps.done = make(chan struct{})
	go ps.watchLoop()
	return nil
}

// Stop прекращает слежение.
func (ps *PresetService) Stop() {
	if ps.watcher == nil {
		return
	}
	_ = ps.watcher.Close()
	<-ps.done
}

func (ps *PresetService) watchLoop() {
	defer close(ps.done)

	target := filepath.Clean(ps.path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-ps.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// Склеиваем серию событий одной записи
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, ps.Reload)

		case err, ok := <-ps.watcher.Errors:
			if !ok {
				return
			}
			ps.logger.Warn("Ошибка fsnotify", slog.String("error", err.Error()))
		}
	}
}

// LoadPresets читает и проверяет файл наборов.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Preset{}, nil
		}
		return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	return ParsePresets(data)
}

// ParsePresets разбирает содержимое файла наборов.
func ParsePresets(data []byte) ([]Preset, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("некорректный формат наборов: корень должен быть массивом: %w", err)
	}

	out := make([]Preset, 0, len(raw))
	for _, item := range raw {
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			continue
		}
		name, ok := obj["name"]
		if !ok || name == nil {
			continue
		}

		p := Preset{
			Name:     stringify(name),
			Includes: stringList(obj["includes"]),
			Excludes: stringList(obj["excludes"]),
			Logic:    string(logfilter.LogicAnd),
		}
		if logic, ok := obj["logic"].(string); ok && logic == string(logfilter.LogicOr) {
			p.Logic = string(logfilter.LogicOr)
		}
		out = append(out, p)
	}
	return out, nil
}

// stringList приводит JSON-массив к списку строк; не массив — пустой список.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, stringify(item))
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return strings.TrimSpace(string(b))
	}
}
