package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/log-viewer/internal/api/handlers"
	"github.com/bigkaa/goartstore/log-viewer/internal/api/middleware"
	"github.com/bigkaa/goartstore/log-viewer/internal/config"
	"github.com/bigkaa/goartstore/log-viewer/internal/service"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/catalog"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/contentstore"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/filestore"
)

const sampleLog = `[2025-11-19 08:00:00] INFO service started
[2025-11-19 08:01:00] DEBUG cache warmed
[2025-11-19 08:02:00] ERROR connection refused
stack frame
[2025-11-19 08:04:00] FATAL out of memory
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupServer поднимает полный роутер поверх временной директории.
func setupServer(t *testing.T, maxFileSize int64) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	files, err := filestore.New(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	store := contentstore.New(files, contentstore.Options{}, testLogger())
	cat := catalog.New(store, nil, testLogger())
	svc := service.NewLogService(store, cat, service.NewResultCache(8, time.Minute, 100),
		service.LogOptions{MaxResults: 3}, testLogger())

	presetsPath := filepath.Join(dir, "presets.json")
	if err := os.WriteFile(presetsPath, []byte(`[{"name":"Ошибки","includes":["ERROR"]}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	presets := service.NewPresetService(presetsPath, testLogger())

	cfg := &config.Config{DataDir: files.DataDir(), MaxFileSize: maxFileSize, MaxResults: 3, Retention: time.Hour}
	h := Handlers{
		Files:   handlers.NewFilesHandler(svc, maxFileSize, testLogger()),
		Logs:    handlers.NewLogsHandler(svc, testLogger()),
		Presets: handlers.NewPresetsHandler(presets),
		System:  handlers.NewSystemHandler(cfg, store, cat, nil, testLogger()),
		Health:  handlers.NewHealthHandler(files.DataDir(), nil),
	}
	sessions := middleware.NewSessions(middleware.SessionConfig{Secret: "test"}, testLogger())
	limiter := middleware.NewRateLimiter(0, 0)

	ts := httptest.NewServer(NewRouter(testLogger(), h, sessions, limiter))
	t.Cleanup(ts.Close)
	return ts
}

// newClient — клиент со своей cookie (своя сессия).
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar}
}

func uploadRequest(t *testing.T, url, filename, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(fw, body)
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, url+"/api/v1/files", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
}

type uploadBody struct {
	Success bool `json:"success"`
	File    struct {
		ID           string `json:"id"`
		OriginalName string `json:"original_name"`
		Lines        int64  `json:"lines"`
	} `json:"file"`
	Duplicate bool `json:"duplicate"`
}

func upload(t *testing.T, c *http.Client, url, filename, body string) (*http.Response, uploadBody) {
	t.Helper()
	resp, err := c.Do(uploadRequest(t, url, filename, body))
	if err != nil {
		t.Fatal(err)
	}
	var out uploadBody
	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
		decode(t, resp, &out)
	} else {
		resp.Body.Close()
	}
	return resp, out
}

// TestUploadListFilterDelete — основной сценарий работы сессии.
func TestUploadListFilterDelete(t *testing.T) {
	ts := setupServer(t, 1<<20)
	c := newClient(t)

	resp, up := upload(t, c, ts.URL, "my app.log", sampleLog)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("загрузка: ожидался 201, получен %d", resp.StatusCode)
	}
	if up.File.OriginalName != "my_app.log" {
		t.Errorf("имя должно быть очищено: %q", up.File.OriginalName)
	}
	if up.File.Lines != 5 {
		t.Errorf("строк: ожидалось 5, получено %d", up.File.Lines)
	}

	// Повторная загрузка в той же сессии — дубликат
	resp, dup := upload(t, c, ts.URL, "again.log", sampleLog)
	if resp.StatusCode != http.StatusOK || !dup.Duplicate || dup.File.ID != up.File.ID {
		t.Errorf("дубликат: статус %d, %+v", resp.StatusCode, dup)
	}

	// Список
	listResp, err := c.Get(ts.URL + "/api/v1/files")
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Files []struct {
			ID string `json:"id"`
		} `json:"files"`
	}
	decode(t, listResp, &list)
	if len(list.Files) != 1 || list.Files[0].ID != up.File.ID {
		t.Errorf("список: %+v", list)
	}

	// Диапазон меток
	trResp, err := c.Get(ts.URL + "/api/v1/files/" + up.File.ID + "/time-range")
	if err != nil {
		t.Fatal(err)
	}
	var tr map[string]string
	decode(t, trResp, &tr)
	if tr["start_time"] != "2025-11-19T08:00:00" || tr["end_time"] != "2025-11-19T08:04:00" {
		t.Errorf("диапазон меток: %v", tr)
	}

	// Фильтр: max_results = 3 в конфигурации, совпадают 4 строки
	filterResp, err := c.Post(ts.URL+"/api/v1/logs/"+up.File.ID, "application/json",
		strings.NewReader(`{"exclude":["DEBUG"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if filterResp.StatusCode != http.StatusOK {
		t.Fatalf("фильтр: ожидался 200, получен %d", filterResp.StatusCode)
	}
	var fr struct {
		Lines []struct {
			Number  int64  `json:"line_number"`
			Content string `json:"content"`
		} `json:"lines"`
		Total      int64  `json:"total"`
		Truncated  bool   `json:"truncated"`
		MaxResults int    `json:"max_results"`
		StartTime  string `json:"start_time"`
	}
	decode(t, filterResp, &fr)
	if fr.Total != 4 || !fr.Truncated || fr.MaxResults != 3 || len(fr.Lines) != 3 {
		t.Errorf("фильтр: total=%d truncated=%v max=%d lines=%d", fr.Total, fr.Truncated, fr.MaxResults, len(fr.Lines))
	}
	if len(fr.Lines) == 3 && fr.Lines[2].Number != 4 {
		t.Errorf("номер третьей строки: ожидался 4, получен %d", fr.Lines[2].Number)
	}

	// Удаление
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/files/"+up.File.ID, nil)
	delResp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Errorf("удаление: ожидался 204, получен %d", delResp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/files/"+up.File.ID, nil)
	delResp, err = c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNotFound {
		t.Errorf("повторное удаление: ожидался 404, получен %d", delResp.StatusCode)
	}
}

// TestSessionIsolation: другая сессия не видит и не может удалить чужой файл.
func TestSessionIsolation(t *testing.T) {
	ts := setupServer(t, 1<<20)
	owner := newClient(t)
	intruder := newClient(t)

	_, up := upload(t, owner, ts.URL, "app.log", sampleLog)

	resp, err := intruder.Post(ts.URL+"/api/v1/logs/"+up.File.ID, "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusNotFound || body.Error.Code != "NOT_FOUND" {
		t.Errorf("чужой файл: статус %d, код %q", resp.StatusCode, body.Error.Code)
	}

	// Та же загрузка другой сессией — не дубликат, новая запись
	resp2, other := upload(t, intruder, ts.URL, "app.log", sampleLog)
	if resp2.StatusCode != http.StatusCreated || other.Duplicate || other.File.ID == up.File.ID {
		t.Errorf("загрузка другой сессией: статус %d, %+v", resp2.StatusCode, other)
	}
}

func TestUpload_Errors(t *testing.T) {
	ts := setupServer(t, 64)
	c := newClient(t)

	resp, _ := upload(t, c, ts.URL, "notes.txt", "x\n")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("расширение: ожидался 400, получен %d", resp.StatusCode)
	}

	resp, _ = upload(t, c, ts.URL, "big.log", strings.Repeat("x", 200))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("размер: ожидался 413, получен %d", resp.StatusCode)
	}

	resp, err := c.Post(ts.URL+"/api/v1/files", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("не multipart: ожидался 400, получен %d", resp.StatusCode)
	}

	// Неудачные загрузки не оставляют записей
	listResp, err := c.Get(ts.URL + "/api/v1/files")
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Files []any `json:"files"`
	}
	decode(t, listResp, &list)
	if len(list.Files) != 0 {
		t.Errorf("список должен быть пуст: %v", list.Files)
	}
}

func TestFilter_InvalidSpec(t *testing.T) {
	ts := setupServer(t, 1<<20)
	c := newClient(t)
	_, up := upload(t, c, ts.URL, "app.log", sampleLog)

	for _, body := range []string{
		`{"start_date":"вчера"}`,
		`{"logic":"XOR"}`,
		`{"start_date":"2025-11-20","end_date":"2025-11-19"}`,
		`{"max_results":-1}`,
	} {
		resp, err := c.Post(ts.URL+"/api/v1/logs/"+up.File.ID, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		var e struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		decode(t, resp, &e)
		if resp.StatusCode != http.StatusBadRequest || e.Error.Code != "INVALID_FILTER" {
			t.Errorf("%s: статус %d, код %q", body, resp.StatusCode, e.Error.Code)
		}
	}
}

func TestPresetsInfoHealth(t *testing.T) {
	ts := setupServer(t, 1<<20)
	c := newClient(t)

	resp, err := c.Get(ts.URL + "/api/v1/presets")
	if err != nil {
		t.Fatal(err)
	}
	var presets struct {
		Presets []service.Preset `json:"presets"`
	}
	decode(t, resp, &presets)
	if len(presets.Presets) != 1 || presets.Presets[0].Logic != "AND" {
		t.Errorf("наборы: %+v", presets.Presets)
	}

	for _, path := range []string{"/health/live", "/health/ready", "/api/v1/info", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: ожидался 200, получен %d", path, resp.StatusCode)
		}
		if len(resp.Cookies()) != 0 {
			t.Errorf("%s: служебные endpoints не выдают сессию", path)
		}
	}
}
