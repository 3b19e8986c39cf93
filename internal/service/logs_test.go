package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
	"github.com/bigkaa/goartstore/log-viewer/internal/logfilter"
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

type testEnv struct {
	svc     *LogService
	store   *contentstore.Store
	catalog *catalog.Catalog
	files   *filestore.FileStore
}

// setupService создаёт LogService поверх временной директории.
func setupService(t *testing.T, cache *ResultCache) *testEnv {
	t.Helper()

	files, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}
	store := contentstore.New(files, contentstore.Options{}, testLogger())
	cat := catalog.New(store, nil, testLogger())
	svc := NewLogService(store, cat, cache, LogOptions{MaxResults: 100}, testLogger())
	return &testEnv{svc: svc, store: store, catalog: cat, files: files}
}

func (e *testEnv) upload(t *testing.T, session, body string) *UploadResult {
	t.Helper()
	res, err := e.svc.UploadFile(context.Background(), session, "app.log", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Ошибка UploadFile: %v", err)
	}
	return res
}

func TestUploadFile_NewAndDuplicate(t *testing.T) {
	env := setupService(t, nil)

	first := env.upload(t, "s1", sampleLog)
	if first.Duplicate || first.Deduplicated {
		t.Errorf("первая загрузка: %+v", first)
	}
	if first.Entry.OriginalName != "app.log" || first.Entry.Lines != 5 {
		t.Errorf("запись: %+v", first.Entry)
	}

	again := env.upload(t, "s1", sampleLog)
	if !again.Duplicate || again.Entry.ID != first.Entry.ID {
		t.Errorf("повторная загрузка в сессии: %+v", again)
	}

	other := env.upload(t, "s2", sampleLog)
	if other.Duplicate || !other.Deduplicated {
		t.Errorf("загрузка другой сессией: %+v", other)
	}

	rec, err := env.store.Get(first.Entry.ContentHash)
	if err != nil {
		t.Fatalf("Ошибка Get: %v", err)
	}
	if rec.RefCount != 2 {
		t.Errorf("RefCount: хотели 2, получили %d", rec.RefCount)
	}
}

func TestUploadFile_TooLarge(t *testing.T) {
	env := setupService(t, nil)

	w := httptest.NewRecorder()
	body := http.MaxBytesReader(w, io.NopCloser(strings.NewReader(strings.Repeat("x", 100))), 10)

	_, err := env.svc.UploadFile(context.Background(), "s", "big.log", body)
	if !errors.Is(err, model.ErrTooLarge) {
		t.Fatalf("ожидалась ErrTooLarge, получено %v", err)
	}
	if st := env.store.Stats(); st.Records != 0 {
		t.Errorf("тело не должно сохраняться: %+v", st)
	}
}

func TestDeleteFile_LastReferenceRemovesBlob(t *testing.T) {
	env := setupService(t, nil)
	a := env.upload(t, "s1", sampleLog)
	b := env.upload(t, "s2", sampleLog)

	if err := env.svc.DeleteFile("s1", a.Entry.ID); err != nil {
		t.Fatalf("Ошибка DeleteFile: %v", err)
	}
	if !env.files.Exists(a.Entry.ContentHash) {
		t.Fatal("тело должно остаться: есть ссылка s2")
	}
	if err := env.svc.DeleteFile("s2", b.Entry.ID); err != nil {
		t.Fatalf("Ошибка DeleteFile: %v", err)
	}
	if env.files.Exists(a.Entry.ContentHash) {
		t.Error("тело должно быть удалено после последней ссылки")
	}
	if err := env.svc.DeleteFile("s2", b.Entry.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("повторное удаление: ожидалась ErrNotFound, получено %v", err)
	}
}

func TestGetTimeRange(t *testing.T) {
	env := setupService(t, nil)
	withTs := env.upload(t, "s", sampleLog)
	without := env.upload(t, "s", "no timestamps\nat all\n")

	r, err := env.svc.GetTimeRange("s", withTs.Entry.ID)
	if err != nil {
		t.Fatalf("Ошибка GetTimeRange: %v", err)
	}
	if r == nil {
		t.Fatal("диапазон не должен быть nil")
	}
	wantStart := time.Date(2025, 11, 19, 8, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 11, 19, 8, 4, 0, 0, time.UTC)
	if !r.Start.Equal(wantStart) || !r.End.Equal(wantEnd) {
		t.Errorf("диапазон: %v — %v", r.Start, r.End)
	}

	r, err = env.svc.GetTimeRange("s", without.Entry.ID)
	if err != nil {
		t.Fatalf("Ошибка GetTimeRange: %v", err)
	}
	if r != nil {
		t.Errorf("для файла без меток ожидался nil, получено %v", r)
	}

	if _, err := env.svc.GetTimeRange("other", withTs.Entry.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("чужая сессия: ожидалась ErrNotFound, получено %v", err)
	}
}

func TestFilterLogs(t *testing.T) {
	env := setupService(t, nil)
	up := env.upload(t, "s", sampleLog)

	spec, err := logfilter.NewSpec(logfilter.Params{Include: []string{"ERROR", "FATAL"}, Logic: "OR"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.svc.FilterLogs(context.Background(), "s", up.Entry.ID, spec, 0)
	if err != nil {
		t.Fatalf("Ошибка FilterLogs: %v", err)
	}
	if res.Total != 2 || len(res.Lines) != 2 {
		t.Errorf("совпадений: Total=%d, строк=%d", res.Total, len(res.Lines))
	}
	if res.Lines[0].Number != 3 || res.Lines[1].Number != 5 {
		t.Errorf("номера строк: %d, %d", res.Lines[0].Number, res.Lines[1].Number)
	}
	if res.MaxResults != 100 {
		t.Errorf("MaxResults по умолчанию: хотели 100, получили %d", res.MaxResults)
	}

	// Предел запроса выше настроенного ограничивается
	res, err = env.svc.FilterLogs(context.Background(), "s", up.Entry.ID, spec, 1_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if res.MaxResults != 100 {
		t.Errorf("MaxResults: хотели 100, получили %d", res.MaxResults)
	}

	res, err = env.svc.FilterLogs(context.Background(), "s", up.Entry.ID, spec, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Lines) != 1 || !res.Truncated || res.Total != 2 {
		t.Errorf("усечение: %+v", res)
	}
}

// TestFilterLogs_DateBoundOnUntimedContent: граница по дате для файла
// без единой метки не пропускает ни одной строки.
func TestFilterLogs_DateBoundOnUntimedContent(t *testing.T) {
	env := setupService(t, nil)
	up := env.upload(t, "s", "plain one\nplain two\n")

	spec, err := logfilter.NewSpec(logfilter.Params{StartDate: "2025-01-01"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.svc.FilterLogs(context.Background(), "s", up.Entry.ID, spec, 0)
	if err != nil {
		t.Fatalf("Ошибка FilterLogs: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("ожидалось 0 совпадений, получено %d", res.Total)
	}
}

func TestFilterLogs_Errors(t *testing.T) {
	env := setupService(t, nil)
	up := env.upload(t, "s", sampleLog)

	if _, err := env.svc.FilterLogs(context.Background(), "other", up.Entry.ID, logfilter.Spec{Logic: logfilter.LogicAnd}, 0); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("чужая сессия: ожидалась ErrNotFound, получено %v", err)
	}
	if _, err := env.svc.FilterLogs(context.Background(), "s", up.Entry.ID, logfilter.Spec{Logic: logfilter.LogicAnd}, -1); !errors.Is(err, model.ErrInvalidFilterSpec) {
		t.Errorf("отрицательный предел: ожидалась ErrInvalidFilterSpec, получено %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.svc.FilterLogs(ctx, "s", up.Entry.ID, logfilter.Spec{Logic: logfilter.LogicAnd}, 0); !errors.Is(err, model.ErrCancelled) {
		t.Errorf("отменённый запрос: ожидалась ErrCancelled, получено %v", err)
	}
}

func TestFilterLogs_Cache(t *testing.T) {
	env := setupService(t, NewResultCache(8, time.Minute, 10))
	up := env.upload(t, "s", sampleLog)
	spec := logfilter.Spec{Logic: logfilter.LogicAnd, CaseSensitive: true}

	first, err := env.svc.FilterLogs(context.Background(), "s", up.Entry.ID, spec, 0)
	if err != nil {
		t.Fatal(err)
	}
	if env.svc.cache.Len() != 1 {
		t.Fatalf("результат должен попасть в кэш, Len=%d", env.svc.cache.Len())
	}
	second, err := env.svc.FilterLogs(context.Background(), "s", up.Entry.ID, spec, 0)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("повторный запрос должен вернуться из кэша")
	}

	// После удаления файл недоступен, несмотря на кэш
	if err := env.svc.DeleteFile("s", up.Entry.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.FilterLogs(context.Background(), "s", up.Entry.ID, spec, 0); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

func TestResultCache_SkipsLargeResults(t *testing.T) {
	c := NewResultCache(4, time.Minute, 1)
	c.Set("big", &logfilter.Result{Lines: make([]logfilter.Line, 2)})
	if _, ok := c.Get("big"); ok {
		t.Error("результат длиннее предела не должен кэшироваться")
	}
	disabled := NewResultCache(0, time.Minute, 1)
	disabled.Set("k", &logfilter.Result{})
	if _, ok := disabled.Get("k"); ok || disabled.Len() != 0 {
		t.Error("отключённый кэш ничего не хранит")
	}
}

// TestConcurrentFilterAndDelete: удаление во время чтения не ломает
// начатые проходы, тело удаляется после их завершения.
func TestConcurrentFilterAndDelete(t *testing.T) {
	env := setupService(t, nil)

	var b strings.Builder
	for i := 0; i < 5000; i++ {
		fmt.Fprintf(&b, "[2025-11-19 08:00:%02d] INFO line %d\n", i%60, i)
	}
	up := env.upload(t, "s", b.String())
	spec := logfilter.Spec{Logic: logfilter.LogicAnd, CaseSensitive: true}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := env.svc.FilterLogs(context.Background(), "s", up.Entry.ID, spec, n+1)
			if err != nil {
				if !errors.Is(err, model.ErrNotFound) {
					t.Errorf("неожиданная ошибка: %v", err)
				}
				return
			}
			if res.Total != 5000 {
				t.Errorf("Total: хотели 5000, получили %d", res.Total)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = env.svc.DeleteFile("s", up.Entry.ID)
	}()
	wg.Wait()

	if st := env.store.Stats(); st.Records != 0 || st.Leases != 0 {
		t.Errorf("после завершения всё должно быть освобождено: %+v", st)
	}
	if env.files.Exists(up.Entry.ContentHash) {
		t.Error("тело должно быть удалено")
	}
}
