package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
)

func testEntry(id, session string, at time.Time) model.CatalogEntry {
	return model.CatalogEntry{
		ID:           id,
		SessionID:    session,
		ContentHash:  "hash-" + id,
		OriginalName: id + ".log",
		UploadedAt:   at,
	}
}

// TestInsertLoadDelete проверяет запись, чтение и удаление в одной базе.
func TestInsertLoadDelete(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("ошибка открытия журнала: %v", err)
	}
	defer j.Close()

	base := time.Date(2025, 11, 19, 8, 0, 0, 123, time.UTC)
	// Вставка в обратном порядке: LoadAll сортирует по времени загрузки
	if err := j.Insert(testEntry("b", "s1", base.Add(time.Minute))); err != nil {
		t.Fatalf("ошибка Insert: %v", err)
	}
	if err := j.Insert(testEntry("a", "s2", base)); err != nil {
		t.Fatalf("ошибка Insert: %v", err)
	}

	got, err := j.LoadAll()
	if err != nil {
		t.Fatalf("ошибка LoadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ожидалось 2 записи, получено %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("порядок: %s, %s", got[0].ID, got[1].ID)
	}
	if !got[0].UploadedAt.Equal(base) {
		t.Errorf("UploadedAt: ожидалось %v, получено %v", base, got[0].UploadedAt)
	}
	if got[0].SessionID != "s2" || got[0].ContentHash != "hash-a" || got[0].OriginalName != "a.log" {
		t.Errorf("поля: %+v", got[0])
	}

	if err := j.Delete("a"); err != nil {
		t.Fatalf("ошибка Delete: %v", err)
	}
	if err := j.Delete("a"); err != nil {
		t.Errorf("повторное удаление не должно быть ошибкой: %v", err)
	}
	got, _ = j.LoadAll()
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("после удаления: %+v", got)
	}
}

func TestInsert_DuplicateID(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("ошибка открытия журнала: %v", err)
	}
	defer j.Close()

	e := testEntry("x", "s", time.Now().UTC())
	if err := j.Insert(e); err != nil {
		t.Fatalf("ошибка Insert: %v", err)
	}
	if err := j.Insert(e); err == nil {
		t.Error("повторный id должен давать ошибку")
	}
}

// TestReopen проверяет, что записи переживают переоткрытие базы.
func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("ошибка открытия журнала: %v", err)
	}
	if err := j.Insert(testEntry("keep", "s", time.Now().UTC())); err != nil {
		t.Fatalf("ошибка Insert: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("ошибка Close: %v", err)
	}

	j, err = Open(path)
	if err != nil {
		t.Fatalf("ошибка повторного открытия: %v", err)
	}
	defer j.Close()

	got, err := j.LoadAll()
	if err != nil {
		t.Fatalf("ошибка LoadAll: %v", err)
	}
	if len(got) != 1 || got[0].ID != "keep" {
		t.Errorf("после переоткрытия: %+v", got)
	}
	if err := j.Ping(); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
