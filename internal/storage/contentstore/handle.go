package contentstore

import (
	"os"
	"sync"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
)

// Handle — открытое на чтение тело. Пока Handle не закрыт, тело
// остаётся на диске даже после снятия последней ссылки.
type Handle struct {
	store *Store
	file  *os.File
	rec   model.ContentRecord
	once  sync.Once
}

// Read читает тело последовательно.
func (h *Handle) Read(p []byte) (int, error) {
	return h.file.Read(p)
}

// Record возвращает запись на момент открытия.
func (h *Handle) Record() model.ContentRecord {
	return h.rec
}

// Close закрывает файл и снимает аренду. Повторный вызов — no-op.
func (h *Handle) Close() error {
	var err error
	h.once.Do(func() {
		err = h.file.Close()
		h.store.dropLease(h.rec.Hash)
	})
	return err
}
