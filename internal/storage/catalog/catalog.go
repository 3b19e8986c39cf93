// Пакет catalog — потокобезопасный каталог записей сессий.
//
// Каждая запись — файл, каким его видит одна сессия: id, имя,
// время загрузки и ссылка на тело в хранилище содержимого.
// Запись держит ровно одну ссылку; удаление записи (владельцем или
// очисткой по возрасту) и снятие ссылки выполняются под одной
// блокировкой каталога. Порядок блокировок: каталог → хранилище.
//
// Журнал (опционально) сохраняет записи между перезапусками;
// ошибка журнала отменяет изменение.
package catalog

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
)

// Content — операции хранилища содержимого, нужные каталогу.
type Content interface {
	Acquire(hash string) (model.ContentRecord, error)
	Release(hash string) error
}

// Journal — durable журнал записей.
type Journal interface {
	Insert(e model.CatalogEntry) error
	Delete(id string) error
	LoadAll() ([]model.CatalogEntry, error)
}

// ReplayResult — итог Replay.
type ReplayResult struct {
	Restored int
	Dropped  int
}

// Catalog — каталог записей в памяти.
type Catalog struct {
	mu       sync.RWMutex
	entries  map[string]*model.CatalogEntry // id → запись
	sessions map[string][]string            // session → id в порядке создания

	content Content
	journal Journal
	logger  *slog.Logger
	now     func() time.Time
}

// New создаёт пустой каталог. journal может быть nil.
func New(content Content, journal Journal, logger *slog.Logger) *Catalog {
	return &Catalog{
		entries:  make(map[string]*model.CatalogEntry),
		sessions: make(map[string][]string),
		content:  content,
		journal:  journal,
		logger:   logger.With(slog.String("component", "catalog")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create добавляет запись для rec в сессию sessionID. Вызывающий код
// уже держит ссылку на rec и передаёт её записи.
//
// Если у сессии уже есть запись с тем же хэшем, возвращается она
// с duplicate = true; лишнюю ссылку вызывающий код должен снять.
func (c *Catalog) Create(sessionID, originalName string, rec model.ContentRecord) (model.CatalogEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.sessions[sessionID] {
		if e := c.entries[id]; e.ContentHash == rec.Hash {
			return *e, true, nil
		}
	}

	e := &model.CatalogEntry{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		ContentHash:  rec.Hash,
		OriginalName: originalName,
		UploadedAt:   c.now(),
		Size:         rec.Size,
		Lines:        rec.Lines,
		TimeRange:    rec.TimeRange,
	}

	if c.journal != nil {
		if err := c.journal.Insert(*e); err != nil {
			return model.CatalogEntry{}, false, fmt.Errorf("%w: %w", model.ErrIO, err)
		}
	}

	c.addLocked(e)
	return *e, false, nil
}

// List возвращает записи сессии в порядке создания.
func (c *Catalog) List(sessionID string) []model.CatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.sessions[sessionID]
	out := make([]model.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, *c.entries[id])
	}
	return out
}

// Get возвращает запись сессии. Чужая и несуществующая запись
// неразличимы: обе дают ErrNotFound.
func (c *Catalog) Get(sessionID, id string) (model.CatalogEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok || e.SessionID != sessionID {
		return model.CatalogEntry{}, fmt.Errorf("%w: файл %s", model.ErrNotFound, id)
	}
	return *e, nil
}

// Delete удаляет запись владельцем и снимает её ссылку на содержимое.
func (c *Catalog) Delete(sessionID, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || e.SessionID != sessionID {
		return fmt.Errorf("%w: файл %s", model.ErrNotFound, id)
	}
	if err := c.destroyLocked(e); err != nil {
		return err
	}

	c.logger.Info("Запись удалена",
		slog.String("file_id", id),
		slog.String("hash", e.ContentHash),
	)
	return nil
}

// SweepExpired удаляет все записи старше maxAge во всех сессиях.
// Возвращает число удалённых записей.
func (c *Catalog) SweepExpired(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, e := range c.entries {
		if !e.IsExpired(now, maxAge) {
			continue
		}
		if err := c.destroyLocked(e); err != nil {
			c.logger.Error("Ошибка удаления устаревшей записи",
				slog.String("file_id", e.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}
	return removed
}

// Replay восстанавливает каталог из журнала при старте. Для каждой
// записи берётся ссылка на содержимое; записи без содержимого
// удаляются из журнала.
func (c *Catalog) Replay() (ReplayResult, error) {
	var res ReplayResult
	if c.journal == nil {
		return res, nil
	}

	stored, err := c.journal.LoadAll()
	if err != nil {
		return res, fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range stored {
		e := stored[i]
		rec, err := c.content.Acquire(e.ContentHash)
		if err != nil {
			c.logger.Warn("Запись журнала без содержимого удалена",
				slog.String("file_id", e.ID),
				slog.String("hash", e.ContentHash),
			)
			if err := c.journal.Delete(e.ID); err != nil {
				return res, fmt.Errorf("%w: %w", model.ErrIO, err)
			}
			res.Dropped++
			continue
		}
		e.Size = rec.Size
		e.Lines = rec.Lines
		e.TimeRange = rec.TimeRange
		c.addLocked(&e)
		res.Restored++
	}

	c.logger.Info("Каталог восстановлен из журнала",
		slog.Int("restored", res.Restored),
		slog.Int("dropped", res.Dropped),
	)
	return res, nil
}

// Count возвращает число записей и число сессий.
func (c *Catalog) Count() (entries, sessions int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), len(c.sessions)
}

func (c *Catalog) addLocked(e *model.CatalogEntry) {
	c.entries[e.ID] = e
	c.sessions[e.SessionID] = append(c.sessions[e.SessionID], e.ID)
}

// destroyLocked удаляет запись из журнала и памяти и снимает ссылку.
func (c *Catalog) destroyLocked(e *model.CatalogEntry) error {
	if c.journal != nil {
		if err := c.journal.Delete(e.ID); err != nil {
			return fmt.Errorf("%w: %w", model.ErrIO, err)
		}
	}

	delete(c.entries, e.ID)
	ids := c.sessions[e.SessionID]
	for i, id := range ids {
		if id == e.ID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(c.sessions, e.SessionID)
	} else {
		c.sessions[e.SessionID] = ids
	}

	if err := c.content.Release(e.ContentHash); err != nil {
		c.logger.Error("Ошибка снятия ссылки на содержимое",
			slog.String("hash", e.ContentHash),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
