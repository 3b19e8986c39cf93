// Пакет journal — durable журнал записей каталога в SQLite.
//
// Каталог живёт в памяти; журнал позволяет пережить перезапуск:
// при старте записи воспроизводятся и заново берут ссылки на содержимое.
// Используется драйвер modernc.org/sqlite (без cgo).
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
)

// SchemaVersion — текущая версия схемы.
const SchemaVersion = 1

// SQLite — журнал каталога поверх одной SQLite базы.
// Безопасен для конкурентного использования.
type SQLite struct {
	db *sql.DB
}

// Open открывает или создаёт базу по пути path (":memory:" — в памяти)
// и применяет миграции.
func Open(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("journal: не удалось создать директорию: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: ошибка открытия %s: %w", path, err)
	}
	if path == ":memory:" {
		// Каждое соединение к :memory: — отдельная база
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: %s: %w", pragma, err)
		}
	}

	j := &SQLite{db: db}
	if err := j.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Migrate создаёт таблицы, если их нет.
func (j *SQLite) Migrate() error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("journal: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("journal: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			id            TEXT PRIMARY KEY,
			session_id    TEXT NOT NULL,
			content_hash  TEXT NOT NULL,
			original_name TEXT NOT NULL,
			uploaded_at   INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("journal: create entries: %w", err)
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_id)`); err != nil {
		return fmt.Errorf("journal: create index: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		fmt.Sprint(SchemaVersion),
	); err != nil {
		return fmt.Errorf("journal: set schema version: %w", err)
	}

	return tx.Commit()
}

// Insert записывает новую запись каталога.
func (j *SQLite) Insert(e model.CatalogEntry) error {
	_, err := j.db.Exec(
		`INSERT INTO entries (id, session_id, content_hash, original_name, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.ContentHash, e.OriginalName, e.UploadedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("journal: insert %s: %w", e.ID, err)
	}
	return nil
}

// Delete удаляет запись. Отсутствие записи не ошибка.
func (j *SQLite) Delete(id string) error {
	if _, err := j.db.Exec(`DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("journal: delete %s: %w", id, err)
	}
	return nil
}

// LoadAll возвращает все записи в порядке загрузки.
// Поля отображения (Size, Lines, TimeRange) не хранятся и не заполняются.
func (j *SQLite) LoadAll() ([]model.CatalogEntry, error) {
	rows, err := j.db.Query(
		`SELECT id, session_id, content_hash, original_name, uploaded_at FROM entries ORDER BY uploaded_at, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: load: %w", err)
	}
	defer rows.Close()

	var out []model.CatalogEntry
	for rows.Next() {
		var (
			e  model.CatalogEntry
			ns int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ContentHash, &e.OriginalName, &ns); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.UploadedAt = time.Unix(0, ns).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: rows: %w", err)
	}
	return out, nil
}

// Close выполняет checkpoint WAL и закрывает базу.
func (j *SQLite) Close() error {
	_, _ = j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return j.db.Close()
}

// Ping проверяет доступность базы (readiness).
func (j *SQLite) Ping() error {
	return j.db.Ping()
}
