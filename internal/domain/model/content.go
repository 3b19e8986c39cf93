// Пакет model — доменные модели Log Viewer.
// ContentRecord — физическое тело лог-файла в content-addressed хранилище,
// CatalogEntry — файл, каким его видит одна сессия.
package model

import (
	"time"
)

// TimeRange — диапазон меток времени [Start, End] в содержимом лога.
// Метки «наивные»: хранятся как wall clock в UTC без часового пояса источника.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Observe расширяет диапазон меткой ts. Для нулевого диапазона
// первая метка становится и началом, и концом.
func (r *TimeRange) Observe(ts time.Time) {
	if r.Start.IsZero() && r.End.IsZero() {
		r.Start, r.End = ts, ts
		return
	}
	if ts.Before(r.Start) {
		r.Start = ts
	}
	if ts.After(r.End) {
		r.End = ts
	}
}

// Contains проверяет, что ts попадает в [Start, End] включительно.
func (r TimeRange) Contains(ts time.Time) bool {
	return !ts.Before(r.Start) && !ts.After(r.End)
}

// ContentRecord — метаданные уникального тела файла. Ключ — SHA-256.
// Сериализуется в сопутствующий *.attr.json (без RefCount: число ссылок
// восстанавливается из каталога при старте).
type ContentRecord struct {
	// Hash — hex SHA-256 всего содержимого, первичный ключ
	Hash string `json:"hash"`

	// Path — абсолютный путь тела на диске, выводится только из Hash.
	// Не сохраняется в attr.json.
	Path string `json:"-"`

	// Size — размер в байтах
	Size int64 `json:"size"`

	// Lines — количество строк, подсчитанное при загрузке
	Lines int64 `json:"lines"`

	// TimeRange — самая ранняя и самая поздняя метка времени в файле.
	// nil, если ни одна строка не содержит метки.
	TimeRange *TimeRange `json:"time_range,omitempty"`

	// CreatedAt — момент первой фиксации тела на диске (UTC)
	CreatedAt time.Time `json:"created_at"`

	// RefCount — число записей каталога, ссылающихся на Hash
	RefCount int `json:"-"`
}

// HasTimestamps сообщает, встречалась ли в содержимом хотя бы одна метка времени.
func (c *ContentRecord) HasTimestamps() bool {
	return c.TimeRange != nil
}
