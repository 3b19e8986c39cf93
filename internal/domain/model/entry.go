package model

import "time"

// CatalogEntry — загруженный файл с точки зрения одной сессии.
// Держит ровно одну учтённую ссылку на ContentRecord.
type CatalogEntry struct {
	// ID — уникальный идентификатор записи (UUID v4)
	ID string `json:"id"`

	// SessionID — непрозрачный идентификатор сессии-владельца
	SessionID string `json:"-"`

	// ContentHash — ссылка на ContentRecord
	ContentHash string `json:"hash"`

	// OriginalName — очищенное имя файла, указанное пользователем
	OriginalName string `json:"original_name"`

	// UploadedAt — дата и время загрузки (UTC)
	UploadedAt time.Time `json:"upload_time"`

	// Size, Lines, TimeRange — производные данные для отображения,
	// копируются из ContentRecord при создании записи.
	Size      int64      `json:"size"`
	Lines     int64      `json:"lines"`
	TimeRange *TimeRange `json:"time_range,omitempty"`
}

// IsExpired проверяет, старше ли запись maxAge относительно now.
func (e *CatalogEntry) IsExpired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.UploadedAt) > maxAge
}
