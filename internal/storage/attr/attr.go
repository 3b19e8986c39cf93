// Пакет attr — чтение и запись файлов метаданных содержимого (attr.json).
// Каждое тело в blobs/ имеет сопутствующий *.attr.json с хэшем,
// размером, числом строк и диапазоном меток времени, вычисленными
// при загрузке. Запись атомарна: temp → fsync → rename.
package attr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
)

// AttrSuffix — суффикс файла метаданных.
const AttrSuffix = ".attr.json"

// maxAttrFileSize — максимальный допустимый размер attr.json (4 КБ).
const maxAttrFileSize = 4096

// FilePath возвращает путь к attr.json для файла содержимого.
// Пример: "/data/blobs/ab/ab12….log" → "/data/blobs/ab/ab12….log.attr.json"
func FilePath(blobPath string) string {
	return blobPath + AttrSuffix
}

// IsAttrFile проверяет, является ли путь файлом метаданных.
func IsAttrFile(path string) bool {
	return strings.HasSuffix(path, AttrSuffix)
}

// Write атомарно записывает запись содержимого в attr.json.
func Write(path string, rec *model.ContentRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	if len(data) > maxAttrFileSize {
		return fmt.Errorf("размер attr.json (%d байт) превышает максимум (%d байт)", len(data), maxAttrFileSize)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: не удалось создать директорию %s: %w", model.ErrIO, dir, err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: ошибка создания временного файла: %w", model.ErrIO, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: ошибка записи: %w", model.ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: ошибка fsync: %w", model.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: ошибка закрытия файла: %w", model.ErrIO, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: ошибка атомарного переименования: %w", model.ErrIO, err)
	}
	return nil
}

// Read читает запись содержимого из attr.json.
func Read(path string) (*model.ContentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: attr.json %s", model.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: ошибка чтения attr.json %s: %w", model.ErrIO, path, err)
	}

	var rec model.ContentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("ошибка десериализации attr.json %s: %w", path, err)
	}
	if rec.Hash == "" {
		return nil, fmt.Errorf("attr.json %s не содержит hash", path)
	}
	return &rec, nil
}

// Delete удаляет attr.json. Возвращает nil, если файла уже нет.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: ошибка удаления attr.json %s: %w", model.ErrIO, path, err)
	}
	return nil
}

// ScanResult — итог сканирования директории содержимого.
type ScanResult struct {
	// Records — успешно прочитанные записи; Path заполнен путём тела
	Records []*model.ContentRecord
	// Invalid — пути attr.json, которые не удалось прочитать
	Invalid []string
}

// ScanDir рекурсивно обходит dir и читает все attr.json.
// Невалидные файлы не прерывают обход, а попадают в Invalid.
func ScanDir(dir string) (*ScanResult, error) {
	res := &ScanResult{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsAttrFile(path) {
			return nil
		}
		rec, err := Read(path)
		if err != nil {
			res.Invalid = append(res.Invalid, path)
			return nil
		}
		rec.Path = strings.TrimSuffix(path, AttrSuffix)
		res.Records = append(res.Records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка сканирования директории %s: %w", model.ErrIO, dir, err)
	}
	return res, nil
}
