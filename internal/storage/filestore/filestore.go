// Пакет filestore — операции с физическими файлами на диске.
// Содержимое адресуется SHA-256: тело с хэшем h хранится по пути
// blobs/{h[0:2]}/{h}.log. Запись идёт во временный файл в tmp/
// с подсчётом хэша на лету, затем атомарно переименовывается.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
)

const (
	// BlobExt — расширение файлов содержимого.
	BlobExt = ".log"

	blobDirName = "blobs"
	tmpDirName  = "tmp"
	tmpPrefix   = "upload-"
	tmpSuffix   = ".tmp"

	// maxNameLen — предел длины отображаемого имени файла.
	maxNameLen = 120
)

// FileStore — управление физическими файлами на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (LV_DATA_DIR)
	dataDir string
	blobDir string
	tmpDir  string
}

// TempFile — записанный, но ещё не зафиксированный файл.
type TempFile struct {
	// Path — абсолютный путь временного файла
	Path string
	// Size — размер записанных данных в байтах
	Size int64
	// Hash — SHA-256 содержимого (hex)
	Hash string
}

// New создаёт FileStore. Создаёт директории blobs/ и tmp/,
// если они не существуют.
func New(dataDir string) (*FileStore, error) {
	s := &FileStore{
		dataDir: dataDir,
		blobDir: filepath.Join(dataDir, blobDirName),
		tmpDir:  filepath.Join(dataDir, tmpDirName),
	}
	for _, dir := range []string{s.dataDir, s.blobDir, s.tmpDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
		}
	}
	return s, nil
}

// SaveTemp записывает данные из r во временный файл, одновременно
// считая SHA-256 и передавая те же байты в observers.
//
// Паттерн: temp файл → запись + SHA-256 → fsync. При ошибке или
// отмене ctx временный файл удаляется.
func (s *FileStore) SaveTemp(ctx context.Context, r io.Reader, observers ...io.Writer) (*TempFile, error) {
	tmpPath := filepath.Join(s.tmpDir, tmpPrefix+uuid.New().String()+tmpSuffix)

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка создания временного файла: %w", model.ErrIO, err)
	}

	hasher := sha256.New()
	writers := append([]io.Writer{f, hasher}, observers...)

	size, err := io.Copy(io.MultiWriter(writers...), &ctxReader{ctx: ctx, r: r})
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: загрузка прервана: %v", model.ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: ошибка записи данных: %w", model.ErrIO, err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: ошибка fsync: %w", model.ErrIO, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: ошибка закрытия файла: %w", model.ErrIO, err)
	}

	return &TempFile{
		Path: tmpPath,
		Size: size,
		Hash: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Commit атомарно переименовывает временный файл в путь содержимого
// и возвращает этот путь.
func (s *FileStore) Commit(tmp *TempFile) (string, error) {
	dst := s.BlobPath(tmp.Hash)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", fmt.Errorf("%w: не удалось создать директорию %s: %w", model.ErrIO, filepath.Dir(dst), err)
	}
	if err := os.Rename(tmp.Path, dst); err != nil {
		os.Remove(tmp.Path)
		return "", fmt.Errorf("%w: ошибка атомарного переименования: %w", model.ErrIO, err)
	}
	return dst, nil
}

// Discard удаляет временный файл. Отсутствие файла не ошибка.
func (s *FileStore) Discard(tmp *TempFile) {
	if tmp != nil {
		_ = os.Remove(tmp.Path)
	}
}

// BlobPath возвращает путь содержимого по хэшу.
func (s *FileStore) BlobPath(hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.blobDir, prefix, hash+BlobExt)
}

// Open открывает содержимое для чтения. Вызывающий код обязан закрыть файл.
func (s *FileStore) Open(hash string) (*os.File, error) {
	f, err := os.Open(s.BlobPath(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: содержимое %s", model.ErrNotFound, hash)
		}
		return nil, fmt.Errorf("%w: ошибка открытия %s: %w", model.ErrIO, hash, err)
	}
	return f, nil
}

// Delete удаляет содержимое с диска. Возвращает nil, если файла уже нет.
func (s *FileStore) Delete(hash string) error {
	err := os.Remove(s.BlobPath(hash))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: ошибка удаления %s: %w", model.ErrIO, hash, err)
	}
	return nil
}

// Exists проверяет наличие содержимого на диске.
func (s *FileStore) Exists(hash string) bool {
	_, err := os.Stat(s.BlobPath(hash))
	return err == nil
}

// Checksum заново вычисляет SHA-256 и размер сохранённого содержимого,
// передавая байты в observers. Используется при восстановлении.
func (s *FileStore) Checksum(hash string, observers ...io.Writer) (string, int64, error) {
	f, err := s.Open(hash)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(append([]io.Writer{hasher}, observers...)...), f)
	if err != nil {
		return "", 0, fmt.Errorf("%w: ошибка вычисления checksum %s: %w", model.ErrIO, hash, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// ListBlobs возвращает хэши всех файлов содержимого в blobs/.
func (s *FileStore) ListBlobs() ([]string, error) {
	var hashes []string
	err := filepath.WalkDir(s.blobDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), BlobExt) {
			return nil
		}
		hashes = append(hashes, strings.TrimSuffix(d.Name(), BlobExt))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка сканирования %s: %w", model.ErrIO, s.blobDir, err)
	}
	return hashes, nil
}

// SweepTemp удаляет временные файлы старше olderThan
// (брошенные прерванными загрузками). Возвращает число удалённых.
func (s *FileStore) SweepTemp(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.tmpDir)
	if err != nil {
		return 0, fmt.Errorf("%w: ошибка чтения %s: %w", model.ErrIO, s.tmpDir, err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.tmpDir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// DataDir возвращает путь к директории данных.
func (s *FileStore) DataDir() string {
	return s.dataDir
}

// BlobDir возвращает путь к директории содержимого.
func (s *FileStore) BlobDir() string {
	return s.blobDir
}

// SanitizeName приводит пользовательское имя файла к безопасному виду:
// отбрасывает путь, оставляет буквы, цифры, «-», «_» и «.»,
// пробелы заменяет на «_». Пустой результат → "file".
func SanitizeName(original string) string {
	original = strings.ReplaceAll(original, "\\", "/")
	base := original[strings.LastIndex(original, "/")+1:]

	var b strings.Builder
	for _, r := range base {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' ||
			(r >= 0x0400 && r <= 0x04FF): // Кириллица
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune('_')
		}
	}

	name := strings.Trim(b.String(), "._")
	if len(name) > maxNameLen {
		ext := filepath.Ext(name)
		if len(ext) >= maxNameLen {
			ext = ""
		}
		name = strings.ToValidUTF8(name[:maxNameLen-len(ext)], "") + ext
	}
	if name == "" {
		return "file"
	}
	return name
}

// ctxReader прерывает чтение при отмене контекста.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
