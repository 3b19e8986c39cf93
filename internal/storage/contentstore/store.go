// Пакет contentstore — content-addressed хранилище тел лог-файлов
// с подсчётом ссылок и арендами на чтение.
//
// Каждое уникальное тело хранится на диске ровно один раз. Запись каталога
// держит одну ссылку; открытый Handle держит аренду. Тело удаляется,
// когда число ссылок падает до нуля и не осталось открытых аренд.
// Единственный компонент, который создаёт и удаляет байты на диске.
package contentstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
	"github.com/bigkaa/goartstore/log-viewer/internal/logfilter"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/attr"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/filestore"
)

// Prometheus метрики хранилища содержимого
var (
	contentRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lv_content_records",
		Help: "Количество уникальных тел в хранилище",
	})
	contentBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lv_content_bytes",
		Help: "Объём уникальных тел в байтах",
	})
	contentLeases = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lv_content_read_leases",
		Help: "Количество открытых аренд на чтение",
	})
	contentPutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lv_content_puts_total",
		Help: "Количество операций Put по результату",
	}, []string{"result"})
)

// Options — параметры хранилища.
type Options struct {
	// MaxCapacity — предел суммарного объёма тел в байтах (0 — без предела)
	MaxCapacity int64
	// MaxLineBytes — предел длины строки при подсчёте диапазона меток
	MaxLineBytes int
}

// Stats — снимок состояния хранилища.
type Stats struct {
	Records int   `json:"records"`
	Bytes   int64 `json:"bytes"`
	Leases  int   `json:"leases"`
	Pending int   `json:"pending"`
}

// OrphanResult — итог SweepOrphans.
type OrphanResult struct {
	// Blobs — удалено тел без ссылок
	Blobs int
	// TempFiles — удалено брошенных временных файлов
	TempFiles int
}

// RecoverResult — итог Recover.
type RecoverResult struct {
	Loaded   int
	Rehashed int
	Dropped  int
}

// record — запись в памяти.
type record struct {
	rec    model.ContentRecord
	leases int
	// pending — ссылок нет, но открыты аренды; удаляется при закрытии последней
	pending bool
}

// Store — хранилище содержимого. Все изменения счётчиков, переименование
// при фиксации и удаление с диска выполняются под одним мьютексом;
// хэширование и запись идут вне блокировки.
type Store struct {
	mu      sync.Mutex
	records map[string]*record
	bytes   int64
	leases  int

	files  *filestore.FileStore
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New создаёт хранилище поверх files. Для загрузки существующих тел
// вызовите Recover.
func New(files *filestore.FileStore, opts Options, logger *slog.Logger) *Store {
	return &Store{
		records: make(map[string]*record),
		files:   files,
		opts:    opts,
		logger:  logger.With(slog.String("component", "contentstore")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Put записывает поток r, считая SHA-256, число строк и диапазон меток
// за один проход. Если тело с таким хэшем уже есть, число ссылок
// увеличивается, а записанная копия отбрасывается (created = false).
// Иначе тело фиксируется с RefCount = 1 (created = true).
func (s *Store) Put(ctx context.Context, r io.Reader) (model.ContentRecord, bool, error) {
	tracker := logfilter.NewRangeTracker(s.opts.MaxLineBytes)
	tmp, err := s.files.SaveTemp(ctx, r, tracker)
	if err != nil {
		contentPutsTotal.WithLabelValues("error").Inc()
		return model.ContentRecord{}, false, err
	}
	tracker.Finish()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.records[tmp.Hash]; ok {
		s.files.Discard(tmp)
		if e.pending {
			// Тело ещё на диске из-за аренд: возвращаем его в оборот
			e.pending = false
		}
		e.rec.RefCount++
		contentPutsTotal.WithLabelValues("dedup").Inc()
		s.logger.Debug("Тело уже существует, ссылка добавлена",
			slog.String("hash", tmp.Hash),
			slog.Int("ref_count", e.rec.RefCount),
		)
		return e.rec, false, nil
	}

	if s.opts.MaxCapacity > 0 && s.bytes+tmp.Size > s.opts.MaxCapacity {
		s.files.Discard(tmp)
		contentPutsTotal.WithLabelValues("full").Inc()
		return model.ContentRecord{}, false, fmt.Errorf("%w: занято %d из %d байт, требуется %d",
			model.ErrStorageFull, s.bytes, s.opts.MaxCapacity, tmp.Size)
	}

	path, err := s.files.Commit(tmp)
	if err != nil {
		contentPutsTotal.WithLabelValues("error").Inc()
		return model.ContentRecord{}, false, err
	}

	rec := model.ContentRecord{
		Hash:      tmp.Hash,
		Path:      path,
		Size:      tmp.Size,
		Lines:     tracker.Lines(),
		TimeRange: tracker.TimeRange(),
		CreatedAt: s.now(),
		RefCount:  1,
	}
	if err := attr.Write(attr.FilePath(path), &rec); err != nil {
		_ = s.files.Delete(rec.Hash)
		contentPutsTotal.WithLabelValues("error").Inc()
		return model.ContentRecord{}, false, fmt.Errorf("%w: ошибка записи attr.json: %w", model.ErrIO, err)
	}

	s.records[rec.Hash] = &record{rec: rec}
	s.bytes += rec.Size
	s.updateGaugesLocked()
	contentPutsTotal.WithLabelValues("created").Inc()

	s.logger.Info("Тело зафиксировано",
		slog.String("hash", rec.Hash),
		slog.Int64("size", rec.Size),
		slog.Int64("lines", rec.Lines),
	)
	return rec, true, nil
}

// Acquire добавляет ссылку на существующее тело.
func (s *Store) Acquire(hash string) (model.ContentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[hash]
	if !ok || e.pending {
		return model.ContentRecord{}, fmt.Errorf("%w: содержимое %s", model.ErrNotFound, hash)
	}
	e.rec.RefCount++
	return e.rec, nil
}

// Release снимает одну ссылку. При нуле ссылок и без аренд тело
// удаляется немедленно; при открытых арендах помечается на удаление
// и удаляется при закрытии последней аренды.
//
// Снятие ссылки сверх выданных — ошибка программы (panic).
func (s *Store) Release(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[hash]
	if !ok {
		return fmt.Errorf("%w: содержимое %s", model.ErrNotFound, hash)
	}
	if e.rec.RefCount <= 0 {
		panic(fmt.Sprintf("contentstore: снятие ссылки с %s при RefCount=%d", hash, e.rec.RefCount))
	}

	e.rec.RefCount--
	if e.rec.RefCount > 0 {
		return nil
	}
	if e.leases > 0 {
		e.pending = true
		s.logger.Debug("Тело помечено на удаление, есть открытые аренды",
			slog.String("hash", hash),
			slog.Int("leases", e.leases),
		)
		return nil
	}
	s.removeLocked(e)
	return nil
}

// Open открывает тело на чтение и берёт аренду. Тело, помеченное
// на удаление или без ссылок, не открывается.
func (s *Store) Open(hash string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[hash]
	if !ok || e.pending || e.rec.RefCount == 0 {
		return nil, fmt.Errorf("%w: содержимое %s", model.ErrNotFound, hash)
	}

	f, err := s.files.Open(hash)
	if err != nil {
		return nil, err
	}
	e.leases++
	s.leases++
	s.updateGaugesLocked()

	return &Handle{store: s, file: f, rec: e.rec}, nil
}

// Get возвращает копию записи. Помеченные на удаление не видны.
func (s *Store) Get(hash string) (model.ContentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[hash]
	if !ok || e.pending {
		return model.ContentRecord{}, fmt.Errorf("%w: содержимое %s", model.ErrNotFound, hash)
	}
	return e.rec, nil
}

// Stats возвращает снимок состояния.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Records: len(s.records), Bytes: s.bytes, Leases: s.leases}
	for _, e := range s.records {
		if e.pending {
			st.Pending++
		}
	}
	return st
}

// SweepOrphans удаляет тела без ссылок и аренд, а также временные
// файлы старше tempMaxAge.
func (s *Store) SweepOrphans(tempMaxAge time.Duration) (OrphanResult, error) {
	var res OrphanResult

	s.mu.Lock()
	for _, e := range s.records {
		if e.rec.RefCount == 0 && e.leases == 0 {
			if s.removeLocked(e) {
				res.Blobs++
			}
		}
	}
	s.mu.Unlock()

	n, err := s.files.SweepTemp(tempMaxAge)
	res.TempFiles = n
	if err != nil {
		return res, err
	}
	return res, nil
}

// Recover загружает тела с диска при старте. Каждое получает RefCount = 0;
// ссылки восстанавливаются воспроизведением каталога (Acquire).
// Тела без attr.json пересчитываются, attr.json без тела удаляются.
func (s *Store) Recover() (RecoverResult, error) {
	var res RecoverResult

	scan, err := attr.ScanDir(s.files.BlobDir())
	if err != nil {
		return res, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range scan.Invalid {
		s.logger.Warn("Невалидный attr.json удалён", slog.String("path", path))
		_ = attr.Delete(path)
	}

	for _, rec := range scan.Records {
		if !s.files.Exists(rec.Hash) || rec.Path != s.files.BlobPath(rec.Hash) {
			_ = attr.Delete(attr.FilePath(rec.Path))
			res.Dropped++
			continue
		}
		rec.RefCount = 0
		s.records[rec.Hash] = &record{rec: *rec}
		s.bytes += rec.Size
		res.Loaded++
	}

	hashes, err := s.files.ListBlobs()
	if err != nil {
		return res, err
	}
	for _, hash := range hashes {
		if _, ok := s.records[hash]; ok {
			continue
		}
		if s.rehashLocked(hash) {
			res.Rehashed++
		} else {
			res.Dropped++
		}
	}

	s.updateGaugesLocked()
	s.logger.Info("Хранилище содержимого восстановлено",
		slog.Int("loaded", res.Loaded),
		slog.Int("rehashed", res.Rehashed),
		slog.Int("dropped", res.Dropped),
		slog.Int64("bytes", s.bytes),
	)
	return res, nil
}

// rehashLocked пересчитывает тело без attr.json. Тело, чьё содержимое
// не совпадает с именем, удаляется.
func (s *Store) rehashLocked(hash string) bool {
	tracker := logfilter.NewRangeTracker(s.opts.MaxLineBytes)
	sum, size, err := s.files.Checksum(hash, tracker)
	if err != nil || sum != hash {
		s.logger.Warn("Тело не прошло проверку и удалено",
			slog.String("hash", hash),
			slog.String("actual", sum),
		)
		_ = s.files.Delete(hash)
		return false
	}
	tracker.Finish()

	rec := model.ContentRecord{
		Hash:      hash,
		Path:      s.files.BlobPath(hash),
		Size:      size,
		Lines:     tracker.Lines(),
		TimeRange: tracker.TimeRange(),
		CreatedAt: s.now(),
	}
	if err := attr.Write(attr.FilePath(rec.Path), &rec); err != nil {
		s.logger.Warn("Не удалось записать attr.json", slog.String("hash", hash), slog.String("error", err.Error()))
	}
	s.records[hash] = &record{rec: rec}
	s.bytes += size
	return true
}

// dropLease снимает аренду, открытую через Open.
func (s *Store) dropLease(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leases--
	e, ok := s.records[hash]
	if !ok {
		s.updateGaugesLocked()
		return
	}
	e.leases--
	if e.leases == 0 && e.pending {
		s.removeLocked(e)
	}
	s.updateGaugesLocked()
}

// removeLocked удаляет тело и attr.json с диска и запись из памяти.
// При ошибке удаления запись остаётся с RefCount = 0 и будет
// повторно удалена SweepOrphans.
func (s *Store) removeLocked(e *record) bool {
	hash := e.rec.Hash
	if err := s.files.Delete(hash); err != nil {
		e.pending = false
		s.logger.Error("Ошибка удаления тела",
			slog.String("hash", hash),
			slog.String("error", err.Error()),
		)
		return false
	}
	if err := attr.Delete(attr.FilePath(s.files.BlobPath(hash))); err != nil {
		s.logger.Warn("Ошибка удаления attr.json",
			slog.String("hash", hash),
			slog.String("error", err.Error()),
		)
	}

	delete(s.records, hash)
	s.bytes -= e.rec.Size
	s.updateGaugesLocked()

	s.logger.Info("Тело удалено",
		slog.String("hash", hash),
		slog.Int64("size", e.rec.Size),
	)
	return true
}

func (s *Store) updateGaugesLocked() {
	contentRecords.Set(float64(len(s.records)))
	contentBytes.Set(float64(s.bytes))
	contentLeases.Set(float64(s.leases))
}
