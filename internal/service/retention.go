// retention.go — фоновая очистка хранилища.
//
// Две задачи:
//  1. Полная очистка раз в сутки в LV_FULL_SWEEP_HOUR: удаляет записи
//     каталога старше LV_RETENTION, затем тела без ссылок.
//  2. Очистка сирот каждые LV_ORPHAN_SWEEP_INTERVAL: тела без ссылок
//     и брошенные временные файлы старше LV_TEMP_MAX_AGE.
//
// Использует те же блокировки, что и интерактивное удаление.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/log-viewer/internal/storage/catalog"
	"github.com/bigkaa/goartstore/log-viewer/internal/storage/contentstore"
)

// Prometheus метрики очистки
var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lv_sweep_runs_total",
		Help: "Общее количество запусков очистки",
	}, []string{"kind"})

	sweepEntriesExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lv_sweep_entries_expired_total",
		Help: "Общее количество записей каталога, удалённых по возрасту",
	})

	sweepBlobsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lv_sweep_blobs_deleted_total",
		Help: "Общее количество тел, удалённых очисткой сирот",
	})

	sweepTempDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lv_sweep_temp_deleted_total",
		Help: "Общее количество брошенных временных файлов, удалённых очисткой",
	})

	sweepDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lv_sweep_duration_seconds",
		Help:    "Длительность очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"kind"})
)

// RetentionConfig — параметры очистки.
type RetentionConfig struct {
	// MaxAge — возраст записи каталога, после которого она удаляется
	MaxAge time.Duration
	// FullSweepHour — час локального времени полной очистки (0–23)
	FullSweepHour int
	// OrphanInterval — период очистки сирот
	OrphanInterval time.Duration
	// TempMaxAge — возраст брошенного временного файла
	TempMaxAge time.Duration
}

// RetentionResult — результат одного запуска очистки.
type RetentionResult struct {
	// ExpiredEntries — удалено записей каталога по возрасту
	ExpiredEntries int
	// DeletedBlobs — удалено тел без ссылок
	DeletedBlobs int
	// DeletedTemp — удалено брошенных временных файлов
	DeletedTemp int
	// Errors — количество ошибок
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// RetentionService — сервис фоновой очистки.
type RetentionService struct {
	catalog *catalog.Catalog
	store   *contentstore.Store
	cfg     RetentionConfig
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex // защита от параллельного запуска
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRetentionService создаёт сервис очистки.
func NewRetentionService(
	cat *catalog.Catalog,
	store *contentstore.Store,
	cfg RetentionConfig,
	logger *slog.Logger,
) *RetentionService {
	return &RetentionService{
		catalog: cat,
		store:   store,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "retention")),
		now:     time.Now,
	}
}

// Start запускает фоновую горутину очистки.
func (rs *RetentionService) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})

	go rs.run(runCtx)

	rs.logger.Info("Очистка запущена",
		slog.Int("full_sweep_hour", rs.cfg.FullSweepHour),
		slog.String("retention", rs.cfg.MaxAge.String()),
		slog.String("orphan_interval", rs.cfg.OrphanInterval.String()),
	)
}

// Stop останавливает фоновую очистку и ждёт завершения текущего запуска.
func (rs *RetentionService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
		<-rs.done
	}
	rs.logger.Info("Очистка остановлена")
}

// run — основной цикл фоновой горутины.
func (rs *RetentionService) run(ctx context.Context) {
	defer close(rs.done)

	// Первый запуск очистки сирот — сразу после старта
	rs.RunOrphans()

	ticker := time.NewTicker(rs.cfg.OrphanInterval)
	defer ticker.Stop()

	timer := time.NewTimer(nextFullSweep(rs.now(), rs.cfg.FullSweepHour).Sub(rs.now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOrphans()
		case <-timer.C:
			rs.RunFull()
			timer.Reset(nextFullSweep(rs.now(), rs.cfg.FullSweepHour).Sub(rs.now()))
		}
	}
}

// RunFull выполняет полную очистку: записи старше MaxAge, затем сироты.
func (rs *RetentionService) RunFull() *RetentionResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	start := time.Now()
	result := &RetentionResult{}

	result.ExpiredEntries = rs.catalog.SweepExpired(rs.cfg.MaxAge)
	rs.sweepOrphansLocked(result)
	result.Duration = time.Since(start)

	sweepRunsTotal.WithLabelValues("full").Inc()
	sweepEntriesExpiredTotal.Add(float64(result.ExpiredEntries))
	sweepDurationSeconds.WithLabelValues("full").Observe(result.Duration.Seconds())

	rs.logger.Info("Полная очистка завершена",
		slog.Int("expired_entries", result.ExpiredEntries),
		slog.Int("deleted_blobs", result.DeletedBlobs),
		slog.Int("deleted_temp", result.DeletedTemp),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)
	return result
}

// RunOrphans удаляет тела без ссылок и брошенные временные файлы.
func (rs *RetentionService) RunOrphans() *RetentionResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	start := time.Now()
	result := &RetentionResult{}
	rs.sweepOrphansLocked(result)
	result.Duration = time.Since(start)

	sweepRunsTotal.WithLabelValues("orphans").Inc()
	sweepDurationSeconds.WithLabelValues("orphans").Observe(result.Duration.Seconds())

	rs.logger.Debug("Очистка сирот завершена",
		slog.Int("deleted_blobs", result.DeletedBlobs),
		slog.Int("deleted_temp", result.DeletedTemp),
		slog.Duration("duration", result.Duration),
	)
	return result
}

func (rs *RetentionService) sweepOrphansLocked(result *RetentionResult) {
	res, err := rs.store.SweepOrphans(rs.cfg.TempMaxAge)
	if err != nil {
		result.Errors++
		rs.logger.Error("Ошибка очистки сирот", slog.String("error", err.Error()))
	}
	result.DeletedBlobs = res.Blobs
	result.DeletedTemp = res.TempFiles
	sweepBlobsDeletedTotal.Add(float64(res.Blobs))
	sweepTempDeletedTotal.Add(float64(res.TempFiles))
}

// nextFullSweep возвращает ближайший момент hour:00 локального времени
// строго после now.
func nextFullSweep(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
