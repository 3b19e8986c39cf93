// filter.go — фильтрация лог-файла сессии потоковым проходом.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
	"github.com/bigkaa/goartstore/log-viewer/internal/logfilter"
)

var (
	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lv_scan_duration_seconds",
		Help:    "Длительность прохода фильтрации в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
	scanLinesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lv_scan_lines_total",
		Help: "Общее количество прочитанных при фильтрации строк",
	})
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lv_scans_total",
		Help: "Общее количество проходов фильтрации по результату",
	}, []string{"result"})
)

// FilterLogs применяет spec к файлу id сессии и возвращает не более
// maxResults совпавших строк (0 — предел по умолчанию).
//
// Одинаковые одновременные запросы по одному содержимому выполняются
// одним проходом; результаты небольшого размера кэшируются.
func (s *LogService) FilterLogs(ctx context.Context, sessionID, id string, spec logfilter.Spec, maxResults int) (*logfilter.Result, error) {
	if maxResults < 0 {
		return nil, fmt.Errorf("%w: max_results не может быть отрицательным", model.ErrInvalidFilterSpec)
	}
	if maxResults == 0 || maxResults > s.opts.MaxResults {
		maxResults = s.opts.MaxResults
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	entry, err := s.catalog.Get(sessionID, id)
	if err != nil {
		return nil, err
	}

	key := resultKey(entry.ContentHash, maxResults, spec)
	if res, ok := s.cache.Get(key); ok {
		return res, nil
	}

	ch := s.scans.DoChan(key, func() (any, error) {
		return s.scan(ctx, entry.ContentHash, spec, maxResults)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", model.ErrCancelled, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			// Общий проход отменён клиентом-инициатором: повторяем своим контекстом
			if errors.Is(r.Err, model.ErrCancelled) && ctx.Err() == nil {
				return s.scan(ctx, entry.ContentHash, spec, maxResults)
			}
			return nil, r.Err
		}
		return r.Val.(*logfilter.Result), nil
	}
}

// scan открывает содержимое под арендой и выполняет один проход.
func (s *LogService) scan(ctx context.Context, hash string, spec logfilter.Spec, maxResults int) (*logfilter.Result, error) {
	h, err := s.store.Open(hash)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	rec := h.Record()
	start := time.Now()
	res, err := logfilter.Scan(ctx, h, spec, logfilter.Options{
		MaxResults:   maxResults,
		MaxLineBytes: s.opts.MaxLineBytes,
		NoTimestamps: !rec.HasTimestamps(),
	})
	scanDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		switch {
		case errors.Is(err, model.ErrCancelled):
			scansTotal.WithLabelValues("cancelled").Inc()
		default:
			scansTotal.WithLabelValues("error").Inc()
			s.logger.Error("Ошибка фильтрации",
				slog.String("hash", hash),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	scansTotal.WithLabelValues("success").Inc()
	scanLinesTotal.Add(float64(res.Scanned))
	s.cache.Set(resultKey(hash, maxResults, spec), res)

	s.logger.Debug("Фильтрация завершена",
		slog.String("hash", hash),
		slog.Int64("scanned", res.Scanned),
		slog.Int64("total", res.Total),
		slog.Bool("truncated", res.Truncated),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// resultKey — ключ кэша и singleflight: содержимое, предел и фильтр.
func resultKey(hash string, maxResults int, spec logfilter.Spec) string {
	return fmt.Sprintf("%s|%d|%s", hash, maxResults, spec.Key())
}
