// cache.go — LRU-кэш результатов фильтрации с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/log-viewer/internal/logfilter"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lv_result_cache_hits_total",
		Help: "Общее количество попаданий в кэш результатов фильтрации.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lv_result_cache_misses_total",
		Help: "Общее количество промахов кэша результатов фильтрации.",
	})
)

// ResultCache — кэш результатов Scan. Ключ включает хэш содержимого,
// поэтому инвалидация не нужна: содержимое по хэшу неизменно.
// Кэшируются только результаты не длиннее maxLines строк.
type ResultCache struct {
	cache    *expirable.LRU[string, *logfilter.Result]
	maxLines int
}

// NewResultCache создаёт кэш. size <= 0 — кэш отключён (возвращает nil).
func NewResultCache(size int, ttl time.Duration, maxLines int) *ResultCache {
	if size <= 0 {
		return nil
	}
	return &ResultCache{
		cache:    expirable.NewLRU[string, *logfilter.Result](size, nil, ttl),
		maxLines: maxLines,
	}
}

// Get возвращает результат по ключу.
func (c *ResultCache) Get(key string) (*logfilter.Result, bool) {
	if c == nil {
		return nil, false
	}
	val, ok := c.cache.Get(key)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set сохраняет результат, если он укладывается в предел строк.
func (c *ResultCache) Set(key string, res *logfilter.Result) {
	if c == nil || len(res.Lines) > c.maxLines {
		return
	}
	c.cache.Add(key, res)
}

// Len возвращает число записей.
func (c *ResultCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
