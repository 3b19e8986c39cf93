// metrics.go — Prometheus HTTP метрики Log Viewer.
// Регистрирует метрики: lv_http_requests_total, lv_http_request_duration_seconds.
// Метрики хранилища, фильтрации и очистки регистрируются
// в соответствующих пакетах.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lv_http_requests_total",
			Help: "Общее количество HTTP-запросов к Log Viewer",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lv_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Log Viewer в секундах",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// UUID в пути заменяется на {id}, иначе кардинальность не ограничена
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// normalizePath приводит путь к шаблону маршрута.
// /api/v1/files/a1b2c3d4-e5f6-7890-abcd-ef1234567890/time-range → /api/v1/files/{id}/time-range
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/info", "/api/v1/files", "/api/v1/presets":
		return path
	}

	for _, prefix := range []string{"/api/v1/files/", "/api/v1/logs/"} {
		if !strings.HasPrefix(path, prefix) || !isUUIDSegment(path, prefix) {
			continue
		}
		suffix := path[len(prefix)+36:]
		switch suffix {
		case "", "/time-range":
			return prefix + "{id}" + suffix
		}
	}
	return "other"
}

// isUUIDSegment проверяет, начинается ли сегмент пути после prefix с UUID.
func isUUIDSegment(path, prefix string) bool {
	if len(path) < len(prefix)+36 {
		return false
	}
	segment := path[len(prefix) : len(prefix)+36]
	for i, c := range segment {
		if i == 8 || i == 13 || i == 18 || i == 23 {
			if c != '-' {
				return false
			}
		} else {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
				return false
			}
		}
	}
	return true
}
