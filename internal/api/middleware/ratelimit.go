// ratelimit.go — ограничение частоты загрузок на посетителя.
// Посетитель определяется по id сессии, без сессии — по IP.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	apierrors "github.com/bigkaa/goartstore/log-viewer/internal/api/errors"
)

// rateLimitedTotal — количество отклонённых запросов.
var rateLimitedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "lv_rate_limited_total",
		Help: "Количество запросов, отклонённых ограничителем частоты",
	},
)

// visitorIdleTTL — через сколько простоя лимитер посетителя забывается.
const visitorIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter — лимитеры token bucket по посетителям.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewRateLimiter создаёт ограничитель: perMinute запросов в минуту
// с допустимым всплеском burst. perMinute <= 0 — без ограничения.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

// Start запускает периодическую очистку неактивных посетителей.
// Останавливается при отмене ctx.
func (rl *RateLimiter) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(visitorIdleTTL)
			}
		}
	}()
}

// Middleware возвращает HTTP middleware, отвечающий 429 при превышении лимита.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := rl.getVisitor(visitorKey(r))
			if !limiter.Allow() {
				rateLimitedTotal.Inc()
				retry := 1
				if rl.limit > 0 && rl.limit != rate.Inf {
					retry = int(1/float64(rl.limit)) + 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				apierrors.RateLimited(w, "Слишком много загрузок, повторите позже")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = rl.now()
	return v.limiter
}

func (rl *RateLimiter) cleanup(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	now := rl.now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > idle {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// visitorKey — id сессии, если он уже в контексте, иначе IP клиента.
func visitorKey(r *http.Request) string {
	if id := SessionFromContext(r.Context()); id != "" {
		return "s:" + id
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}
