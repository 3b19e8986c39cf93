// session.go — анонимная сессия браузера в cookie.
// Токен сессии — JWT HS256 с claims sub (id сессии) и exp.
// Первый запрос без валидной cookie получает новую сессию.
// id сессии доступен обработчикам через SessionFromContext.
package middleware

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeySession — ключ id сессии в контексте запроса.
const ContextKeySession contextKey = "session_id"

// DefaultCookieName — имя cookie сессии.
const DefaultCookieName = "lv_session"

// sessionIssuer — значение claim iss.
const sessionIssuer = "log-viewer"

// SessionConfig — параметры менеджера сессий.
type SessionConfig struct {
	// Secret — ключ подписи HMAC. Пустой — случайный ключ на время жизни процесса
	Secret string
	// TTL — время жизни сессии
	TTL time.Duration
	// Secure — выставлять флаг Secure (только HTTPS)
	Secure bool
	// CookieName — имя cookie, по умолчанию DefaultCookieName
	CookieName string
}

// Sessions — выдаёт и проверяет токены сессий.
type Sessions struct {
	key    []byte
	ttl    time.Duration
	secure bool
	cookie string
	logger *slog.Logger
	now    func() time.Time
}

// NewSessions создаёт менеджер сессий.
func NewSessions(cfg SessionConfig, logger *slog.Logger) *Sessions {
	var key []byte
	if cfg.Secret != "" {
		key = sha256Key(cfg.Secret)
	} else {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("crypto/rand недоступен: " + err.Error())
		}
		logger.Warn("LV_SESSION_SECRET не задан, сессии не переживут перезапуск")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}

	return &Sessions{
		key:    key,
		ttl:    ttl,
		secure: cfg.Secure,
		cookie: name,
		logger: logger.With(slog.String("component", "sessions")),
		now:    time.Now,
	}
}

// Middleware возвращает HTTP middleware, привязывающий запрос к сессии.
// При отсутствии или невалидности cookie выдаётся новая сессия.
func (s *Sessions) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := s.fromRequest(r)
			if !ok {
				token, newID, err := s.Issue()
				if err != nil {
					s.logger.Error("Ошибка выдачи сессии", slog.String("error", err.Error()))
					http.Error(w, "session error", http.StatusInternalServerError)
					return
				}
				id = newID
				http.SetCookie(w, s.newCookie(token))
				s.logger.Debug("Выдана новая сессия", slog.String("session_id", id))
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Issue создаёт новую сессию и возвращает подписанный токен и её id.
func (s *Sessions) Issue() (token, id string, err error) {
	id = uuid.New().String()
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   id,
		Issuer:    sessionIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", "", err
	}
	return token, id, nil
}

// Verify проверяет токен и возвращает id сессии.
func (s *Sessions) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *Sessions) fromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.cookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	id, err := s.Verify(c.Value)
	if err != nil {
		s.logger.Debug("Невалидная cookie сессии", slog.String("error", err.Error()))
		return "", false
	}
	return id, true
}

func (s *Sessions) newCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// sha256Key приводит секрет произвольной длины к 32-байтовому ключу.
func sha256Key(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// SessionFromContext извлекает id сессии из контекста запроса.
func SessionFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeySession).(string); ok {
		return v
	}
	return ""
}

// WithSession помещает id сессии в контекст. Используется в тестах обработчиков.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeySession, id)
}
