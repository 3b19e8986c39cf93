// Пакет config — загрузка и валидация конфигурации Log Viewer
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// CatalogDBDisabled — значение LV_CATALOG_DB, отключающее журнал каталога.
const CatalogDBDisabled = "none"

// Config содержит все параметры конфигурации Log Viewer.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Путь к директории данных (blobs/, tmp/, catalog.db)
	DataDir string
	// Путь к SQLite-журналу каталога (пусто — журнал отключён)
	CatalogDB string
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Предел суммарного объёма хранимых тел (0 — без предела)
	MaxCapacity int64
	// Предел строк в ответе фильтрации
	MaxResults int
	// Предел длины одной строки в байтах
	MaxLineBytes int

	// Время жизни загруженного файла
	Retention time.Duration
	// Час (локальное время) ежедневной полной очистки
	FullSweepHour int
	// Интервал очистки тел без ссылок и временных файлов
	OrphanSweepInterval time.Duration
	// Возраст, после которого временный файл считается брошенным
	TempMaxAge time.Duration

	// Ключ подписи cookie сессии (пусто — случайный)
	SessionSecret string
	// Время жизни сессии
	SessionTTL time.Duration
	// Выставлять флаг Secure у cookie
	CookieSecure bool

	// Загрузок в минуту на сессию (0 — без ограничения)
	UploadRate int
	// Допустимый всплеск загрузок
	UploadBurst int

	// Размер LRU-кэша результатов (0 — кэш отключён)
	ResultCacheSize int
	// Время жизни результата в кэше
	ResultCacheTTL time.Duration
	// Результаты длиннее стольких строк не кэшируются
	ResultCacheMaxLines int

	// Путь к JSON-файлу наборов фильтров
	PresetsFile string

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Файл логов с ротацией (пусто — stdout)
	LogFile string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Путь к TLS сертификату (опционально)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// LV_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("LV_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("LV_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("LV_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// LV_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("LV_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// LV_CATALOG_DB — журнал каталога (по умолчанию {data}/catalog.db, "none" — отключён)
	cfg.CatalogDB = getEnvDefault("LV_CATALOG_DB", filepath.Join(cfg.DataDir, "catalog.db"))
	if strings.EqualFold(cfg.CatalogDB, CatalogDBDisabled) {
		cfg.CatalogDB = ""
	}

	// LV_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 500 MiB)
	cfg.MaxFileSize, err = getEnvInt64("LV_MAX_FILE_SIZE", 500<<20)
	if err != nil {
		return nil, fmt.Errorf("LV_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("LV_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// LV_MAX_CAPACITY — предел объёма хранилища (по умолчанию 0, без предела)
	cfg.MaxCapacity, err = getEnvInt64("LV_MAX_CAPACITY", 0)
	if err != nil {
		return nil, fmt.Errorf("LV_MAX_CAPACITY: %w", err)
	}
	if cfg.MaxCapacity < 0 {
		return nil, fmt.Errorf("LV_MAX_CAPACITY: значение не может быть отрицательным")
	}
	if cfg.MaxCapacity > 0 && cfg.MaxCapacity < cfg.MaxFileSize {
		return nil, fmt.Errorf("LV_MAX_CAPACITY: значение %d должно быть >= LV_MAX_FILE_SIZE (%d)",
			cfg.MaxCapacity, cfg.MaxFileSize)
	}

	// LV_MAX_RESULTS — предел строк в ответе (по умолчанию 50000)
	cfg.MaxResults, err = getEnvInt("LV_MAX_RESULTS", 50000)
	if err != nil {
		return nil, fmt.Errorf("LV_MAX_RESULTS: %w", err)
	}
	if cfg.MaxResults <= 0 {
		return nil, fmt.Errorf("LV_MAX_RESULTS: значение должно быть положительным")
	}

	// LV_MAX_LINE_BYTES — предел длины строки (по умолчанию 1 MiB)
	cfg.MaxLineBytes, err = getEnvInt("LV_MAX_LINE_BYTES", 1<<20)
	if err != nil {
		return nil, fmt.Errorf("LV_MAX_LINE_BYTES: %w", err)
	}
	if cfg.MaxLineBytes < 1024 {
		return nil, fmt.Errorf("LV_MAX_LINE_BYTES: значение %d меньше минимального 1024", cfg.MaxLineBytes)
	}

	// LV_RETENTION — время жизни файла (по умолчанию 24h)
	cfg.Retention, err = getEnvDuration("LV_RETENTION", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LV_RETENTION: %w", err)
	}
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("LV_RETENTION: значение должно быть положительным")
	}

	// LV_FULL_SWEEP_HOUR — час полной очистки (по умолчанию 2)
	cfg.FullSweepHour, err = getEnvInt("LV_FULL_SWEEP_HOUR", 2)
	if err != nil {
		return nil, fmt.Errorf("LV_FULL_SWEEP_HOUR: %w", err)
	}
	if cfg.FullSweepHour < 0 || cfg.FullSweepHour > 23 {
		return nil, fmt.Errorf("LV_FULL_SWEEP_HOUR: значение %d вне диапазона 0-23", cfg.FullSweepHour)
	}

	// LV_ORPHAN_SWEEP_INTERVAL — интервал очистки сирот (по умолчанию 1h)
	cfg.OrphanSweepInterval, err = getEnvDuration("LV_ORPHAN_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LV_ORPHAN_SWEEP_INTERVAL: %w", err)
	}
	if cfg.OrphanSweepInterval <= 0 {
		return nil, fmt.Errorf("LV_ORPHAN_SWEEP_INTERVAL: значение должно быть положительным")
	}

	// LV_TEMP_MAX_AGE — возраст брошенного временного файла (по умолчанию 1h)
	cfg.TempMaxAge, err = getEnvDuration("LV_TEMP_MAX_AGE", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LV_TEMP_MAX_AGE: %w", err)
	}

	cfg.SessionSecret = os.Getenv("LV_SESSION_SECRET")

	// LV_SESSION_TTL — время жизни сессии (по умолчанию 24h)
	cfg.SessionTTL, err = getEnvDuration("LV_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LV_SESSION_TTL: %w", err)
	}

	cfg.CookieSecure, err = getEnvBool("LV_COOKIE_SECURE", false)
	if err != nil {
		return nil, fmt.Errorf("LV_COOKIE_SECURE: %w", err)
	}

	// LV_UPLOAD_RATE, LV_UPLOAD_BURST — ограничение частоты загрузок
	cfg.UploadRate, err = getEnvInt("LV_UPLOAD_RATE", 30)
	if err != nil {
		return nil, fmt.Errorf("LV_UPLOAD_RATE: %w", err)
	}
	cfg.UploadBurst, err = getEnvInt("LV_UPLOAD_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("LV_UPLOAD_BURST: %w", err)
	}

	// LV_RESULT_CACHE_* — кэш результатов фильтрации
	cfg.ResultCacheSize, err = getEnvInt("LV_RESULT_CACHE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("LV_RESULT_CACHE_SIZE: %w", err)
	}
	cfg.ResultCacheTTL, err = getEnvDuration("LV_RESULT_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("LV_RESULT_CACHE_TTL: %w", err)
	}
	cfg.ResultCacheMaxLines, err = getEnvInt("LV_RESULT_CACHE_MAX_LINES", 2000)
	if err != nil {
		return nil, fmt.Errorf("LV_RESULT_CACHE_MAX_LINES: %w", err)
	}

	cfg.PresetsFile = getEnvDefault("LV_PRESETS_FILE", "presets.json")

	// LV_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LV_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LV_LOG_LEVEL: %w", err)
	}

	// LV_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("LV_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LV_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.LogFile = os.Getenv("LV_LOG_FILE")

	// LV_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("LV_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LV_SHUTDOWN_TIMEOUT: %w", err)
	}

	// LV_TLS_CERT, LV_TLS_KEY — задаются парой
	cfg.TLSCert = os.Getenv("LV_TLS_CERT")
	cfg.TLSKey = os.Getenv("LV_TLS_KEY")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("LV_TLS_CERT и LV_TLS_KEY задаются вместе")
	}

	return cfg, nil
}

// TLSEnabled — сервер слушает HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает bool значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
