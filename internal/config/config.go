// Пакет config — загрузка и валидация конфигурации Pinstore
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Pinstore.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 90s — должен перекрывать бюджет proxy-upload)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Pinning API ---

	// Базовый URL внешнего pinning API
	PinAPIURL string
	// Bearer-ключ pinning API. Может быть пустым: запуск не блокируется,
	// но proxy-upload будет отвечать 500 до появления ключа (fail closed).
	PinAPIKey string
	// Таймаут HTTP-запроса к pinning API (по умолчанию 50s)
	PinTimeout time.Duration
	// Общий бюджет обработки proxy-upload запроса (по умолчанию 60s)
	UploadTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// Таймаут установки подключения к БД (по умолчанию 10s)
	DBConnectTimeout time.Duration

	// --- Кэш списков ---

	// TTL записи кэша списка файлов (по умолчанию 30s)
	CacheTTL time.Duration
	// Максимальное количество кошельков в кэше
	CacheSize int

	// --- Dependency health (topologymetrics) ---

	// Имя группы в метриках app_dependency_*
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PS_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("PS_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("PS_PORT: %w", err)
	}

	// PS_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("PS_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("PS_LOG_LEVEL: %w", err)
	}

	// PS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PS_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("PS_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("PS_HTTP_WRITE_TIMEOUT", 90*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("PS_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Pinning API ---

	// PS_PIN_API_URL — базовый URL pinning API
	cfg.PinAPIURL = getEnvDefault("PS_PIN_API_URL", "https://api.pinning.example")

	// PS_PIN_API_KEY — bearer-ключ pinning API (проверяется на каждом запросе)
	cfg.PinAPIKey = os.Getenv("PS_PIN_API_KEY")

	// PS_PIN_TIMEOUT — жёсткий верхний предел ожидания ответа pinning API
	cfg.PinTimeout, err = getEnvDuration("PS_PIN_TIMEOUT", 50*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_PIN_TIMEOUT: %w", err)
	}

	// PS_UPLOAD_TIMEOUT — общий бюджет обработчика proxy-upload
	cfg.UploadTimeout, err = getEnvDuration("PS_UPLOAD_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_UPLOAD_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("PS_DB_HOST", "localhost")
	cfg.DBPort, err = getEnvInt("PS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PS_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("PS_DB_NAME", "pinstore")

	cfg.DBUser, err = getEnvRequired("PS_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("PS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("PS_DB_SSLMODE", "disable")

	cfg.DBConnectTimeout, err = getEnvDuration("PS_DB_CONNECT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_DB_CONNECT_TIMEOUT: %w", err)
	}

	// --- Кэш списков ---

	// PS_CACHE_TTL — окно валидности записи кэша (по умолчанию 30s)
	cfg.CacheTTL, err = getEnvDuration("PS_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_CACHE_TTL: %w", err)
	}

	// PS_CACHE_SIZE — максимальное количество кошельков в кэше
	cfg.CacheSize, err = getEnvInt("PS_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("PS_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("PS_CACHE_SIZE: значение должно быть >= 1")
	}

	// --- Dependency health ---

	cfg.DephealthGroup = getEnvDefault("PS_DEPHEALTH_GROUP", "pinstore")
	cfg.DephealthCheckInterval, err = getEnvDuration("PS_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("PS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN собирает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
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

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
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
