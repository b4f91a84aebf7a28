// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// перед этим godotenv подхватывает локальный .env (если он есть).
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"facebrasil.com.br/gamification/internal/common"
)

// Политики начисления очков за действия, требующие модерации.
const (
	// CreditOptimistic — очки начисляются сразу, событие помечено validated=false
	CreditOptimistic = "optimistic"
	// CreditOnValidation — очки начисляются только после одобрения модератором
	CreditOnValidation = "on_validation"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPPort            string        `envconfig:"HTTP_PORT" default:"8080"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	CORSAllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// --- Identity provider (JWT) ---
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`
	JWTAudience string `envconfig:"JWT_AUDIENCE" default:"authenticated"`
	JWTIssuer   string `envconfig:"JWT_ISSUER"`

	// --- Database ---
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"facebrasil"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"facebrasil"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// Сколько раз повторять операцию при конфликте сериализации / обрыве соединения
	StorageRetryAttempts uint          `envconfig:"STORAGE_RETRY_ATTEMPTS" default:"3"`
	StorageRetryInterval time.Duration `envconfig:"STORAGE_RETRY_INTERVAL" default:"50ms"`
	// Таймаут одной операции с БД (операция не зависит от отключения клиента)
	StorageTimeout time.Duration `envconfig:"STORAGE_TIMEOUT" default:"10s"`

	// --- Redis (необязательно) ---
	RedisURL            string        `envconfig:"REDIS_URL"`
	LeaderboardCacheTTL time.Duration `envconfig:"LEADERBOARD_CACHE_TTL" default:"30s"`

	// --- RabbitMQ (необязательно) ---
	RabbitMQURL      string `envconfig:"RABBITMQ_URL"`
	RabbitMQExchange string `envconfig:"RABBITMQ_EXCHANGE" default:"gamification_events"`

	// --- Telegram (необязательно) ---
	TelegramBotToken        string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID          int64  `envconfig:"TELEGRAM_CHAT_ID"`
	BotUpdateTimeoutSeconds int    `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`
	BotMaxInflight          int    `envconfig:"BOT_MAX_INFLIGHT" default:"16"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"America/Sao_Paulo"`

	// --- Admin ---
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`
	AdminSessionTTL   time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"24h"`

	// --- Gamification ---
	ModerationCreditPolicy string `envconfig:"MODERATION_CREDIT_POLICY" default:"optimistic"`
	// Пороги уровней через запятую, первый порог всегда 0
	LevelThresholdsRaw string  `envconfig:"LEVEL_THRESHOLDS" default:"0,100,500,1500,5000,15000"`
	LevelThresholds    []int64 `envconfig:"-"` // заполним вручную
	NotifyQueueSize    int     `envconfig:"NOTIFY_QUEUE_SIZE" default:"256"`

	// --- Rate Limiting ---
	RateLimitRequests   int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`     // На пользователя
	RateLimitIPRequests int           `envconfig:"RATE_LIMIT_IP_REQUESTS" default:"300"` // На IP до проверки JWT
	RateLimitWindow     time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureTelegramEnabled bool `envconfig:"FEATURE_TELEGRAM_ENABLED" default:"false"`
	FeatureMetricsEnabled  bool `envconfig:"FEATURE_METRICS_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Location возвращает часовой пояс портала.
func (c *Config) Location() *time.Location {
	return common.LoadPortalLocation(c.AppTimezone)
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.StorageRetryAttempts == 0 {
		return fmt.Errorf("STORAGE_RETRY_ATTEMPTS должен быть > 0")
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("STORAGE_TIMEOUT должен быть > 0")
	}
	switch c.ModerationCreditPolicy {
	case CreditOptimistic, CreditOnValidation:
	default:
		return fmt.Errorf("MODERATION_CREDIT_POLICY: неизвестная политика %q", c.ModerationCreditPolicy)
	}
	if c.FeatureTelegramEnabled {
		if c.TelegramBotToken == "" || c.TelegramChatID == 0 {
			return fmt.Errorf("FEATURE_TELEGRAM_ENABLED требует TELEGRAM_BOT_TOKEN и TELEGRAM_CHAT_ID")
		}
		if c.BotMaxInflight <= 0 {
			return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
		}
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("некорректные RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}
	if c.RateLimitIPRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_IP_REQUESTS должен быть > 0")
	}
	if c.NotifyQueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE должен быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	// .env нужен только локально, в контейнере его нет
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	thresholds, err := parseThresholds(cfg.LevelThresholdsRaw)
	if err != nil {
		return nil, fmt.Errorf("LEVEL_THRESHOLDS parse: %w", err)
	}
	cfg.LevelThresholds = thresholds

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseThresholds разбирает строго возрастающий список порогов, начинающийся с 0.
func parseThresholds(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("пустой список порогов")
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		if i == 0 && v != 0 {
			return nil, fmt.Errorf("первый порог должен быть 0, получено %d", v)
		}
		if i > 0 && v <= out[i-1] {
			return nil, fmt.Errorf("пороги должны строго возрастать: %d после %d", v, out[i-1])
		}
		out = append(out, v)
	}
	return out, nil
}
