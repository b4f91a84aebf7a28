// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, Redis, репозитории, сервисы,
// обработчики, каналы уведомлений и запускает всё в одной errgroup.
package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"facebrasil.com.br/gamification/internal/auth"
	"facebrasil.com.br/gamification/internal/bot"
	"facebrasil.com.br/gamification/internal/config"
	"facebrasil.com.br/gamification/internal/db/postgres"
	"facebrasil.com.br/gamification/internal/db/redis"
	"facebrasil.com.br/gamification/internal/features/activity"
	"facebrasil.com.br/gamification/internal/features/admin"
	"facebrasil.com.br/gamification/internal/features/badges"
	"facebrasil.com.br/gamification/internal/features/ledger"
	"facebrasil.com.br/gamification/internal/features/rewards"
	"facebrasil.com.br/gamification/internal/jobs"
	"facebrasil.com.br/gamification/internal/metrics"
	"facebrasil.com.br/gamification/internal/notify"
	"facebrasil.com.br/gamification/internal/server"
	"facebrasil.com.br/gamification/internal/server/middleware"
)

// App содержит все компоненты приложения.
type App struct {
	DB         *pgxpool.Pool
	Redis      *goredis.Client
	Server     *server.Server
	Dispatcher *notify.Dispatcher
	Scheduler  *jobs.Scheduler
	Bot        *bot.Bot // nil, если Telegram выключен

	amqp         *notify.AMQPNotifier
	memoryLimits []*middleware.RateLimiter
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// === 1. База данных ===
	a.DB, err = postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.RunMigrations(ctx, a.DB, migrations); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	runner := postgres.NewRunner(a.DB, cfg.StorageRetryAttempts, cfg.StorageRetryInterval, cfg.StorageTimeout)

	// === 2. Redis (необязательно) ===
	a.Redis, err = redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	if cfg.FeatureMetricsEnabled {
		metrics.Init()
	}

	loc := cfg.Location()
	levels := ledger.NewLevels(cfg.LevelThresholds)

	// === 3. Репозитории ===
	ledgerRepo := ledger.NewRepository(a.DB)
	adminRepo := admin.NewRepository(a.DB)

	var cache ledger.Cache
	if a.Redis != nil {
		cache = ledger.NewRedisCache(a.Redis, cfg.LeaderboardCacheTTL)
	}

	// === 4. Каналы уведомлений ===
	ledgerService := ledger.NewService(ledgerRepo, levels, cache)

	var sinks []notify.Notifier
	if cfg.RabbitMQURL != "" {
		a.amqp, err = notify.NewAMQPNotifier(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, a.amqp)
	}
	if cfg.FeatureTelegramEnabled {
		a.Bot, err = bot.New(cfg.TelegramBotToken, ledgerService, bot.Options{
			CommunityChatID:      cfg.TelegramChatID,
			UpdateTimeoutSeconds: cfg.BotUpdateTimeoutSeconds,
			MaxInflight:          cfg.BotMaxInflight,
			Location:             loc,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, a.Bot)
	}
	a.Dispatcher = notify.NewDispatcher(cfg.NotifyQueueSize, sinks...)

	// === 5. Сервисы ===
	evaluator := badges.NewEvaluator(ledgerRepo)
	activityService := activity.NewService(
		activity.NewPgStore(runner, levels), evaluator, a.Dispatcher, cfg.ModerationCreditPolicy, loc,
	)
	rewardsService := rewards.NewService(rewards.NewPgStore(runner, levels), a.Dispatcher)
	adminService := admin.NewService(adminRepo, cfg.AdminPasswordHash, cfg.AdminSessionTTL)

	// === 6. HTTP ===
	limiter := a.newLimiter("gamification:ratelimit:user", cfg.RateLimitRequests, cfg.RateLimitWindow)
	ipLimiter := a.newLimiter("gamification:ratelimit:ip", cfg.RateLimitIPRequests, cfg.RateLimitWindow)

	router := server.NewRouter(server.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MetricsEnabled:     cfg.FeatureMetricsEnabled,
		Authenticate:       auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience, cfg.JWTIssuer).Middleware,
		Limiter:            limiter,
		IPLimiter:          ipLimiter,
		Ready:              a.ready,
	}, server.Handlers{
		Activity: activity.NewHandler(activityService),
		Ledger:   ledger.NewHandler(ledgerService),
		Badges:   badges.NewHandler(ledgerService),
		Rewards:  rewards.NewHandler(rewardsService),
		Admin:    admin.NewHandler(adminService),
	})
	a.Server = server.New(net.JoinHostPort("", cfg.HTTPPort), router, cfg.HTTPShutdownTimeout)

	// === 7. Планировщик задач ===
	a.Scheduler = jobs.NewScheduler(ledgerService, adminService, loc)

	log.WithFields(log.Fields{
		"env":      cfg.AppEnv,
		"policy":   cfg.ModerationCreditPolicy,
		"redis":    a.Redis != nil,
		"rabbitmq": a.amqp != nil,
		"telegram": a.Bot != nil,
	}).Info("Приложение инициализировано")
	return a, nil
}

// Run запускает HTTP-сервер, очередь уведомлений, бота и планировщик.
// Первая ошибка любого компонента останавливает остальные.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Server.Run(ctx) })
	g.Go(func() error { return a.Dispatcher.Run(ctx) })
	g.Go(func() error { return a.Scheduler.Run(ctx) })
	if a.Bot != nil {
		g.Go(func() error { return a.Bot.Start(ctx) })
	}

	return g.Wait()
}

// Close освобождает внешние ресурсы. Безопасен для частично собранного App.
func (a *App) Close() {
	for _, l := range a.memoryLimits {
		l.Close()
	}
	if a.amqp != nil {
		a.amqp.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// newLimiter создаёт общий лимит в Redis или, без Redis, лимит в памяти процесса.
func (a *App) newLimiter(prefix string, limit int, window time.Duration) middleware.Limiter {
	if a.Redis != nil {
		return middleware.NewRedisRateLimiter(a.Redis, prefix, limit, window)
	}
	l := middleware.NewRateLimiter(limit, window)
	a.memoryLimits = append(a.memoryLimits, l)
	return l
}

// ready проверяет доступность БД и Redis для /health.
func (a *App) ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := a.DB.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
