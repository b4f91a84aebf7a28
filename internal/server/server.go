// Package server собирает HTTP API сервиса: роутер chi, общие middleware,
// группы /gamification (JWT) и /admin (JWT + сессия администратора).
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"facebrasil.com.br/gamification/internal/features/activity"
	"facebrasil.com.br/gamification/internal/features/admin"
	"facebrasil.com.br/gamification/internal/features/badges"
	"facebrasil.com.br/gamification/internal/features/ledger"
	"facebrasil.com.br/gamification/internal/features/rewards"
	"facebrasil.com.br/gamification/internal/httpx"
	"facebrasil.com.br/gamification/internal/server/middleware"
)

// requestTimeout — предельное время обработки одного запроса.
const requestTimeout = 30 * time.Second

// Handlers — обработчики фич, которые подключаются к роутеру.
type Handlers struct {
	Activity *activity.Handler
	Ledger   *ledger.Handler
	Badges   *badges.Handler
	Rewards  *rewards.Handler
	Admin    *admin.Handler
}

// Options — настройки роутера.
type Options struct {
	CORSAllowedOrigins []string
	MetricsEnabled     bool
	// Authenticate проверяет JWT и кладёт user_id в контекст
	Authenticate func(http.Handler) http.Handler
	// Limiter — лимит на пользователя после проверки JWT (nil — выключен)
	Limiter middleware.Limiter
	// IPLimiter — лимит на IP до проверки JWT, покрывает и неаутентифицированные запросы (nil — выключен)
	IPLimiter middleware.Limiter
	// Ready проверяет зависимости для /health (nil — всегда готов)
	Ready func(ctx context.Context) error
}

// NewRouter создаёт роутер со всеми маршрутами.
func NewRouter(opts Options, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if opts.MetricsEnabled {
		r.Use(middleware.Metrics)
	}
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", httpx.IdempotencyHeader, admin.SessionHeader},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler(opts.Ready))
	if opts.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	protected := func(r chi.Router) {
		if opts.IPLimiter != nil {
			r.Use(middleware.RateLimit(opts.IPLimiter))
		}
		r.Use(opts.Authenticate)
		if opts.Limiter != nil {
			r.Use(middleware.RateLimit(opts.Limiter))
		}
	}

	r.Route("/gamification", func(r chi.Router) {
		protected(r)
		h.Activity.Register(r)
		h.Ledger.Register(r)
		h.Badges.Register(r)
		h.Rewards.Register(r)
	})

	r.Route("/admin", func(r chi.Router) {
		protected(r)
		h.Admin.Register(r)
		r.Group(func(r chi.Router) {
			r.Use(h.Admin.RequireSession)
			h.Activity.RegisterAdmin(r)
			h.Rewards.RegisterAdmin(r)
		})
	})

	return r
}

func healthHandler(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				log.WithError(err).Warn("Проверка готовности не пройдена")
				httpx.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Server — HTTP-сервер с корректной остановкой.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
}

// New создаёт сервер на адресе addr.
func New(addr string, handler http.Handler, shutdownTimeout time.Duration) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Run принимает запросы до отмены ctx, затем дожидается активных запросов.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.srv.Addr).Info("HTTP-сервер запущен")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("HTTP-сервер останавливается...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("HTTP-сервер остановлен")
	return nil
}
