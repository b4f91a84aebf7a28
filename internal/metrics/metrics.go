// Package metrics объявляет метрики Prometheus сервиса.
// Коллекторы регистрируются один раз через Init при старте приложения.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Действия читателей по виду и результату (accepted, duplicate, replayed)
	ActivitiesRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_activities_total",
		Help: "Recorded activities by kind and outcome",
	}, []string{"kind", "outcome"})

	// Всего начислено очков по виду действия
	PointsAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_points_awarded_total",
		Help: "Points credited by action kind",
	}, []string{"kind"})

	// Конвертации очков в фасеты по результату
	Conversions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_conversions_total",
		Help: "Points to facets conversions by outcome",
	}, []string{"outcome"})

	// Обмены фасет на предложения партнёров по результату
	Redemptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_redemptions_total",
		Help: "Partner offer redemptions by outcome",
	}, []string{"outcome"})

	// Выданные значки
	BadgesAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_badges_awarded_total",
		Help: "Badges awarded by badge id",
	}, []string{"badge"})

	// Повышения уровня
	LevelUps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gamification_level_ups_total",
		Help: "Level increases",
	})

	// Уведомления, отброшенные из-за переполненной очереди или ошибки доставки
	NotificationsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_notifications_dropped_total",
		Help: "Notifications dropped by reason",
	}, []string{"reason"})

	// Латентность HTTP-обработчиков
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamification_http_request_duration_seconds",
		Help:    "Latency of HTTP handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Init регистрирует все коллекторы в реестре по умолчанию.
func Init() {
	prometheus.MustRegister(
		ActivitiesRecorded,
		PointsAwarded,
		Conversions,
		Redemptions,
		BadgesAwarded,
		LevelUps,
		NotificationsDropped,
		HTTPRequestDuration,
	)
}
