// Package notify доставляет косметические уведомления (новый уровень, значок,
// обмен фасет) в фоне. Потеря уведомления не означает потерю очков:
// очередь ограничена, при переполнении событие отбрасывается с предупреждением.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"facebrasil.com.br/gamification/internal/metrics"
)

// EventType — вид уведомления.
type EventType string

// Виды уведомлений
const (
	EventLevelUp      EventType = "level_up"
	EventBadgeAwarded EventType = "badge_awarded"
	EventRedeemed     EventType = "redeemed"
)

// Event — одно уведомление.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       EventType       `json:"type"`
	UserID     string          `json:"user_id"`
	Level      int             `json:"level,omitempty"`
	LevelName  string          `json:"level_name,omitempty"`
	BadgeID    string          `json:"badge_id,omitempty"`
	BadgeName  string          `json:"badge_name,omitempty"`
	OfferID    string          `json:"offer_id,omitempty"`
	OfferTitle string          `json:"offer_title,omitempty"`
	Facets     decimal.Decimal `json:"facets,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Notifier — приёмник уведомлений (Telegram, RabbitMQ, ...).
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Publisher — то, что видят сервисы: неблокирующая постановка в очередь.
type Publisher interface {
	Publish(ev Event)
}

// Nop — издатель, который ничего не делает.
type Nop struct{}

// Publish ничего не делает.
func (Nop) Publish(Event) {}

// Dispatcher ставит события в ограниченную очередь и доставляет их
// во все приёмники одним рабочим горутином.
type Dispatcher struct {
	queue chan Event
	sinks []Notifier

	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher создаёт диспетчер с очередью на size событий.
func NewDispatcher(size int, sinks ...Notifier) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		queue: make(chan Event, size),
		sinks: sinks,
	}
}

// Publish ставит событие в очередь без ожидания.
// При переполненной очереди или после остановки событие отбрасывается.
func (d *Dispatcher) Publish(ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		metrics.NotificationsDropped.WithLabelValues("stopped").Inc()
		return
	}

	select {
	case d.queue <- ev:
	default:
		metrics.NotificationsDropped.WithLabelValues("queue_full").Inc()
		log.WithFields(log.Fields{
			"type":    ev.Type,
			"user_id": ev.UserID,
		}).Warn("Очередь уведомлений переполнена, событие отброшено")
	}
}

// Run доставляет события, пока ctx не отменён.
// После отмены дочитывает уже поставленные события и завершается.
func (d *Dispatcher) Run(ctx context.Context) error {
	log.WithField("sinks", len(d.sinks)).Info("Диспетчер уведомлений запущен")
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		case <-ctx.Done():
			d.mu.Lock()
			d.stopped = true
			d.mu.Unlock()
			d.drain()
			log.Info("Диспетчер уведомлений остановлен")
			return nil
		}
	}
}

// drain доставляет остаток очереди с коротким таймаутом.
func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, sink := range d.sinks {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		err := sink.Notify(sendCtx, ev)
		cancel()
		if err != nil {
			metrics.NotificationsDropped.WithLabelValues("delivery_failed").Inc()
			log.WithFields(log.Fields{
				"type":    ev.Type,
				"user_id": ev.UserID,
			}).WithError(err).Warn("Не удалось доставить уведомление")
		}
	}
}
