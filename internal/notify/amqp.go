// Package notify — amqp.go публикует уведомления в topic-exchange RabbitMQ,
// чтобы другие сервисы портала (e-mail, push) могли на них подписаться.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// dialTimeout — предельное время установки соединения с брокером.
const dialTimeout = 10 * time.Second

// RoutingKey возвращает ключ маршрутизации для вида события.
func RoutingKey(t EventType) string {
	return "gamification." + string(t)
}

// AMQPNotifier публикует события в RabbitMQ.
type AMQPNotifier struct {
	url      string
	exchange string

	mu      sync.Mutex // amqp.Channel не безопасен для параллельной публикации
	conn    *amqp.Connection
	channel *amqp.Channel
}

// sanitizeAMQPURL убирает кавычки и проверяет схему.
func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("схема AMQP должна быть amqp:// или amqps://")
	}
	return clean, nil
}

// NewAMQPNotifier подключается к RabbitMQ и объявляет durable topic-exchange.
func NewAMQPNotifier(amqpURL, exchange string) (*AMQPNotifier, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	n := &AMQPNotifier{url: cleanURL, exchange: exchange}
	if err := n.dial(); err != nil {
		return nil, err
	}
	if err := n.openChannel(); err != nil {
		n.conn.Close()
		return nil, err
	}

	log.WithField("exchange", exchange).Info("Подключение к RabbitMQ установлено")
	return n, nil
}

// dial устанавливает соединение с ограниченным таймаутом, чтобы старт и публикация не зависали.
func (n *AMQPNotifier) dial() error {
	conn, err := amqp.DialConfig(n.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return fmt.Errorf("ошибка подключения к RabbitMQ: %w", err)
	}
	n.conn = conn
	return nil
}

// reconnect восстанавливает соединение, если брокер его закрыл, и открывает новый канал.
// Вызывается под mu.
func (n *AMQPNotifier) reconnect() error {
	if n.channel != nil {
		n.channel.Close()
		n.channel = nil
	}
	if n.conn == nil || n.conn.IsClosed() {
		if err := n.dial(); err != nil {
			return err
		}
		log.Info("Соединение с RabbitMQ восстановлено")
	}
	return n.openChannel()
}

// openChannel открывает канал и объявляет exchange. Вызывается под mu или при создании.
func (n *AMQPNotifier) openChannel() error {
	ch, err := n.conn.Channel()
	if err != nil {
		return fmt.Errorf("ошибка открытия канала: %w", err)
	}
	if err := ch.ExchangeDeclare(
		n.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		ch.Close()
		return fmt.Errorf("ошибка объявления exchange %s: %w", n.exchange, err)
	}
	n.channel = ch
	return nil
}

// Notify публикует событие. При ошибке канал (и, если нужно, соединение)
// открывается заново и публикация повторяется один раз.
func (n *AMQPNotifier) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID.String(),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.channel != nil {
		err = n.channel.PublishWithContext(ctx, n.exchange, RoutingKey(ev.Type), false, false, msg)
		if err == nil {
			return nil
		}
		log.WithField("routing_key", RoutingKey(ev.Type)).WithError(err).Warn("Ошибка публикации, переподключаемся")
	}

	if err := n.reconnect(); err != nil {
		return err
	}
	return n.channel.PublishWithContext(ctx, n.exchange, RoutingKey(ev.Type), false, false, msg)
}

// Close закрывает канал и соединение.
func (n *AMQPNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}
