// Package bot содержит Telegram-бота сообщества: он публикует уведомления
// (новый уровень, значок, обмен) в чат и отвечает на /ranking и /start.
// bot.go создаёт клиента, запускает long polling и маршрутизирует команды.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"facebrasil.com.br/gamification/internal/bot/filters"
	"facebrasil.com.br/gamification/internal/features/ledger"
	"facebrasil.com.br/gamification/internal/notify"
	"facebrasil.com.br/gamification/internal/server/middleware"
)

// rankingSize — размер рейтинга в чате.
const rankingSize = 10

// RankingSource отдаёт рейтинг за период.
type RankingSource interface {
	Leaderboard(ctx context.Context, period ledger.Period, limit int) ([]ledger.LeaderboardEntry, error)
}

// sender — часть API Telegram, которой бот пишет в чаты.
type sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Options — настройки бота.
type Options struct {
	CommunityChatID      int64
	UpdateTimeoutSeconds int
	MaxInflight          int
	RateLimitRequests    int
	RateLimitWindow      time.Duration
	// Часовой пояс портала для дат в уведомлениях
	Location *time.Location
}

// Bot — бот сообщества.
type Bot struct {
	api    *telego.Bot
	sender sender
	opts   Options

	ranking     RankingSource
	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter
	parser      *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт бота по токену. Логи telego идут через logrus.
func New(token string, ranking RankingSource, opts Options) (*Bot, error) {
	api, err := telego.NewBot(token, telego.WithLogger(log.StandardLogger()))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-бота: %w", err)
	}
	return newBot(api, api, ranking, opts), nil
}

func newBot(api *telego.Bot, s sender, ranking RankingSource, opts Options) *Bot {
	if opts.MaxInflight <= 0 {
		opts.MaxInflight = 16
	}
	if opts.UpdateTimeoutSeconds <= 0 {
		opts.UpdateTimeoutSeconds = 60
	}
	if opts.RateLimitRequests <= 0 {
		opts.RateLimitRequests = 10
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Bot{
		api:         api,
		sender:      s,
		opts:        opts,
		ranking:     ranking,
		chatFilter:  filters.NewChatFilter(opts.CommunityChatID),
		rateLimiter: middleware.NewRateLimiter(opts.RateLimitRequests, opts.RateLimitWindow),
		parser:      NewCommandParser(),
		inflight:    make(chan struct{}, opts.MaxInflight),
	}
}

// Start запускает long polling и обрабатывает обновления до отмены ctx.
func (b *Bot) Start(ctx context.Context) error {
	defer b.rateLimiter.Close()

	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: b.opts.UpdateTimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("ошибка запуска long polling: %w", err)
	}

	log.WithFields(log.Fields{
		"max_inflight": b.opts.MaxInflight,
		"timeout_sec":  b.opts.UpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return nil
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd telego.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// Notify публикует уведомление в чат сообщества (реализует notify.Notifier).
func (b *Bot) Notify(ctx context.Context, ev notify.Event) error {
	text := FormatEvent(ev, b.opts.Location)
	if text == "" {
		return nil
	}
	return b.send(ctx, b.opts.CommunityChatID, text)
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer recoverFromPanic()

	message := update.Message
	if message == nil || message.Text == "" {
		return
	}

	logMessage(message)

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	if allowed, _, _ := b.rateLimiter.Allow(ctx, strconv.FormatInt(message.From.ID, 10)); !allowed {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}
	b.routeCommand(ctx, message.Chat.ID, cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID int64, cmd string, args []string) {
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")

	switch cmd {
	case "start", "help", "ajuda":
		b.reply(ctx, chatID, "👋 Olá! Eu publico as conquistas dos leitores do Facebrasil.\n"+
			"Comandos: /ranking [semana|mes|geral]")

	case "ranking":
		b.handleRanking(ctx, chatID, args)
	}
}

// handleRanking отвечает рейтингом за период (по умолчанию неделя).
func (b *Bot) handleRanking(ctx context.Context, chatID int64, args []string) {
	period := ledger.PeriodWeekly
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "mes", "mês", "monthly":
			period = ledger.PeriodMonthly
		case "geral", "all-time":
			period = ledger.PeriodAllTime
		}
	}

	entries, err := b.ranking.Leaderboard(ctx, period, rankingSize)
	if err != nil {
		log.WithError(err).Error("Ошибка получения рейтинга для бота")
		b.reply(ctx, chatID, "❌ Não foi possível carregar o ranking agora")
		return
	}
	b.reply(ctx, chatID, FormatRanking(period, entries))
}

// reply отправляет ответ и только логирует ошибку.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.send(ctx, chatID, text); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// send — утилита для отправки HTML-сообщений.
func (b *Bot) send(ctx context.Context, chatID int64, text string) error {
	_, err := b.sender.SendMessage(ctx, tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeHTML))
	return err
}

// logMessage логирует входящее сообщение (текст обрезается до 50 символов).
func logMessage(message *telego.Message) {
	text := []rune(message.Text)
	if len(text) > 50 {
		text = append(text[:50], []rune("...")...)
	}
	fields := log.Fields{
		"chat_id": message.Chat.ID,
		"text":    string(text),
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
		fields["username"] = message.From.Username
	}
	log.WithFields(fields).Debug("Входящее сообщение")
}

func recoverFromPanic() {
	if r := recover(); r != nil {
		log.WithFields(log.Fields{
			"component": "panic_recovery",
			"panic":     fmt.Sprintf("%v", r),
			"stack":     string(debug.Stack()),
		}).Error("ПАНИКА в обработчике — восстановлено")
	}
}

// CommandParser парсит команды с префиксами / ! и .
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!", "."},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Суффикс @имя_бота у команды отбрасывается: /ranking@facebot → ranking.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return command, args, true
}
