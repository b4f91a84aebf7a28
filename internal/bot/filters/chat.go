// Package filters решает, на какие сообщения бот отвечает.
package filters

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает только чат сообщества и личные сообщения.
type ChatFilter struct {
	communityChatID int64
}

// NewChatFilter создаёт фильтр для чата сообщества.
func NewChatFilter(communityChatID int64) *ChatFilter {
	return &ChatFilter{communityChatID: communityChatID}
}

// CheckAccess сообщает, нужно ли обрабатывать сообщение.
func (f *ChatFilter) CheckAccess(message *telego.Message) bool {
	if message == nil {
		log.WithField("component", "ChatFilter").Warn("nil message")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("nil message.From (service/channel message?)")
		return false
	}
	if f.communityChatID == 0 {
		log.WithField("component", "ChatFilter").Error("communityChatID is 0 (config bug)")
		return false
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	// 1) Чат сообщества
	if message.Chat.ID == f.communityChatID {
		logger.Debug("allow: community chat")
		return true
	}

	// 2) Личка: только справочные команды, данных пользователя там нет
	if message.Chat.Type == telego.ChatTypePrivate {
		logger.Debug("allow: private")
		return true
	}

	// 3) Остальные чаты игнорируем
	logger.Info("deny: not community chat and not private")
	return false
}
