// Package bot — format.go собирает тексты сообщений для чата сообщества (HTML).
package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/features/ledger"
	"facebrasil.com.br/gamification/internal/notify"
)

// shortUser сокращает непрозрачный id пользователя для показа в чате.
func shortUser(userID string) string {
	r := []rune(userID)
	if len(r) > 8 {
		return string(r[:8]) + "…"
	}
	return userID
}

// periodTitle — заголовок рейтинга за период.
func periodTitle(p ledger.Period) string {
	switch p {
	case ledger.PeriodMonthly:
		return "do mês"
	case ledger.PeriodAllTime:
		return "geral"
	default:
		return "da semana"
	}
}

// FormatEvent возвращает текст уведомления или "", если событие не показывается в чате.
// Время обмена показывается в часовом поясе loc.
func FormatEvent(ev notify.Event, loc *time.Location) string {
	user := html.EscapeString(shortUser(ev.UserID))
	switch ev.Type {
	case notify.EventLevelUp:
		return fmt.Sprintf("🎉 O leitor <b>%s</b> subiu para o nível %d: <b>%s</b>!",
			user, ev.Level, html.EscapeString(ev.LevelName))
	case notify.EventBadgeAwarded:
		name := ev.BadgeName
		if name == "" {
			name = ev.BadgeID
		}
		return fmt.Sprintf("🏅 O leitor <b>%s</b> ganhou a conquista <b>%s</b>!",
			user, html.EscapeString(name))
	case notify.EventRedeemed:
		text := fmt.Sprintf("🎁 O leitor <b>%s</b> resgatou <b>%s</b> por %s",
			user, html.EscapeString(ev.OfferTitle), common.FormatFacets(ev.Facets))
		if !ev.OccurredAt.IsZero() {
			text += " em " + common.FormatDateTime(ev.OccurredAt, loc)
		}
		return text
	default:
		return ""
	}
}

// FormatRanking возвращает текст рейтинга для команды /ranking.
func FormatRanking(period ledger.Period, entries []ledger.LeaderboardEntry) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏆 <b>Ranking %s</b>\n\n", periodTitle(period)))

	if len(entries) == 0 {
		sb.WriteString("Ainda não há pontos neste período.")
		return sb.String()
	}

	for _, e := range entries {
		medal := ""
		switch e.Rank {
		case 1:
			medal = "🥇 "
		case 2:
			medal = "🥈 "
		case 3:
			medal = "🥉 "
		}
		sb.WriteString(fmt.Sprintf("%s%d. %s | %s %s | nível %d",
			medal, e.Rank, html.EscapeString(shortUser(e.UserID)),
			common.FormatNumber(e.Points), common.PluralizePoints(e.Points), e.Level))
		if n := len(e.Badges); n > 0 {
			sb.WriteString(fmt.Sprintf(" | %d %s", n, common.PluralizeBadges(n)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
