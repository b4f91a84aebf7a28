// Package ledger реализует журнал репутации: по одной строке на читателя
// с очками, уровнем, балансом фасет, значками и счётчиками активности.
// models.go описывает структуры журнала, баланса и рейтинга.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"facebrasil.com.br/gamification/internal/common"
)

// Ledger — агрегат репутации одного пользователя (строка reputation_ledgers).
type Ledger struct {
	UserID        string          `json:"user_id"`
	TotalPoints   int64           `json:"total_points"`
	WeeklyPoints  int64           `json:"weekly_points"`
	MonthlyPoints int64           `json:"monthly_points"`
	Level         int             `json:"level"`
	LevelName     string          `json:"level_name"`
	FacetsBalance decimal.Decimal `json:"facets_balance"`
	Badges        []string        `json:"badges"`
	ArticlesRead  int64           `json:"articles_read"`
	CommentsMade  int64           `json:"comments_made"`
	SharesMade    int64           `json:"shares_made"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// HasBadge сообщает, есть ли у пользователя значок.
func (l *Ledger) HasBadge(id string) bool {
	for _, b := range l.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// Counter — счётчик активности, который увеличивается вместе с начислением.
type Counter string

// Счётчики активности (имена совпадают с колонками reputation_ledgers)
const (
	CounterNone         Counter = ""
	CounterArticlesRead Counter = "articles_read"
	CounterCommentsMade Counter = "comments_made"
	CounterSharesMade   Counter = "shares_made"
)

// Credit — одно начисление очков.
type Credit struct {
	Points  int64
	Counter Counter
}

// Balance — ответ GET /gamification/balance.
type Balance struct {
	TotalPoints       int64           `json:"total_points"`
	Level             int             `json:"level"`
	LevelName         string          `json:"level_name"`
	XPForCurrentLevel int64           `json:"xp_for_current_level"`
	XPForNextLevel    int64           `json:"xp_for_next_level"`
	ProgressPercent   int             `json:"progress_percent"`
	FacetsBalance     decimal.Decimal `json:"facets_balance"`
	WeeklyPoints      int64           `json:"weekly_points"`
	MonthlyPoints     int64           `json:"monthly_points"`
	Badges            []string        `json:"badges"`
}

// Period — период рейтинга.
type Period string

// Периоды рейтинга
const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all-time"
)

// ParsePeriod проверяет период из строки запроса. Пустая строка — weekly.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodWeekly, nil
	case PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return Period(s), nil
	}
	return "", common.ErrInvalidPeriod
}

// column возвращает колонку очков для периода.
func (p Period) column() string {
	switch p {
	case PeriodMonthly:
		return "monthly_points"
	case PeriodAllTime:
		return "total_points"
	default:
		return "weekly_points"
	}
}

// Ограничения размера рейтинга
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// LeaderboardEntry — одна строка рейтинга.
type LeaderboardEntry struct {
	Rank   int      `json:"rank"`
	UserID string   `json:"user_id"`
	Points int64    `json:"points"`
	Level  int      `json:"level"`
	Badges []string `json:"badges"`
}

// AssignRanks проставляет ранги списку, уже отсортированному по очкам (DESC).
// Ранг = 1 + число пользователей со строго большим счётом,
// поэтому при равенстве очков ранги совпадают (1, 2, 2, 4).
func AssignRanks(entries []LeaderboardEntry) {
	for i := range entries {
		if i > 0 && entries[i].Points == entries[i-1].Points {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}
