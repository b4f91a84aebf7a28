// Package ledger — repository.go выполняет все операции с таблицей reputation_ledgers.
// Каждое изменение баланса — один атомарный UPDATE/UPSERT: списания выполняются
// условным UPDATE (... AND col >= сумма), ноль затронутых строк означает нехватку средств.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/db/postgres"
)

// ledgerColumns — колонки для сканирования в scanLedger (порядок важен).
const ledgerColumns = `user_id, total_points, weekly_points, monthly_points, level, level_name,
	facets_balance::text, badges, articles_read, comments_made, shares_made, updated_at`

// Repository предоставляет методы для работы с журналом репутации.
// Работает и с пулом, и с транзакцией через postgres.DBTX.
type Repository struct {
	db postgres.DBTX
}

// NewRepository создаёт новый репозиторий журнала.
func NewRepository(db postgres.DBTX) *Repository {
	return &Repository{db: db}
}

// scanLedger читает строку журнала.
func scanLedger(row pgx.Row) (*Ledger, error) {
	var l Ledger
	var facets string
	err := row.Scan(
		&l.UserID, &l.TotalPoints, &l.WeeklyPoints, &l.MonthlyPoints, &l.Level, &l.LevelName,
		&facets, &l.Badges, &l.ArticlesRead, &l.CommentsMade, &l.SharesMade, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.FacetsBalance, err = decimal.NewFromString(facets)
	if err != nil {
		return nil, fmt.Errorf("некорректный facets_balance %q: %w", facets, err)
	}
	if l.Badges == nil {
		l.Badges = []string{}
	}
	return &l, nil
}

// Get возвращает журнал пользователя.
// Если строки ещё нет — (nil, false, nil): вызывающий подставляет нулевое состояние.
func (r *Repository) Get(ctx context.Context, userID string) (*Ledger, bool, error) {
	row := r.db.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM reputation_ledgers WHERE user_id = $1`, userID)
	l, err := scanLedger(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка получения журнала: %w", err)
	}
	return l, true, nil
}

// CreditPoints начисляет очки за действие: total/weekly/monthly += points и счётчик += 1.
// Строка создаётся с нулевыми значениями, если её ещё нет (upsert).
// Строка остаётся заблокированной до конца транзакции, что сериализует
// параллельные изменения одного пользователя.
func (r *Repository) CreditPoints(ctx context.Context, userID string, credit Credit, firstLevelName string) (*Ledger, error) {
	if credit.Points < 0 {
		return nil, common.ErrInvalidAmount
	}
	var articles, comments, shares int64
	switch credit.Counter {
	case CounterArticlesRead:
		articles = 1
	case CounterCommentsMade:
		comments = 1
	case CounterSharesMade:
		shares = 1
	}

	query := `
		INSERT INTO reputation_ledgers (user_id, total_points, weekly_points, monthly_points,
			level, level_name, articles_read, comments_made, shares_made)
		VALUES ($1, $2, $2, $2, 1, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			total_points   = reputation_ledgers.total_points + EXCLUDED.total_points,
			weekly_points  = reputation_ledgers.weekly_points + EXCLUDED.weekly_points,
			monthly_points = reputation_ledgers.monthly_points + EXCLUDED.monthly_points,
			articles_read  = reputation_ledgers.articles_read + EXCLUDED.articles_read,
			comments_made  = reputation_ledgers.comments_made + EXCLUDED.comments_made,
			shares_made    = reputation_ledgers.shares_made + EXCLUDED.shares_made,
			updated_at     = NOW()
		RETURNING ` + ledgerColumns
	l, err := scanLedger(r.db.QueryRow(ctx, query, userID, credit.Points, firstLevelName, articles, comments, shares))
	if err != nil {
		return nil, fmt.Errorf("ошибка начисления очков: %w", err)
	}
	return l, nil
}

// DebitPoints списывает очки одним условным UPDATE.
// Недельные и месячные очки не трогаются: они отражают активность, а не баланс.
// Возвращает новый total_points или common.ErrInsufficientPoints без изменений.
func (r *Repository) DebitPoints(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	var total int64
	err := r.db.QueryRow(ctx, `
		UPDATE reputation_ledgers
		SET total_points = total_points - $2, updated_at = NOW()
		WHERE user_id = $1 AND total_points >= $2
		RETURNING total_points
	`, userID, amount).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrInsufficientPoints
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка списания очков: %w", err)
	}
	return total, nil
}

// CreditFacets начисляет фасеты (строка создаётся при необходимости).
func (r *Repository) CreditFacets(ctx context.Context, userID string, amount decimal.Decimal, firstLevelName string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, common.ErrInvalidAmount
	}
	var balance string
	err := r.db.QueryRow(ctx, `
		INSERT INTO reputation_ledgers (user_id, facets_balance, level, level_name)
		VALUES ($1, $2::numeric, 1, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			facets_balance = reputation_ledgers.facets_balance + EXCLUDED.facets_balance,
			updated_at     = NOW()
		RETURNING facets_balance::text
	`, userID, amount.String(), firstLevelName).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка начисления фасет: %w", err)
	}
	return decimal.NewFromString(balance)
}

// DebitFacets списывает фасеты одним условным UPDATE.
// Два параллельных списания не могут вместе увести баланс ниже нуля:
// второе перечитает строку после фиксации первого и не пройдёт условие.
func (r *Repository) DebitFacets(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, common.ErrInvalidAmount
	}
	var balance string
	err := r.db.QueryRow(ctx, `
		UPDATE reputation_ledgers
		SET facets_balance = facets_balance - $2::numeric, updated_at = NOW()
		WHERE user_id = $1 AND facets_balance >= $2::numeric
		RETURNING facets_balance::text
	`, userID, amount.String()).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, common.ErrInsufficientFacets
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка списания фасет: %w", err)
	}
	return decimal.NewFromString(balance)
}

// RaiseLevel повышает уровень, если новый выше сохранённого.
// Возвращает true, если уровень изменился.
func (r *Repository) RaiseLevel(ctx context.Context, userID string, level int, name string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE reputation_ledgers
		SET level = $2, level_name = $3, updated_at = NOW()
		WHERE user_id = $1 AND level < $2
	`, userID, level, name)
	if err != nil {
		return false, fmt.Errorf("ошибка повышения уровня: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RaiseToLevelFor поднимает сохранённый уровень до уровня, соответствующего total_points.
// Уровень никогда не понижается. Обновляет l и возвращает true при повышении.
func (r *Repository) RaiseToLevelFor(ctx context.Context, l *Ledger, levels *Levels) (bool, error) {
	target := levels.For(l.TotalPoints)
	if target <= l.Level {
		return false, nil
	}
	raised, err := r.RaiseLevel(ctx, l.UserID, target, levels.Name(target))
	if err != nil {
		return false, err
	}
	if raised {
		l.Level = target
		l.LevelName = levels.Name(target)
	}
	return raised, nil
}

// AddBadge добавляет значок, только если его ещё нет.
// Возвращает true, если значок был добавлен этим вызовом.
func (r *Repository) AddBadge(ctx context.Context, userID, badgeID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE reputation_ledgers
		SET badges = array_append(badges, $2), updated_at = NOW()
		WHERE user_id = $1 AND NOT ($2 = ANY(badges))
	`, userID, badgeID)
	if err != nil {
		return false, fmt.Errorf("ошибка выдачи значка: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Leaderboard возвращает топ пользователей по очкам периода.
// Равные очки упорядочиваются по user_id, ранги проставляет AssignRanks.
func (r *Repository) Leaderboard(ctx context.Context, period Period, limit int) ([]LeaderboardEntry, error) {
	col := period.column()
	query := fmt.Sprintf(`
		SELECT user_id, %[1]s, level, badges
		FROM reputation_ledgers
		WHERE %[1]s > 0
		ORDER BY %[1]s DESC, user_id ASC
		LIMIT $1
	`, col)
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рейтинга: %w", err)
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Points, &e.Level, &e.Badges); err != nil {
			return nil, fmt.Errorf("ошибка сканирования рейтинга: %w", err)
		}
		if e.Badges == nil {
			e.Badges = []string{}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения рейтинга: %w", err)
	}
	AssignRanks(entries)
	return entries, nil
}

// ResetPeriod обнуляет очки периода (weekly или monthly) у всех пользователей.
// Возвращает число затронутых строк.
func (r *Repository) ResetPeriod(ctx context.Context, period Period) (int64, error) {
	if period == PeriodAllTime {
		return 0, fmt.Errorf("общий счёт не сбрасывается")
	}
	col := period.column()
	tag, err := r.db.Exec(ctx, fmt.Sprintf(
		`UPDATE reputation_ledgers SET %[1]s = 0, updated_at = NOW() WHERE %[1]s <> 0`, col))
	if err != nil {
		return 0, fmt.Errorf("ошибка сброса %s: %w", col, err)
	}
	return tag.RowsAffected(), nil
}
