// Package activity — dedupe.go вычисляет ключ дедупликации события.
// Уникальность обеспечивает индекс (user_id, kind, dedupe_key) в БД,
// здесь только строится сам ключ.
package activity

import (
	"strings"
	"time"

	"facebrasil.com.br/gamification/internal/common"
)

// DedupeKey возвращает ключ дедупликации для действия.
//
// Правила:
//   - PER_USER_PER_TARGET → target_id (обязателен)
//   - PER_USER_PER_DAY → календарная дата в часовом поясе портала
//   - NONE → "" (в БД NULL, индекс не участвует)
func DedupeKey(a ActionKind, targetID string, now time.Time, loc *time.Location) (string, error) {
	switch a.Dedupe {
	case DedupePerTarget:
		targetID = strings.TrimSpace(targetID)
		if targetID == "" {
			return "", common.ErrInvalidTarget
		}
		return targetID, nil
	case DedupePerDay:
		return common.PortalDate(now, loc), nil
	default:
		return "", nil
	}
}
