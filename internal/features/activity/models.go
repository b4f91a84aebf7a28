// Package activity — models.go описывает события активности и результаты записи.
package activity

import (
	"time"

	"github.com/google/uuid"

	"facebrasil.com.br/gamification/internal/features/ledger"
)

// Event — неизменяемая запись одного действия (строка activity_events).
// После создания меняется только флаг Validated.
type Event struct {
	ID             uuid.UUID      `json:"id"`
	UserID         string         `json:"user_id"`
	TargetID       string         `json:"target_id"`
	Kind           Kind           `json:"kind"`
	PointsAwarded  int64          `json:"points_awarded"`
	Validated      bool           `json:"validated"`
	DeferredCredit bool           `json:"deferred_credit"` // Очки начисляются только после модерации
	DedupeKey      string         `json:"-"`
	IdempotencyKey string         `json:"-"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Request — заявка клиента на запись действия.
type Request struct {
	UserID         string
	TargetID       string
	Kind           string
	Metadata       map[string]any
	IdempotencyKey string
}

// Outcome — ответ POST /gamification/activity.
type Outcome struct {
	Accepted          bool       `json:"accepted"`
	PointsAwarded     int64      `json:"points_awarded"`
	PendingValidation bool       `json:"pending_validation"`
	Replayed          bool       `json:"replayed,omitempty"`
	NewBadges         []string   `json:"new_badges"`
	Level             int        `json:"level,omitempty"`
	LevelName         string     `json:"level_name,omitempty"`
	EventID           *uuid.UUID `json:"event_id,omitempty"`
}

// RecordResult — итог транзакции записи.
type RecordResult struct {
	Replayed  *Event         // Событие с тем же Idempotency-Key, записанное ранее
	Ledger    *ledger.Ledger // Журнал после начисления (nil, если начисления не было)
	LeveledUp bool
}

// ValidationResult — итог модерации события.
type ValidationResult struct {
	Event            *Event         `json:"event"`
	AlreadyValidated bool           `json:"already_validated"`
	PointsCredited   int64          `json:"points_credited"`
	Ledger           *ledger.Ledger `json:"-"`
	LeveledUp        bool           `json:"-"`
}
