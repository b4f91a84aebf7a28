// Package activity записывает действия читателей (чтение, комментарий, репост, ...)
// как неизменяемые события и начисляет за них очки в журнал репутации.
//
// catalog.go — закрытый каталог видов действий: очки, политика дедупликации,
// необходимость модерации и счётчик активности. Неизвестный вид отклоняется.
package activity

import (
	"sort"

	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/features/ledger"
)

// Kind — вид действия.
type Kind string

// Виды действий каталога
const (
	KindReadComplete Kind = "read_complete"
	KindComment      Kind = "comment"
	KindShare        Kind = "share"
	KindLike         Kind = "like"
	KindBookmark     Kind = "bookmark"
	KindFactCheck    Kind = "fact_check"
	KindTopicSuggest Kind = "topic_suggest"
	KindDailyVisit   Kind = "daily_visit"
)

// KindConversion — служебная запись списания очков при конвертации в фасеты.
// Не входит в каталог: клиент не может её отправить.
const KindConversion Kind = "conversion_to_facets"

// DedupeScope — пространство ключей, в котором действие засчитывается не более одного раза.
type DedupeScope string

// Политики дедупликации
const (
	DedupeNone      DedupeScope = "NONE"
	DedupePerTarget DedupeScope = "PER_USER_PER_TARGET"
	DedupePerDay    DedupeScope = "PER_USER_PER_DAY"
)

// ActionKind — запись каталога.
type ActionKind struct {
	Kind               Kind           `json:"kind"`
	Points             int64          `json:"points"`
	Dedupe             DedupeScope    `json:"dedupe_scope"`
	RequiresModeration bool           `json:"requires_moderation"`
	Counter            ledger.Counter `json:"-"`
}

// catalog загружается при старте и не меняется во время работы.
var catalog = map[Kind]ActionKind{
	KindReadComplete: {Kind: KindReadComplete, Points: 10, Dedupe: DedupePerTarget, Counter: ledger.CounterArticlesRead},
	KindComment:      {Kind: KindComment, Points: 20, Dedupe: DedupeNone, RequiresModeration: true, Counter: ledger.CounterCommentsMade},
	KindShare:        {Kind: KindShare, Points: 15, Dedupe: DedupeNone, Counter: ledger.CounterSharesMade},
	KindLike:         {Kind: KindLike, Points: 5, Dedupe: DedupePerTarget},
	KindBookmark:     {Kind: KindBookmark, Points: 5, Dedupe: DedupePerTarget},
	KindFactCheck:    {Kind: KindFactCheck, Points: 50, Dedupe: DedupePerTarget, RequiresModeration: true},
	KindTopicSuggest: {Kind: KindTopicSuggest, Points: 30, Dedupe: DedupeNone},
	KindDailyVisit:   {Kind: KindDailyVisit, Points: 2, Dedupe: DedupePerDay},
}

// Lookup возвращает запись каталога или common.ErrUnknownActionKind.
func Lookup(kind string) (ActionKind, error) {
	a, ok := catalog[Kind(kind)]
	if !ok {
		return ActionKind{}, common.ErrUnknownActionKind
	}
	return a, nil
}

// Catalog возвращает все виды действий, отсортированные по имени.
func Catalog() []ActionKind {
	out := make([]ActionKind, 0, len(catalog))
	for _, a := range catalog {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
