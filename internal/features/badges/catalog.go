// Package badges описывает каталог значков и правила их выдачи.
// Каждое правило — чистый предикат над агрегатами журнала репутации.
package badges

import "facebrasil.com.br/gamification/internal/features/ledger"

// Rarity — редкость значка.
type Rarity string

// Уровни редкости
const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Badge — значок каталога.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Rarity      Rarity `json:"rarity"`

	rule func(l *ledger.Ledger) bool
}

// Qualifies проверяет правило значка.
func (b Badge) Qualifies(l *ledger.Ledger) bool {
	return b.rule(l)
}

// catalog — значки в порядке проверки.
var catalog = []Badge{
	{
		ID: "first_read", Name: "Primeira Leitura", Description: "Leu o primeiro artigo até o fim",
		Icon: "📖", Rarity: RarityCommon,
		rule: func(l *ledger.Ledger) bool { return l.ArticlesRead >= 1 },
	},
	{
		ID: "avid_reader", Name: "Leitor Voraz", Description: "Leu 10 artigos",
		Icon: "📚", Rarity: RarityCommon,
		rule: func(l *ledger.Ledger) bool { return l.ArticlesRead >= 10 },
	},
	{
		ID: "bookworm", Name: "Rato de Biblioteca", Description: "Leu 100 artigos",
		Icon: "🐛", Rarity: RarityRare,
		rule: func(l *ledger.Ledger) bool { return l.ArticlesRead >= 100 },
	},
	{
		ID: "first_comment", Name: "Primeira Opinião", Description: "Publicou o primeiro comentário",
		Icon: "💬", Rarity: RarityCommon,
		rule: func(l *ledger.Ledger) bool { return l.CommentsMade >= 1 },
	},
	{
		ID: "debater", Name: "Debatedor", Description: "Publicou 50 comentários",
		Icon: "🗣️", Rarity: RarityRare,
		rule: func(l *ledger.Ledger) bool { return l.CommentsMade >= 50 },
	},
	{
		ID: "sharer", Name: "Divulgador", Description: "Compartilhou 10 artigos",
		Icon: "📣", Rarity: RarityCommon,
		rule: func(l *ledger.Ledger) bool { return l.SharesMade >= 10 },
	},
	{
		ID: "rising_star", Name: "Estrela em Ascensão", Description: "Alcançou 1.000 pontos",
		Icon: "⭐", Rarity: RarityEpic,
		rule: func(l *ledger.Ledger) bool { return l.TotalPoints >= 1000 },
	},
	{
		ID: "veteran", Name: "Veterano", Description: "Chegou ao nível 5",
		Icon: "🏅", Rarity: RarityLegendary,
		rule: func(l *ledger.Ledger) bool { return l.Level >= 5 },
	},
}

// All возвращает копию каталога.
func All() []Badge {
	out := make([]Badge, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup ищет значок по id.
func Lookup(id string) (Badge, bool) {
	for _, b := range catalog {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// Qualifying возвращает id значков, условия которых выполнены и которых ещё нет у пользователя.
func Qualifying(l *ledger.Ledger) []string {
	var ids []string
	for _, b := range catalog {
		if b.Qualifies(l) && !l.HasBadge(b.ID) {
			ids = append(ids, b.ID)
		}
	}
	return ids
}
