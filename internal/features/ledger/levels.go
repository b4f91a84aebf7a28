// Package ledger — levels.go содержит ступенчатую функцию уровней.
// Уровень зависит только от total_points и никогда не убывает с ростом очков.
package ledger

import "fmt"

// levelNames — названия уровней по порядку (уровень 1 = индекс 0).
var levelNames = []string{
	"Leitor",
	"Leitor Assíduo",
	"Colaborador",
	"Correspondente",
	"Editor",
	"Embaixador Facebrasil",
}

// Levels — таблица порогов уровней.
type Levels struct {
	thresholds []int64 // thresholds[i] — минимум очков для уровня i+1
}

// NewLevels создаёт таблицу уровней из порогов (первый порог 0, строго возрастают).
// Пороги проверяются при загрузке конфигурации.
func NewLevels(thresholds []int64) *Levels {
	if len(thresholds) == 0 {
		thresholds = []int64{0}
	}
	t := make([]int64, len(thresholds))
	copy(t, thresholds)
	return &Levels{thresholds: t}
}

// Max возвращает максимальный уровень.
func (l *Levels) Max() int {
	return len(l.thresholds)
}

// For возвращает уровень (с 1) для суммы очков.
func (l *Levels) For(totalPoints int64) int {
	level := 1
	for i, t := range l.thresholds {
		if totalPoints >= t {
			level = i + 1
		}
	}
	return level
}

// Name возвращает название уровня.
// Уровни сверх списка названий получают название «Nível N».
func (l *Levels) Name(level int) string {
	if level >= 1 && level <= len(levelNames) {
		return levelNames[level-1]
	}
	return fmt.Sprintf("Nível %d", level)
}

// Progress считает прогресс к следующему уровню.
//
// Возвращает:
//   - current: порог текущего уровня
//   - next: порог следующего уровня (на максимальном уровне равен current)
//   - percent: 0..100
//
// После конвертации очков total может оказаться ниже порога сохранённого уровня,
// тогда прогресс равен 0.
func (l *Levels) Progress(level int, totalPoints int64) (current, next int64, percent int) {
	if level < 1 {
		level = 1
	}
	if level > l.Max() {
		level = l.Max()
	}
	current = l.thresholds[level-1]
	if level == l.Max() {
		return current, current, 100
	}
	next = l.thresholds[level]

	gained := totalPoints - current
	if gained <= 0 {
		return current, next, 0
	}
	percent = int(gained * 100 / (next - current))
	if percent > 100 {
		percent = 100
	}
	return current, next, percent
}
