// Package common — pluralize.go содержит склонение существительных
// для сообщений, которые видят читатели (португальский язык).
package common

// PluralizePoints возвращает правильную форму слова «ponto» для числа n.
// В португальском единственное число только для 1 и -1.
//
// Примеры:
//
//	PluralizePoints(1)  → "ponto"
//	PluralizePoints(0)  → "pontos"
//	PluralizePoints(10) → "pontos"
func PluralizePoints(n int64) string {
	if n == 1 || n == -1 {
		return "ponto"
	}
	return "pontos"
}

// PluralizeBadges возвращает «conquista» или «conquistas».
func PluralizeBadges(n int) string {
	if n == 1 {
		return "conquista"
	}
	return "conquistas"
}
