// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: плюрализация, форматирование чисел, работа со временем портала.
package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PortalTimezone — часовой пояс портала по умолчанию.
const PortalTimezone = "America/Sao_Paulo"

// LoadPortalLocation загружает часовой пояс по имени.
// Если не удалось загрузить — используем UTC-3 вручную.
func LoadPortalLocation(name string) *time.Location {
	if name == "" {
		name = PortalTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// PortalDate возвращает календарную дату момента t в часовом поясе loc.
// Формат: 2006-01-02. Используется как ключ дедупликации «раз в день».
func PortalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// FormatDateTime форматирует время в формат "02/01/2006 15:04" (бразильский порядок).
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02/01/2006 15:04")
}

// FormatNumber форматирует число с разделителями тысяч (точками, как в pt-BR).
// Пример: FormatNumber(2350) → "2.350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	// Рекурсивно добавляем разделители
	rest := n / 1000
	last := n % 1000
	return fmt.Sprintf("%s.%03d", FormatNumber(rest), last)
}

// FormatFacets форматирует сумму фасет с тремя знаками после запятой.
// Пример: FormatFacets(1.5) → "1,500 $FC"
func FormatFacets(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(3), ".", ",", 1) + " $FC"
}
