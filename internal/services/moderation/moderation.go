// Package moderation проверяет текст пользователя по списку запрещённых слов.
package moderation

import "strings"

// Filter чистый фильтр без состояния; безопасен для конкурентного использования.
type Filter struct {
	terms []string
}

// New создаёт фильтр. Пустые термины отбрасываются, остальные приводятся к нижнему регистру.
func New(terms []string) *Filter {
	f := &Filter{terms: make([]string, 0, len(terms))}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			f.terms = append(f.terms, t)
		}
	}
	return f
}

// Scan возвращает true, если текст содержит хотя бы один запрещённый термин.
// Сравнение регистронезависимое, по подстроке.
func (f *Filter) Scan(text string) bool {
	if len(f.terms) == 0 || text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, t := range f.terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
