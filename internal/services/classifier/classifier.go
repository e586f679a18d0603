// Package classifier выделяет из свободного текста упоминания способа
// оплаты и тарифа. Узкий интерфейс позволяет заменить ключевые слова
// внешним классификатором, не трогая оркестрацию.
package classifier

import "strings"

// Detection результат разбора текста. Пустое поле — признак не найден.
type Detection struct {
	Method string
	Plan   string
}

// Classifier разбирает свободный текст сообщения.
type Classifier interface {
	Classify(text string) Detection
}

// Keyword простейшая реализация на ключевых словах, повторяющая
// поведение бота: "paid", "ecocash", "$" и названия тарифов.
type Keyword struct{}

// NewKeyword создает классификатор по ключевым словам.
func NewKeyword() *Keyword {
	return &Keyword{}
}

var methodKeywords = map[string][]string{
	"ecocash":  {"ecocash"},
	"onemoney": {"onemoney", "one money"},
	"cash":     {"paid", "sent", "payment", "$", "send"},
}

var planKeywords = map[string][]string{
	"weekly":   {"weekly", "1 week", "one week"},
	"biweekly": {"biweekly", "2 weeks", "two weeks"},
	"monthly":  {"monthly", "1 month", "one month"},
}

// Classify ищет первое совпадение по каждому признаку.
func (k *Keyword) Classify(text string) Detection {
	lower := strings.ToLower(text)
	var d Detection
	for method, words := range methodKeywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				d.Method = method
				break
			}
		}
		if d.Method != "" {
			break
		}
	}
	// ecocash/onemoney точнее, чем общие слова оплаты
	for _, specific := range []string{"ecocash", "onemoney"} {
		for _, w := range methodKeywords[specific] {
			if strings.Contains(lower, w) {
				d.Method = specific
			}
		}
	}
	for plan, words := range planKeywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				d.Plan = plan
				break
			}
		}
		if d.Plan != "" {
			break
		}
	}
	return d
}
