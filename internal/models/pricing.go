package models

// Валюты, в которых бот принимает оплату. Базовые цены каталога заданы
// в USD, вторичная валюта пересчитывается по текущему курсу.
const (
	CurrencyUSD = "USD"
	CurrencyZWG = "ZWG"
)

// Plan статическая запись каталога тарифов.
type Plan struct {
	Key          string  `json:"key"`
	BasePriceUSD float64 `json:"base_price_usd"`
	DurationDays int     `json:"duration_days"`
	TierDiscount float64 `json:"tier_discount"` // доля, напр. 0.10 для 10%
}

// PriceQuote результат расчёта цены тарифа в запрошенной валюте.
type PriceQuote struct {
	PlanKey         string  `json:"plan_key"`
	Currency        string  `json:"currency"`
	Amount          float64 `json:"amount"`
	OriginalAmount  float64 `json:"original_amount"`
	DiscountPercent float64 `json:"discount_percent"`
	DiscountAmount  float64 `json:"discount_amount"`
	ExchangeRate    float64 `json:"exchange_rate,omitempty"` // 0 для USD
}
