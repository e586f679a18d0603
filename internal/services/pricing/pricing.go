// Package pricing реализует чистый расчёт цены тарифа: базовая цена в USD,
// скидка уровня тарифа, административная надбавочная скидка и пересчёт
// во вторичную валюту по внешнему курсу. Пакет не выполняет I/O.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/brightmoyo/wabot-billing/internal/models"
)

// ErrInvalidPlan возвращается при неизвестном ключе тарифа.
// Это ошибка вызывающего кода, а не пользовательский ввод.
var ErrInvalidPlan = errors.New("invalid plan key")

// RateSource отдаёт текущий курс вторичной валюты к USD.
// Источник курса — внешний коллаборатор, движок его не опрашивает сам.
type RateSource interface {
	CurrentRate() float64
}

type override struct {
	price         *float64
	extraDiscount float64
}

// Engine каталог тарифов с расчётом цены.
// Административные override-ы живут только в памяти процесса
// и сбрасываются при рестарте.
type Engine struct {
	mu        sync.RWMutex
	plans     map[string]models.Plan
	overrides map[string]override
	rates     RateSource
}

// DefaultCatalog каталог тарифов бота: чем дольше срок, тем больше скидка.
func DefaultCatalog() []models.Plan {
	return []models.Plan{
		{Key: "weekly", BasePriceUSD: 0.50, DurationDays: 7, TierDiscount: 0},
		{Key: "biweekly", BasePriceUSD: 0.75, DurationDays: 14, TierDiscount: 0.05},
		{Key: "monthly", BasePriceUSD: 1.50, DurationDays: 30, TierDiscount: 0.10},
	}
}

// NewEngine создает движок с переданным каталогом и источником курса.
func NewEngine(plans []models.Plan, rates RateSource) *Engine {
	m := make(map[string]models.Plan, len(plans))
	for _, p := range plans {
		m[p.Key] = p
	}
	return &Engine{
		plans:     m,
		overrides: make(map[string]override),
		rates:     rates,
	}
}

// Plan возвращает запись каталога по ключу.
func (e *Engine) Plan(planKey string) (models.Plan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.plans[planKey]
	if !ok {
		return models.Plan{}, fmt.Errorf("%w: %q", ErrInvalidPlan, planKey)
	}
	return p, nil
}

// Plans возвращает каталог целиком.
func (e *Engine) Plans() []models.Plan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	result := make([]models.Plan, 0, len(e.plans))
	for _, p := range e.plans {
		result = append(result, p)
	}
	return result
}

// Price считает цену тарифа в запрошенной валюте.
//
// discounted = base * (1 - tierDiscount); административная скидка
// применяется мультипликативно поверх скидки уровня, не заменяя её.
// Для вторичной валюты сумма умножается на текущий курс.
func (e *Engine) Price(planKey, currency string) (models.PriceQuote, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.plans[planKey]
	if !ok {
		return models.PriceQuote{}, fmt.Errorf("%w: %q", ErrInvalidPlan, planKey)
	}

	base := p.BasePriceUSD
	amount := base * (1 - p.TierDiscount)
	totalDiscount := p.TierDiscount

	if ov, found := e.overrides[planKey]; found {
		if ov.price != nil {
			base = *ov.price
			amount = base * (1 - p.TierDiscount)
		}
		if ov.extraDiscount > 0 {
			amount *= 1 - ov.extraDiscount
			totalDiscount = 1 - (1-p.TierDiscount)*(1-ov.extraDiscount)
		}
	}

	quote := models.PriceQuote{
		PlanKey:         planKey,
		Currency:        currency,
		Amount:          round2(amount),
		OriginalAmount:  round2(base),
		DiscountPercent: round2(totalDiscount * 100),
		DiscountAmount:  round2(base - amount),
	}

	if currency == models.CurrencyZWG {
		rate := e.rates.CurrentRate()
		quote.ExchangeRate = rate
		quote.Amount = round2(amount * rate)
		quote.OriginalAmount = round2(base * rate)
		quote.DiscountAmount = round2((base - amount) * rate)
	}

	return quote, nil
}

// SetOverride устанавливает административный override цены и/или
// дополнительной скидки для тарифа. Передача nil и 0 снимает override.
func (e *Engine) SetOverride(planKey string, price *float64, extraDiscount float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.plans[planKey]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPlan, planKey)
	}
	if price == nil && extraDiscount == 0 {
		delete(e.overrides, planKey)
		return nil
	}
	e.overrides[planKey] = override{price: price, extraDiscount: extraDiscount}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
