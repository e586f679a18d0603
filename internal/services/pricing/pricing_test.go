package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightmoyo/wabot-billing/internal/models"
)

type fixedRate struct {
	rate float64
}

func (f fixedRate) CurrentRate() float64 { return f.rate }

func TestEngine_Price_USD(t *testing.T) {
	engine := NewEngine(DefaultCatalog(), fixedRate{rate: 26.5})

	tests := []struct {
		name         string
		planKey      string
		wantAmount   float64
		wantOriginal float64
		wantDiscount float64
	}{
		{
			name:         "weekly has no discount",
			planKey:      "weekly",
			wantAmount:   0.50,
			wantOriginal: 0.50,
			wantDiscount: 0,
		},
		{
			name:         "biweekly gets 5 percent off",
			planKey:      "biweekly",
			wantAmount:   0.75 * 0.95,
			wantOriginal: 0.75,
			wantDiscount: 5,
		},
		{
			name:         "monthly gets 10 percent off",
			planKey:      "monthly",
			wantAmount:   1.50 * 0.90,
			wantOriginal: 1.50,
			wantDiscount: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := engine.Price(tt.planKey, models.CurrencyUSD)
			require.NoError(t, err)

			assert.Equal(t, tt.planKey, quote.PlanKey)
			assert.Equal(t, models.CurrencyUSD, quote.Currency)
			assert.InDelta(t, tt.wantAmount, quote.Amount, 0.01)
			assert.InDelta(t, tt.wantOriginal, quote.OriginalAmount, 0.01)
			assert.InDelta(t, tt.wantDiscount, quote.DiscountPercent, 0.01)
			assert.InDelta(t, tt.wantOriginal-tt.wantAmount, quote.DiscountAmount, 0.01)
		})
	}
}

func TestEngine_Price_ZWG(t *testing.T) {
	engine := NewEngine(DefaultCatalog(), fixedRate{rate: 26.5})

	quote, err := engine.Price("weekly", models.CurrencyZWG)
	require.NoError(t, err)

	assert.Equal(t, 26.5, quote.ExchangeRate)
	assert.InDelta(t, 0.50*26.5, quote.Amount, 0.01)
	assert.InDelta(t, 0.50*26.5, quote.OriginalAmount, 0.01)
}

func TestEngine_Price_UnknownPlan(t *testing.T) {
	engine := NewEngine(DefaultCatalog(), fixedRate{rate: 26.5})

	_, err := engine.Price("lifetime", models.CurrencyUSD)
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = engine.Plan("lifetime")
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestEngine_SetOverride(t *testing.T) {
	engine := NewEngine(DefaultCatalog(), fixedRate{rate: 26.5})

	t.Run("price override keeps tier discount", func(t *testing.T) {
		price := 2.00
		require.NoError(t, engine.SetOverride("monthly", &price, 0))

		quote, err := engine.Price("monthly", models.CurrencyUSD)
		require.NoError(t, err)
		assert.InDelta(t, 2.00*0.90, quote.Amount, 0.01)
		assert.InDelta(t, 2.00, quote.OriginalAmount, 0.01)
	})

	t.Run("extra discount stacks multiplicatively", func(t *testing.T) {
		require.NoError(t, engine.SetOverride("monthly", nil, 0.20))

		quote, err := engine.Price("monthly", models.CurrencyUSD)
		require.NoError(t, err)
		assert.InDelta(t, 1.50*0.90*0.80, quote.Amount, 0.01)
		// 1 - 0.9*0.8 = 28%
		assert.InDelta(t, 28, quote.DiscountPercent, 0.01)
	})

	t.Run("nil price and zero discount clears override", func(t *testing.T) {
		require.NoError(t, engine.SetOverride("monthly", nil, 0))

		quote, err := engine.Price("monthly", models.CurrencyUSD)
		require.NoError(t, err)
		assert.InDelta(t, 1.50*0.90, quote.Amount, 0.01)
	})

	t.Run("unknown plan rejected", func(t *testing.T) {
		err := engine.SetOverride("lifetime", nil, 0.5)
		assert.ErrorIs(t, err, ErrInvalidPlan)
	})
}

func TestEngine_Plans(t *testing.T) {
	engine := NewEngine(DefaultCatalog(), fixedRate{rate: 26.5})
	assert.Len(t, engine.Plans(), 3)
}

func TestRateHolder_SetRate(t *testing.T) {
	holder := NewRateHolder(26.5, nil, newNoopLogger())

	assert.Equal(t, 26.5, holder.CurrentRate())

	require.NoError(t, holder.SetRate(30.1))
	assert.Equal(t, 30.1, holder.CurrentRate())

	assert.Error(t, holder.SetRate(0))
	assert.Error(t, holder.SetRate(-5))
	assert.Equal(t, 30.1, holder.CurrentRate())
}
