package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/brightmoyo/wabot-billing/internal/lib/sl"
)

// rateCacheKey ключ, под которым последний известный курс лежит в кеше,
// чтобы переживать рестарты процесса.
const rateCacheKey = "exchange:rate:zwg"

// RateCache минимальный интерфейс кеша для сохранения последнего курса.
type RateCache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// RateHolder хранит последний известный курс вторичной валюты.
// Setter вызывается извне (админкой или планировщиком); чтение синхронное.
// При недоступности источника курс просто не обновляется.
type RateHolder struct {
	mu        sync.RWMutex
	rate      float64
	updatedAt time.Time
	cache     RateCache
	log       *slog.Logger
}

// NewRateHolder создает холдер с начальным курсом. Если в кеше сохранён
// более свежий курс с прошлого запуска, используется он.
func NewRateHolder(defaultRate float64, cache RateCache, log *slog.Logger) *RateHolder {
	h := &RateHolder{rate: defaultRate, updatedAt: time.Now(), cache: cache, log: log}
	if cache != nil {
		var cached float64
		found, err := cache.Get(rateCacheKey, &cached)
		if err != nil {
			log.Warn("failed to read cached exchange rate", sl.Err(err))
		} else if found && cached > 0 {
			h.rate = cached
		}
	}
	return h
}

// CurrentRate возвращает последний известный курс.
func (h *RateHolder) CurrentRate() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rate
}

// UpdatedAt возвращает момент последнего обновления курса.
func (h *RateHolder) UpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.updatedAt
}

// SetRate устанавливает новый курс. Нулевые и отрицательные значения
// отклоняются, прежний курс остаётся в силе.
func (h *RateHolder) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("exchange rate must be positive, got %v", rate)
	}
	h.mu.Lock()
	h.rate = rate
	h.updatedAt = time.Now()
	h.mu.Unlock()

	if h.cache != nil {
		if err := h.cache.Set(rateCacheKey, rate, 0); err != nil {
			h.log.Warn("failed to cache exchange rate", sl.Err(err))
		}
	}
	return nil
}

// RateClient опрашивает внешний HTTP-источник курса.
type RateClient struct {
	apiURL     string
	httpClient *http.Client
}

// NewRateClient создает клиент источника курса.
func NewRateClient(apiURL string, timeout time.Duration) *RateClient {
	return &RateClient{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rateResponse struct {
	Rate float64 `json:"rate"`
}

// FetchRate запрашивает текущий курс у источника.
func (c *RateClient) FetchRate(ctx context.Context) (float64, error) {
	const op = "pricing.FetchRate"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if body.Rate <= 0 {
		return 0, fmt.Errorf("%s: %w", op, errors.New("non-positive rate in response"))
	}
	return body.Rate, nil
}

// Refresh опрашивает источник и обновляет холдер. При ошибке источника
// холдер сохраняет последний известный курс, ошибка только логируется.
func Refresh(ctx context.Context, client *RateClient, holder *RateHolder, log *slog.Logger) {
	rate, err := client.FetchRate(ctx)
	if err != nil {
		log.Warn("exchange rate refresh failed, keeping last known rate",
			sl.Err(err), slog.Float64("rate", holder.CurrentRate()))
		return
	}
	if err := holder.SetRate(rate); err != nil {
		log.Warn("fetched exchange rate rejected", sl.Err(err))
		return
	}
	log.Info("exchange rate refreshed", slog.Float64("rate", rate))
}
