// Package entitlement реализует хранилище прав пользователей: счётчики
// загрузок, демо-доступ и состояние подписки. Хранилище единолично решает,
// может ли пользователь выполнить учитываемое действие прямо сейчас.
//
// Источник истины — память процесса. Записи в БД выполняются насквозь
// при каждой мутации; отказ записи логируется, а следующая мутация той же
// записи повторяет её целиком. Вызывающий код ошибок персистенции не видит.
package entitlement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brightmoyo/wabot-billing/internal/lib/sl"
	"github.com/brightmoyo/wabot-billing/internal/metrics"
	"github.com/brightmoyo/wabot-billing/internal/models"
)

const (
	// FreeTierLimit потолок бесплатных загрузок.
	FreeTierLimit = 4
	// DemoUseLimit максимум выдач демо-доступа на пользователя.
	DemoUseLimit = 2
	// HistoryLimit глубина истории активаций, старые записи вытесняются.
	HistoryLimit = 10
	// CategoryWindow скользящее окно сброса счётчиков по категориям.
	CategoryWindow = 13 * time.Hour
)

// AccountRepository персистентное хранилище учётных записей.
type AccountRepository interface {
	// ListAccounts возвращает все учётные записи вместе с историей.
	ListAccounts(ctx context.Context) ([]*models.UserAccount, error)
	// UpsertAccount создаёт или обновляет учётную запись.
	UpsertAccount(ctx context.Context, acc *models.UserAccount) error
	// AppendHistory добавляет запись истории и обрезает её до keep последних.
	AppendHistory(ctx context.Context, phone string, rec models.SubscriptionRecord, keep int) error
}

// Cache описывает методы для кэширования снимков учётных записей.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Store хранилище прав с построчной сериализацией мутаций:
// операции над одним пользователем выполняются под его мьютексом,
// операции над разными пользователями не упорядочены.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*models.UserAccount
	locks    map[string]*sync.Mutex

	repo  AccountRepository
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// Option настраивает Store при создании.
type Option func(*Store)

// WithClock подменяет источник времени, используется в тестах.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New создает хранилище. repo и cache могут быть nil: тогда хранилище
// работает только в памяти (режим тестов).
func New(repo AccountRepository, cache Cache, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		accounts: make(map[string]*models.UserAccount),
		locks:    make(map[string]*sync.Mutex),
		repo:     repo,
		cache:    cache,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load подтягивает все учётные записи из БД в память. Вызывается один раз
// при старте процесса-владельца.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, acc := range accounts {
		s.accounts[acc.PhoneNumber] = acc
	}
	s.mu.Unlock()
	s.log.Info("accounts loaded", slog.Int("count", len(accounts)))
	return nil
}

func (s *Store) userLock(phone string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[phone]
	if !ok {
		l = &sync.Mutex{}
		s.locks[phone] = l
	}
	return l
}

// getOrCreate возвращает живую запись, создавая её лениво.
// Вызывается под пользовательским мьютексом.
func (s *Store) getOrCreate(phone string) *models.UserAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[phone]
	if !ok {
		now := s.now()
		acc = &models.UserAccount{
			PhoneNumber: phone,
			Categories:  make(map[string]*models.CategoryCounter),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.accounts[phone] = acc
	}
	return acc
}

func snapshot(acc *models.UserAccount) models.UserAccount {
	out := *acc
	out.Categories = make(map[string]*models.CategoryCounter, len(acc.Categories))
	for k, v := range acc.Categories {
		c := *v
		out.Categories[k] = &c
	}
	out.History = append([]models.SubscriptionRecord(nil), acc.History...)
	return out
}

// GetOrCreate возвращает снимок учётной записи, создавая её при первом
// обращении. Никогда не завершается ошибкой.
func (s *Store) GetOrCreate(ctx context.Context, phone string) models.UserAccount {
	l := s.userLock(phone)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	_, known := s.accounts[phone]
	s.mu.RUnlock()

	acc := s.getOrCreate(phone)
	if !known {
		s.persist(ctx, snapshot(acc))
	}
	return snapshot(acc)
}

// RecordDownload учитывает загрузку: общий счётчик плюс счётчик категории
// со скользящим окном сброса.
func (s *Store) RecordDownload(ctx context.Context, phone, category string) {
	l := s.userLock(phone)
	l.Lock()
	defer l.Unlock()

	acc := s.getOrCreate(phone)
	now := s.now()
	acc.DownloadCount++
	if category != "" {
		c, ok := acc.Categories[category]
		if !ok || now.After(c.ResetAt) {
			c = &models.CategoryCounter{ResetAt: now.Add(CategoryWindow)}
			acc.Categories[category] = c
		}
		c.Used++
	}
	acc.UpdatedAt = now
	metrics.DownloadsTotal.Inc()
	s.persist(ctx, snapshot(acc))
}

// CanDownload отвечает, разрешена ли пользователю загрузка прямо сейчас.
//
// Порядок проверок фиксирован: активная подписка всегда замыкает учёт,
// затем демо-доступ, затем бесплатный лимит.
func (s *Store) CanDownload(phone string) bool {
	l := s.userLock(phone)
	l.Lock()
	defer l.Unlock()

	acc := s.getOrCreate(phone)
	now := s.now()

	if acc.HasActiveSubscription(now) {
		return true
	}
	// счётчик выдач ограничивает только GrantDemoWindow, здесь решает окно
	if acc.DemoExpiry != nil && acc.DemoExpiry.After(now) {
		return true
	}
	return acc.DownloadCount < FreeTierLimit
}

// DownloadsLeft возвращает остаток бесплатных загрузок и признак
// безлимита при активной подписке.
func (s *Store) DownloadsLeft(phone string) (int, bool) {
	l := s.userLock(phone)
	l.Lock()
	defer l.Unlock()

	acc := s.getOrCreate(phone)
	if acc.HasActiveSubscription(s.now()) {
		return 0, true
	}
	left := FreeTierLimit - acc.DownloadCount
	if left < 0 {
		left = 0
	}
	return left, false
}

// Activate включает подписку: expiry = now + durationDays, попутно
// открывает dating-функцию (осознанная связка продуктов) и добавляет
// запись истории, обрезая её до HistoryLimit последних.
func (s *Store) Activate(ctx context.Context, phone string, durationDays int, planType string, pricePaid float64, currency string) models.UserAccount {
	l := s.userLock(phone)
	l.Lock()
	defer l.Unlock()

	acc := s.getOrCreate(phone)
	now := s.now()
	expiry := now.AddDate(0, 0, durationDays)

	acc.SubscriptionActive = true
	acc.SubscriptionType = planType
	acc.SubscriptionExpiry = &expiry
	acc.DatingEnabled = true
	acc.UpdatedAt = now

	rec := models.SubscriptionRecord{
		Plan:         planType,
		DurationDays: durationDays,
		ActivatedAt:  now,
		Expiry:       expiry,
		PricePaid:    pricePaid,
		Currency:     currency,
	}
	acc.History = append(acc.History, rec)
	if len(acc.History) > HistoryLimit {
		acc.History = acc.History[len(acc.History)-HistoryLimit:]
	}

	metrics.ActivationsTotal.WithLabelValues(planType).Inc()
	s.persist(ctx, snapshot(acc))
	if s.repo != nil {
		if err := s.repo.AppendHistory(ctx, phone, rec, HistoryLimit); err != nil {
			s.log.Error("failed to persist history entry", sl.Err(err),
				slog.String("user", phone))
		}
	}
	s.log.Info("subscription activated", slog.String("user", phone),
		slog.String("plan", planType), slog.Time("expiry", expiry))
	return snapshot(acc)
}

// GrantDemoWindow включает демо-окно и увеличивает счётчик выдач.
// Проверка лимита выдач остаётся за оркестратором.
func (s *Store) GrantDemoWindow(ctx context.Context, phone string, duration time.Duration) models.UserAccount {
	l := s.userLock(phone)
	l.Lock()
	defer l.Unlock()

	acc := s.getOrCreate(phone)
	now := s.now()
	expiry := now.Add(duration)
	acc.DemoUses++
	acc.DemoExpiry = &expiry
	acc.SubscriptionType = models.SubscriptionDemo
	acc.UpdatedAt = now

	metrics.DemoGrantsTotal.Inc()
	s.persist(ctx, snapshot(acc))
	return snapshot(acc)
}

// DemoUses возвращает число уже выданных демо-доступов.
func (s *Store) DemoUses(phone string) int {
	l := s.userLock(phone)
	l.Lock()
	defer l.Unlock()
	return s.getOrCreate(phone).DemoUses
}

// SweepExpired помечает истёкшие подписки: active=false и sentinel-тип
// "expired". Записи не удаляются, повторный запуск без сдвига времени
// ничего не меняет. Возвращает число помеченных записей.
func (s *Store) SweepExpired(ctx context.Context) int {
	now := s.now()

	s.mu.RLock()
	candidates := make([]string, 0)
	for phone, acc := range s.accounts {
		if acc.SubscriptionActive && acc.SubscriptionExpiry != nil && acc.SubscriptionExpiry.Before(now) {
			candidates = append(candidates, phone)
		}
	}
	s.mu.RUnlock()

	swept := 0
	for _, phone := range candidates {
		l := s.userLock(phone)
		l.Lock()
		acc := s.getOrCreate(phone)
		if acc.SubscriptionActive && acc.SubscriptionExpiry != nil && acc.SubscriptionExpiry.Before(now) {
			acc.SubscriptionActive = false
			acc.SubscriptionType = models.SubscriptionExpired
			acc.UpdatedAt = now
			s.persist(ctx, snapshot(acc))
			swept++
			metrics.ExpiredSweptTotal.Inc()
		}
		l.Unlock()
	}

	if swept > 0 {
		s.log.Info("expired subscriptions swept", slog.Int("count", swept))
	}
	return swept
}

// persist пишет снимок записи в кеш и БД. Отказ записи не поднимается
// наверх: каждая мутация записывает полное состояние, поэтому следующая
// мутация этой же записи повторит неудавшуюся запись целиком.
func (s *Store) persist(ctx context.Context, snap models.UserAccount) {
	if s.cache != nil {
		if err := s.cache.Set("account:"+snap.PhoneNumber, snap, time.Hour); err != nil {
			s.log.Warn("failed to cache account", sl.Err(err),
				slog.String("user", snap.PhoneNumber))
		}
	}
	if s.repo == nil {
		return
	}
	if err := s.repo.UpsertAccount(ctx, &snap); err != nil {
		s.log.Error("failed to persist account, keeping in-memory state",
			sl.Err(err), slog.String("user", snap.PhoneNumber))
	}
}
