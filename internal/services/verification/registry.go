// Package verification реализует реестр одноразовых кодов подтверждения оплаты.
//
// Жизненный цикл кода: ISSUED -> CONSUMED | EXPIRED | ATTEMPTS_EXHAUSTED,
// все переходы терминальны. На пользователя живёт не больше одного кода,
// выдача нового заменяет предыдущий. Коды не сверяются на глобальную
// уникальность: вероятность коллизии шестизначного кода принята осознанно.
package verification

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Причины отказа валидации. Возвращаются пользователю дословно.
const (
	ReasonExpiredOrMissing  = "expired_or_missing"
	ReasonAttemptsExhausted = "attempts_exhausted"
	ReasonInvalidCode       = "invalid_code"
)

const (
	defaultTTL         = 15 * time.Minute
	defaultMaxAttempts = 3
)

// Result исход валидации кода.
type Result struct {
	Valid  bool
	Reason string
}

type liveCode struct {
	code     string
	issuedAt time.Time
	expiry   time.Time
	attempts int
}

// Registry потокобезопасный реестр живых кодов с инжектируемыми часами.
// Один экземпляр на процесс, создаётся при старте приложения.
type Registry struct {
	mu          sync.Mutex
	codes       map[string]*liveCode // ключ — номер телефона владельца
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	log         *slog.Logger
}

// Option настраивает Registry при создании.
type Option func(*Registry)

// WithClock подменяет источник времени, используется в тестах.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithTTL задаёт время жизни кода.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// New создает пустой реестр.
func New(log *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		codes:       make(map[string]*liveCode),
		ttl:         defaultTTL,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Issue выдает шестизначный код для пользователя, заменяя его прежний
// живой код, если тот ещё не использован.
func (r *Registry) Issue(userID string) string {
	code := fmt.Sprintf("%06d", rand.IntN(1000000))

	r.mu.Lock()
	now := r.now()
	r.codes[userID] = &liveCode{
		code:     code,
		issuedAt: now,
		expiry:   now.Add(r.ttl),
	}
	r.mu.Unlock()

	r.log.Info("verification code issued",
		slog.String("user", userID), slog.Time("expiry", now.Add(r.ttl)))
	return code
}

// Validate проверяет код пользователя. Неудачное сравнение увеличивает
// счётчик попыток до возврата; успешная проверка атомарно удаляет код
// из реестра, так что две гонящиеся валидации не пройдут обе.
func (r *Registry) Validate(userID, submittedCode string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	lc, ok := r.codes[userID]
	if !ok {
		return Result{Reason: ReasonExpiredOrMissing}
	}
	if r.now().After(lc.expiry) {
		delete(r.codes, userID)
		return Result{Reason: ReasonExpiredOrMissing}
	}
	if lc.attempts >= r.maxAttempts {
		return Result{Reason: ReasonAttemptsExhausted}
	}
	if lc.code != submittedCode {
		lc.attempts++
		if lc.attempts >= r.maxAttempts {
			return Result{Reason: ReasonAttemptsExhausted}
		}
		return Result{Reason: ReasonInvalidCode}
	}

	delete(r.codes, userID)
	return Result{Valid: true}
}

// Sweep удаляет просроченные коды и возвращает число удалённых.
// Безопасно вызывать по таймеру, пропуски и задержки допустимы.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for userID, lc := range r.codes {
		if now.After(lc.expiry) {
			delete(r.codes, userID)
			removed++
		}
	}
	return removed
}

// Live возвращает число живых кодов, используется в статистике.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}
