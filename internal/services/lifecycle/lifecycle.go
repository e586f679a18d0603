// Package lifecycle содержит оркестрацию подписочных сценариев: запрос
// подписки с выдачей кода, подтверждение оплаты, демо-доступ и
// административную активацию без кода.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brightmoyo/wabot-billing/internal/lib/sl"
	"github.com/brightmoyo/wabot-billing/internal/metrics"
	"github.com/brightmoyo/wabot-billing/internal/models"
	"github.com/brightmoyo/wabot-billing/internal/services/entitlement"
	"github.com/brightmoyo/wabot-billing/internal/services/verification"
)

// DemoDuration длительность демо-окна с ограниченной функциональностью.
const DemoDuration = 7 * 24 * time.Hour

// ReasonPlanUnavailable код был верным, но тариф попытки исчез из каталога.
// Попытка остаётся неподтверждённой и видна админу в pending.
const ReasonPlanUnavailable = "plan_unavailable"

// ErrDemoExhausted возвращается, когда пользователь исчерпал демо-доступы.
// Для пользователя это терминальное состояние.
var ErrDemoExhausted = errors.New("demo grants exhausted")

// Entitlements методы хранилища прав, нужные оркестратору.
type Entitlements interface {
	GetOrCreate(ctx context.Context, phone string) models.UserAccount
	Activate(ctx context.Context, phone string, durationDays int, planType string, pricePaid float64, currency string) models.UserAccount
	GrantDemoWindow(ctx context.Context, phone string, duration time.Duration) models.UserAccount
	DemoUses(phone string) int
}

// Codes реестр одноразовых кодов подтверждения.
type Codes interface {
	Issue(userID string) string
	Validate(userID, submittedCode string) verification.Result
}

// Pricer расчёт цены тарифа.
type Pricer interface {
	Price(planKey, currency string) (models.PriceQuote, error)
	Plan(planKey string) (models.Plan, error)
}

// PaymentRepository персистентное хранилище платёжных попыток.
type PaymentRepository interface {
	CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	UpdateAttemptStatus(ctx context.Context, uid, status string, verifiedAt *time.Time) error
	FindAttemptByCode(ctx context.Context, phone, code string) (*models.PaymentAttempt, error)
	ListPendingAttempts(ctx context.Context) ([]*models.PaymentAttempt, error)
	CountStats(ctx context.Context) (models.PaymentStats, error)
}

// Instructions ответ на запрос подписки: текст для пользователя,
// выданный код и рассчитанная цена.
type Instructions struct {
	Text       string            `json:"text"`
	Code       string            `json:"code"`
	Quote      models.PriceQuote `json:"quote"`
	AttemptUID string            `json:"attempt_uid"`
}

// Outcome результат подтверждения оплаты. При неудаче Reason содержит
// причину отказа валидации дословно.
type Outcome struct {
	Activated bool       `json:"activated"`
	Reason    string     `json:"reason,omitempty"`
	Plan      string     `json:"plan,omitempty"`
	Expiry    *time.Time `json:"expiry,omitempty"`
}

// Service связывает хранилище прав, реестр кодов и прайсинг в бизнес-сценарии.
type Service struct {
	entitlements Entitlements
	codes        Codes
	pricer       Pricer
	repo         PaymentRepository
	log          *slog.Logger

	mu       sync.Mutex
	attempts map[string]*models.PaymentAttempt // ключ phone+":"+code, живые попытки
}

// New создает оркестратор. repo может быть nil в тестах.
func New(entitlements Entitlements, codes Codes, pricer Pricer, repo PaymentRepository, log *slog.Logger) *Service {
	return &Service{
		entitlements: entitlements,
		codes:        codes,
		pricer:       pricer,
		repo:         repo,
		log:          log,
		attempts:     make(map[string]*models.PaymentAttempt),
	}
}

func attemptKey(phone, code string) string { return phone + ":" + code }

// RequestSubscription считает цену, выдает код подтверждения и создает
// платёжную попытку в статусе instructions_sent. Неизвестный тариф —
// ошибка вызывающего кода, она возвращается как error.
func (s *Service) RequestSubscription(ctx context.Context, phone, planKey, method, currency string) (*Instructions, error) {
	if currency == "" {
		currency = models.CurrencyUSD
	}
	quote, err := s.pricer.Price(planKey, currency)
	if err != nil {
		return nil, err
	}

	code := s.codes.Issue(phone)
	now := time.Now()
	attempt := &models.PaymentAttempt{
		UID:         uuid.NewString(),
		PhoneNumber: phone,
		Method:      method,
		Plan:        planKey,
		Amount:      quote.Amount,
		Currency:    currency,
		Code:        code,
		Status:      models.PaymentInstructionsSent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.attempts[attemptKey(phone, code)] = attempt
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.CreateAttempt(ctx, attempt); err != nil {
			s.log.Error("failed to persist payment attempt", sl.Err(err),
				slog.String("user", phone))
		}
	}

	text := fmt.Sprintf(
		"💎 %s plan: %.2f %s (you save %.2f %s)\n\n"+
			"Pay via EcoCash/OneMoney and reply with:\n!confirm %s\n\n"+
			"⏰ The code expires in 15 minutes.",
		planKey, quote.Amount, currency, quote.DiscountAmount, currency, code)

	s.log.Info("subscription requested", slog.String("user", phone),
		slog.String("plan", planKey), slog.String("currency", currency))

	return &Instructions{
		Text:       text,
		Code:       code,
		Quote:      quote,
		AttemptUID: attempt.UID,
	}, nil
}

// ConfirmPayment проверяет код и при успехе активирует подписку по тарифу
// платёжной попытки. Валидация кода атомарно изымает его из реестра, так что
// две гонящиеся попытки подтверждения не активируют подписку дважды.
func (s *Service) ConfirmPayment(ctx context.Context, phone, submittedCode string) Outcome {
	res := s.codes.Validate(phone, submittedCode)
	if !res.Valid {
		metrics.CodeValidationFailures.WithLabelValues(res.Reason).Inc()
		s.log.Info("payment confirmation rejected",
			slog.String("user", phone), slog.String("reason", res.Reason))
		return Outcome{Reason: res.Reason}
	}

	attempt := s.takeAttempt(ctx, phone, submittedCode)
	if attempt == nil {
		s.log.Error("valid code without matching payment attempt",
			slog.String("user", phone))
		return Outcome{Reason: verification.ReasonExpiredOrMissing}
	}

	plan, err := s.pricer.Plan(attempt.Plan)
	if err != nil {
		// тариф могли удалить из каталога между запросом и подтверждением;
		// попытку в verified не переводим
		s.log.Error("attempt references unknown plan", sl.Err(err),
			slog.String("plan", attempt.Plan))
		return Outcome{Reason: ReasonPlanUnavailable}
	}

	now := time.Now()
	attempt.Status = models.PaymentVerified
	attempt.VerifiedAt = &now
	attempt.UpdatedAt = now
	if s.repo != nil {
		if err := s.repo.UpdateAttemptStatus(ctx, attempt.UID, models.PaymentVerified, &now); err != nil {
			s.log.Error("failed to persist verified payment", sl.Err(err),
				slog.String("uid", attempt.UID))
		}
	}

	acc := s.entitlements.Activate(ctx, phone, plan.DurationDays, plan.Key, attempt.Amount, attempt.Currency)
	return Outcome{
		Activated: true,
		Plan:      plan.Key,
		Expiry:    acc.SubscriptionExpiry,
	}
}

// takeAttempt изымает живую попытку из памяти, при промахе (рестарт
// процесса) ищет её в БД.
func (s *Service) takeAttempt(ctx context.Context, phone, code string) *models.PaymentAttempt {
	s.mu.Lock()
	attempt, ok := s.attempts[attemptKey(phone, code)]
	if ok {
		delete(s.attempts, attemptKey(phone, code))
	}
	s.mu.Unlock()
	if ok {
		return attempt
	}
	if s.repo == nil {
		return nil
	}
	found, err := s.repo.FindAttemptByCode(ctx, phone, code)
	if err != nil {
		s.log.Error("failed to look up payment attempt", sl.Err(err),
			slog.String("user", phone))
		return nil
	}
	return found
}

// MarkPaymentPending переводит живые попытки пользователя в статус
// pending_verification. Вызывается при появлении текста, похожего на
// отчёт об оплате.
func (s *Service) MarkPaymentPending(ctx context.Context, phone string) {
	now := time.Now()
	s.mu.Lock()
	var pending []*models.PaymentAttempt
	for _, a := range s.attempts {
		if a.PhoneNumber == phone && a.Status == models.PaymentInstructionsSent {
			a.Status = models.PaymentPendingVerification
			a.UpdatedAt = now
			pending = append(pending, a)
		}
	}
	s.mu.Unlock()

	if s.repo == nil {
		return
	}
	for _, a := range pending {
		if err := s.repo.UpdateAttemptStatus(ctx, a.UID, models.PaymentPendingVerification, nil); err != nil {
			s.log.Error("failed to mark payment pending", sl.Err(err),
				slog.String("uid", a.UID))
		}
	}
}

// GrantDemo выдает демо-доступ на DemoDuration. После DemoUseLimit выдач
// возвращает ErrDemoExhausted.
func (s *Service) GrantDemo(ctx context.Context, phone string) (models.UserAccount, error) {
	if s.entitlements.DemoUses(phone) >= entitlement.DemoUseLimit {
		return models.UserAccount{}, ErrDemoExhausted
	}
	acc := s.entitlements.GrantDemoWindow(ctx, phone, DemoDuration)
	s.log.Info("demo granted", slog.String("user", phone),
		slog.Int("uses", acc.DemoUses))
	return acc, nil
}

// ForceActivate активирует подписку без кода подтверждения.
// Привилегированная операция админки.
func (s *Service) ForceActivate(ctx context.Context, phone, planKey string) (models.UserAccount, error) {
	plan, err := s.pricer.Plan(planKey)
	if err != nil {
		return models.UserAccount{}, err
	}
	acc := s.entitlements.Activate(ctx, phone, plan.DurationDays, plan.Key, 0, models.CurrencyUSD)
	s.log.Info("subscription force-activated", slog.String("user", phone),
		slog.String("plan", planKey))
	return acc, nil
}

// PendingPayments возвращает неподтверждённые платёжные попытки.
func (s *Service) PendingPayments(ctx context.Context) ([]*models.PaymentAttempt, error) {
	if s.repo == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		result := make([]*models.PaymentAttempt, 0, len(s.attempts))
		for _, a := range s.attempts {
			result = append(result, a)
		}
		return result, nil
	}
	return s.repo.ListPendingAttempts(ctx)
}

// PaymentStats возвращает сводку по платёжным попыткам.
func (s *Service) PaymentStats(ctx context.Context) (models.PaymentStats, error) {
	if s.repo == nil {
		return models.PaymentStats{}, nil
	}
	return s.repo.CountStats(ctx)
}
