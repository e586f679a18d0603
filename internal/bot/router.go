// Package bot разбирает входящие сообщения чата: командный синтаксис
// с префиксом "!" и свободный текст, который прогоняется через
// классификатор упоминаний оплаты.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/brightmoyo/wabot-billing/internal/lib/sl"
	"github.com/brightmoyo/wabot-billing/internal/models"
	"github.com/brightmoyo/wabot-billing/internal/services/classifier"
	"github.com/brightmoyo/wabot-billing/internal/services/lifecycle"
)

// Subscriptions сценарии подписки, доступные из чата.
type Subscriptions interface {
	RequestSubscription(ctx context.Context, phone, planKey, method, currency string) (*lifecycle.Instructions, error)
	ConfirmPayment(ctx context.Context, phone, submittedCode string) lifecycle.Outcome
	GrantDemo(ctx context.Context, phone string) (models.UserAccount, error)
	MarkPaymentPending(ctx context.Context, phone string)
}

// Entitlements срез хранилища прав для команды статистики.
type Entitlements interface {
	GetOrCreate(ctx context.Context, phone string) models.UserAccount
	DownloadsLeft(phone string) (int, bool)
}

// Pricer каталог тарифов для команды !price.
type Pricer interface {
	Plans() []models.Plan
	Price(planKey, currency string) (models.PriceQuote, error)
}

var codePattern = regexp.MustCompile(`^\d{6}$`)

// Router маршрутизирует сообщения на команды и свободный текст.
type Router struct {
	log        *slog.Logger
	subs       Subscriptions
	store      Entitlements
	pricer     Pricer
	classifier classifier.Classifier
}

// New создает маршрутизатор.
func New(log *slog.Logger, subs Subscriptions, store Entitlements, pricer Pricer, cls classifier.Classifier) *Router {
	return &Router{
		log:        log,
		subs:       subs,
		store:      store,
		pricer:     pricer,
		classifier: cls,
	}
}

func reply(to, text string) []models.OutgoingMessage {
	return []models.OutgoingMessage{{RecipientID: to, Text: text}}
}

// Handle обрабатывает одно входящее сообщение и возвращает ответы.
// Неизвестная команда получает подсказку, пустой текст игнорируется.
func (r *Router) Handle(ctx context.Context, msg models.IncomingMessage) []models.OutgoingMessage {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	if !strings.HasPrefix(text, "!") {
		return r.handleFreeText(ctx, msg.SenderID, text)
	}

	fields := strings.Fields(text)
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case "!subscribe":
		return r.handleSubscribe(ctx, msg.SenderID, args)
	case "!confirm":
		return r.handleConfirm(ctx, msg.SenderID, args)
	case "!demo":
		return r.handleDemo(ctx, msg.SenderID)
	case "!mystats":
		return r.handleStats(ctx, msg.SenderID)
	case "!price":
		return r.handlePrice(msg.SenderID)
	case "!help":
		return reply(msg.SenderID, helpText)
	default:
		return reply(msg.SenderID, "Unknown command. Send !help to see what I understand.")
	}
}

func (r *Router) handleSubscribe(ctx context.Context, sender string, args []string) []models.OutgoingMessage {
	if len(args) == 0 {
		return reply(sender, "Which plan? Try: !subscribe weekly | biweekly | monthly")
	}
	planKey := strings.ToLower(args[0])
	currency := models.CurrencyUSD
	if len(args) > 1 {
		currency = strings.ToUpper(args[1])
	}

	instr, err := r.subs.RequestSubscription(ctx, sender, planKey, "", currency)
	if err != nil {
		r.log.Info("subscribe rejected", slog.String("user", sender),
			slog.String("plan", planKey), sl.Err(err))
		return reply(sender, "I don't know that plan. Send !price to see the catalog.")
	}
	return reply(sender, instr.Text)
}

func (r *Router) handleConfirm(ctx context.Context, sender string, args []string) []models.OutgoingMessage {
	if len(args) == 0 || !codePattern.MatchString(args[0]) {
		return reply(sender, "Send the 6-digit code you received: !confirm 123456")
	}

	outcome := r.subs.ConfirmPayment(ctx, sender, args[0])
	if !outcome.Activated {
		return reply(sender, rejectionText(outcome.Reason))
	}
	return reply(sender, fmt.Sprintf(
		"✅ Payment confirmed! Your %s subscription is active until %s. Enjoy!",
		outcome.Plan, outcome.Expiry.Format("02 Jan 2006")))
}

func (r *Router) handleDemo(ctx context.Context, sender string) []models.OutgoingMessage {
	acc, err := r.subs.GrantDemo(ctx, sender)
	if err != nil {
		if errors.Is(err, lifecycle.ErrDemoExhausted) {
			return reply(sender, "You've used both of your demo passes. Send !subscribe to keep going.")
		}
		r.log.Error("demo grant failed", slog.String("user", sender), sl.Err(err))
		return reply(sender, "Something went wrong, please try again later.")
	}
	return reply(sender, fmt.Sprintf(
		"🎁 Demo access until %s. Demo passes used: %d of 2.",
		acc.DemoExpiry.Format("02 Jan 2006"), acc.DemoUses))
}

func (r *Router) handleStats(ctx context.Context, sender string) []models.OutgoingMessage {
	acc := r.store.GetOrCreate(ctx, sender)
	left, unlimited := r.store.DownloadsLeft(sender)

	var b strings.Builder
	b.WriteString("📊 Your stats\n")
	fmt.Fprintf(&b, "Downloads: %d\n", acc.DownloadCount)
	if unlimited {
		fmt.Fprintf(&b, "Subscription: %s, active until %s\n",
			acc.SubscriptionType, acc.SubscriptionExpiry.Format("02 Jan 2006"))
	} else {
		fmt.Fprintf(&b, "Free downloads left: %d\n", left)
	}
	if acc.DemoExpiry != nil && acc.DemoExpiry.After(time.Now()) {
		fmt.Fprintf(&b, "Demo active until %s\n", acc.DemoExpiry.Format("02 Jan 2006"))
	}
	if n := len(acc.History); n > 0 {
		last := acc.History[n-1]
		fmt.Fprintf(&b, "Last plan: %s (%s)\n", last.Plan, last.ActivatedAt.Format("02 Jan 2006"))
	}
	return reply(sender, b.String())
}

func (r *Router) handlePrice(sender string) []models.OutgoingMessage {
	var b strings.Builder
	b.WriteString("💎 Plans\n")
	for _, p := range r.pricer.Plans() {
		quote, err := r.pricer.Price(p.Key, models.CurrencyUSD)
		if err != nil {
			continue
		}
		if quote.DiscountPercent > 0 {
			// DiscountPercent уже в процентах
			fmt.Fprintf(&b, "%s — %.2f USD for %d days (%.0f%% off)\n",
				p.Key, quote.Amount, p.DurationDays, quote.DiscountPercent)
		} else {
			fmt.Fprintf(&b, "%s — %.2f USD for %d days\n", p.Key, quote.Amount, p.DurationDays)
		}
	}
	b.WriteString("\nSend !subscribe <plan> to get payment instructions.")
	return reply(sender, b.String())
}

// handleFreeText пропускает текст через классификатор: упоминание оплаты
// переводит живые попытки в pending_verification, упоминание тарифа
// запускает сценарий подписки.
func (r *Router) handleFreeText(ctx context.Context, sender, text string) []models.OutgoingMessage {
	d := r.classifier.Classify(text)

	if d.Plan != "" {
		instr, err := r.subs.RequestSubscription(ctx, sender, d.Plan, d.Method, models.CurrencyUSD)
		if err != nil {
			r.log.Error("free-text subscribe failed", slog.String("user", sender), sl.Err(err))
			return nil
		}
		return reply(sender, instr.Text)
	}

	if d.Method != "" {
		r.subs.MarkPaymentPending(ctx, sender)
		return reply(sender,
			"Thanks! We're checking your payment. Reply with !confirm <code> once you have your 6-digit code.")
	}

	return nil
}

func rejectionText(reason string) string {
	switch reason {
	case "attempts_exhausted":
		return "❌ Too many wrong codes. Send !subscribe to request a fresh one."
	case "expired_or_missing":
		return "❌ That code expired or was never issued. Send !subscribe to get a new one."
	case "plan_unavailable":
		return "❌ Your code checks out, but that plan is no longer offered. Send !price to pick a current one."
	default:
		return "❌ Wrong code, try again."
	}
}

const helpText = `🤖 Commands
!subscribe <plan> — get payment instructions (weekly, biweekly, monthly)
!confirm <code> — confirm your payment with the 6-digit code
!demo — try a 7-day demo (2 passes per user)
!mystats — your downloads and subscription
!price — plan catalog
!help — this message`
