// Package notifier доставляет уведомления об истечении подписки: читает
// события из очереди и отправляет пользователю сообщение через шлюз.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/brightmoyo/wabot-billing/internal/lib/sl"
	"github.com/brightmoyo/wabot-billing/internal/models"
)

// Transport отправка исходящих сообщений. Реализация — HTTP клиент шлюза.
type Transport interface {
	Send(ctx context.Context, msg models.OutgoingMessage) error
}

// Service потребитель очереди уведомлений.
type Service struct {
	transport Transport
	log       *slog.Logger
}

// New создает сервис уведомлений.
func New(transport Transport, log *slog.Logger) *Service {
	return &Service{
		transport: transport,
		log:       log,
	}
}

// HandleExpiryNotice обрабатывает одно событие из очереди. Ошибка ведет
// к повторной доставке события брокером.
func (s *Service) HandleExpiryNotice(body []byte) error {
	var notice models.ExpiryNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	var text string
	switch notice.Kind {
	case "expired":
		text = fmt.Sprintf(
			"⚠️ Your %s subscription has expired. Send !subscribe to renew.",
			notice.Plan)
	default:
		text = fmt.Sprintf(
			"⏰ Your %s subscription expires on %s. Send !subscribe to renew in advance.",
			notice.Plan, notice.Expiry)
	}

	err := s.transport.Send(context.Background(), models.OutgoingMessage{
		RecipientID: notice.PhoneNumber,
		Text:        text,
	})
	if err != nil {
		s.log.Error("failed to send notification", sl.Err(err),
			slog.String("user", notice.PhoneNumber))
		return err
	}

	s.log.Info("notification sent", slog.String("user", notice.PhoneNumber),
		slog.String("kind", notice.Kind))
	return nil
}
