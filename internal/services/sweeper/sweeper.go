// Package sweeper содержит фоновые задания планировщика: поиск подписок
// с приближающимся сроком истечения, публикация уведомлений в очередь и
// периодическое обновление курса ZWG.
package sweeper

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/streadway/amqp"

	"github.com/brightmoyo/wabot-billing/internal/lib/rabbitmq"
	"github.com/brightmoyo/wabot-billing/internal/lib/sl"
	"github.com/brightmoyo/wabot-billing/internal/models"
	"github.com/brightmoyo/wabot-billing/internal/services/pricing"
)

// ExpiryRepository поиск подписок, истекающих в заданном интервале.
type ExpiryRepository interface {
	FindExpiringWithin(ctx context.Context, interval string) ([]*models.ExpiryNotice, error)
}

// Service планировщик фоновых заданий.
type Service struct {
	repo       ExpiryRepository
	rateClient *pricing.RateClient
	rateHolder *pricing.RateHolder
	log        *slog.Logger
}

// New создает планировщик.
func New(repo ExpiryRepository, rateClient *pricing.RateClient, rateHolder *pricing.RateHolder, log *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		rateClient: rateClient,
		rateHolder: rateHolder,
		log:        log,
	}
}

// Start регистрирует задания и запускает cron. Возвращенный cron
// останавливается вызывающим кодом при завершении процесса.
func (s *Service) Start(ctx context.Context, ch *amqp.Channel, rateSpec string) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc("@every 12h", func() {
		s.PublishExpiringSoon(ctx, ch)
	}); err != nil {
		return nil, err
	}

	if s.rateClient != nil {
		if _, err := c.AddFunc(rateSpec, func() {
			pricing.Refresh(ctx, s.rateClient, s.rateHolder, s.log)
		}); err != nil {
			return nil, err
		}
	}

	// первый проход сразу, не дожидаясь расписания
	go s.PublishExpiringSoon(ctx, ch)
	if s.rateClient != nil {
		go pricing.Refresh(ctx, s.rateClient, s.rateHolder, s.log)
	}

	c.Start()
	return c, nil
}

// PublishExpiringSoon находит подписки, истекающие в ближайшие сутки,
// и публикует уведомления в очередь.
func (s *Service) PublishExpiringSoon(ctx context.Context, ch *amqp.Channel) {
	s.log.Info("starting service to find expiring subscriptions")
	notices, err := s.repo.FindExpiringWithin(ctx, "24 hours")
	if err != nil {
		s.log.Error("failed to find expiring subscriptions", sl.Err(err))
		return
	}
	if len(notices) == 0 {
		s.log.Info("no expiring subscriptions found")
		return
	}
	s.log.Info("found expiring subscriptions", "count", len(notices))
	for _, notice := range notices {
		if err := rabbitmq.PublishMessage(ch, "notifications", "expiry", notice); err != nil {
			s.log.Error("failed to publish message", sl.Err(err))
		}
	}
}
