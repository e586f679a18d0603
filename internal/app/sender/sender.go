// Package sender содержит приложение отправщика уведомлений: читает события
// из очереди и доставляет их пользователям через шлюз сообщений.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/brightmoyo/wabot-billing/internal/config"
	"github.com/brightmoyo/wabot-billing/internal/gateway"
	"github.com/brightmoyo/wabot-billing/internal/rabbitmq"
	"github.com/brightmoyo/wabot-billing/internal/services/notifier"
)

type App struct {
	conn            *amqp.Connection
	ch              *amqp.Channel
	notifierService *notifier.Service
	logger          *slog.Logger
}

func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		conn.Close()
		return nil, err
	}

	transport := gateway.NewClient(cfg.Gateway.SendURL, cfg.Gateway.Token, cfg.Gateway.Timeout)
	notifierService := notifier.New(transport, logger)

	return &App{
		conn:            conn,
		ch:              ch,
		notifierService: notifierService,
		logger:          logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, "notifications.expiry", a.notifierService.HandleExpiryNotice)
	if err != nil {
		a.logger.Error("failed to start notifications.expiry consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
