// Package scheduler содержит приложение планировщика уведомлений.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/streadway/amqp"

	"github.com/brightmoyo/wabot-billing/internal/config"
	"github.com/brightmoyo/wabot-billing/internal/rabbitmq"
	"github.com/brightmoyo/wabot-billing/internal/services/sweeper"
	"github.com/brightmoyo/wabot-billing/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	sweeperService *sweeper.Service
	conn           *amqp.Connection
	ch             *amqp.Channel
	cron           *cron.Cron
	rateSpec       string
	logger         *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	// курс валюты обновляет основной процесс, планировщику он не нужен
	sweeperService := sweeper.New(db, nil, nil, logger)

	return &App{
		sweeperService: sweeperService,
		conn:           conn,
		ch:             ch,
		rateSpec:       cfg.Exchange.RefreshSpec,
		logger:         logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает планировщик.
func (a *App) Run(ctx context.Context) error {
	c, err := a.sweeperService.Start(ctx, a.ch, a.rateSpec)
	if err != nil {
		return err
	}
	a.cron = c

	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")
	<-a.cron.Stop().Done()

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
