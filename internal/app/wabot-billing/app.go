// Package wabotbilling собирает основной процесс биллинга: хранилище прав,
// прайсинг, реестр кодов, маршрутизатор бота и HTTP сервер админки.
package wabotbilling

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/robfig/cron/v3"

	"github.com/brightmoyo/wabot-billing/internal/bot"
	"github.com/brightmoyo/wabot-billing/internal/cache"
	"github.com/brightmoyo/wabot-billing/internal/config"
	"github.com/brightmoyo/wabot-billing/internal/lib/jwt"
	"github.com/brightmoyo/wabot-billing/internal/migrations"
	"github.com/brightmoyo/wabot-billing/internal/services/adminauth"
	"github.com/brightmoyo/wabot-billing/internal/services/classifier"
	"github.com/brightmoyo/wabot-billing/internal/services/entitlement"
	"github.com/brightmoyo/wabot-billing/internal/services/lifecycle"
	"github.com/brightmoyo/wabot-billing/internal/services/pricing"
	"github.com/brightmoyo/wabot-billing/internal/services/verification"
	"github.com/brightmoyo/wabot-billing/internal/storage/repository"
)

// App основной процесс биллинга.
type App struct {
	server     *http.Server
	logger     *slog.Logger
	db         *repository.Storage
	store      *entitlement.Store
	registry   *verification.Registry
	sweep      time.Duration
	rateClient *pricing.RateClient
	rateHolder *pricing.RateHolder
	rateSpec   string
	cron       *cron.Cron
}

// New собирает все зависимости процесса.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rateHolder := pricing.NewRateHolder(cfg.Exchange.DefaultRate, cacheRedis, logger)
	var rateClient *pricing.RateClient
	if cfg.Exchange.RateURL != "" {
		rateClient = pricing.NewRateClient(cfg.Exchange.RateURL, cfg.Exchange.HTTPTimeout)
	}
	engine := pricing.NewEngine(pricing.DefaultCatalog(), rateHolder)

	store := entitlement.New(db, cacheRedis, logger)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}

	registry := verification.New(logger)
	lifecycleService := lifecycle.New(store, registry, engine, db, logger)
	router := bot.New(logger, lifecycleService, store, engine, classifier.NewKeyword())

	maker := jwt.NewJWTMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL)
	authService := adminauth.New(cfg.Admin.Username, cfg.Admin.PasswordHash, maker, logger)

	chiRouter := chi.NewRouter()
	RegisterRoutes(chiRouter, logger, RouteDeps{
		Maker:      maker,
		Auth:       authService,
		Lifecycle:  lifecycleService,
		Store:      store,
		Engine:     engine,
		RateHolder: rateHolder,
		Bot:        router,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      chiRouter,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:     srv,
		logger:     logger,
		db:         db,
		store:      store,
		registry:   registry,
		sweep:      cfg.SweepInterval,
		rateClient: rateClient,
		rateHolder: rateHolder,
		rateSpec:   cfg.Exchange.RefreshSpec,
	}, nil
}

// Run запускает HTTP сервер и фоновые тикеры процесса-владельца состояния:
// пометку истекших подписок и чистку реестра кодов.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	go a.runSweepers(ctx)
	if err := a.startRateRefresh(ctx); err != nil {
		return err
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if a.cron != nil {
			<-a.cron.Stop().Done()
		}
		a.db.DB.Close()
		return err
	}
}

// startRateRefresh запускает периодическое обновление курса ZWG.
// Без настроенного источника курс обновляется только админкой.
func (a *App) startRateRefresh(ctx context.Context) error {
	if a.rateClient == nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(a.rateSpec, func() {
		pricing.Refresh(ctx, a.rateClient, a.rateHolder, a.logger)
	}); err != nil {
		return err
	}
	go pricing.Refresh(ctx, a.rateClient, a.rateHolder, a.logger)
	c.Start()
	a.cron = c
	return nil
}

func (a *App) runSweepers(ctx context.Context) {
	subTicker := time.NewTicker(a.sweep)
	codeTicker := time.NewTicker(time.Minute)
	defer subTicker.Stop()
	defer codeTicker.Stop()

	for {
		select {
		case <-subTicker.C:
			a.store.SweepExpired(ctx)
		case <-codeTicker.C:
			a.registry.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
