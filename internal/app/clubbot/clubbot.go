package clubbot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/x10club/club-bot/internal/cache"
	"github.com/x10club/club-bot/internal/config"
	"github.com/x10club/club-bot/internal/cryptopay"
	"github.com/x10club/club-bot/internal/lib/jwt"
	"github.com/x10club/club-bot/internal/migrations"
	"github.com/x10club/club-bot/internal/rabbitmq"
	broadcast "github.com/x10club/club-bot/internal/services/broadcast"
	events "github.com/x10club/club-bot/internal/services/events"
	payment "github.com/x10club/club-bot/internal/services/payment"
	referral "github.com/x10club/club-bot/internal/services/referral"
	scheduler "github.com/x10club/club-bot/internal/services/scheduler"
	stats "github.com/x10club/club-bot/internal/services/stats"
	subscription "github.com/x10club/club-bot/internal/services/subscription"
	"github.com/x10club/club-bot/internal/storage/repository"
	"github.com/x10club/club-bot/internal/telegram"
)

// App держит все зависимости приложения и HTTP-сервер.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	db      *repository.Storage
	cache   *cache.Cache
	conn    *amqp.Connection
	channel *amqp.Channel

	subscriptions *subscription.SubscriptionService
	payments      *payment.Service
	invoices      *payment.CryptoService
	referrals     *referral.Service
	events        *events.Service
	stats         *stats.Service
	broadcasts    *broadcast.Service
	scheduler     *scheduler.SchedulerService
}

// New собирает приложение: подключает хранилище, кеш, RabbitMQ,
// Telegram и Crypto Pay, создает сервисы и настраивает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	tg, err := telegram.New(cfg.BotToken, cfg.GroupID)
	if err != nil {
		return nil, err
	}

	cryptoClient := cryptopay.New(cfg.APIToken, cfg.Testnet)

	conn, err := rabbitmq.Connect(cfg.AddressRabbit, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn)
	if err != nil {
		return nil, err
	}

	subscriptionService := subscription.NewSubscriptionService(db, cacheRedis, tg, logger)
	paymentService := payment.New(db, subscriptionService, tg,
		cfg.Payment, cfg.CryptoPay, cfg.AdminIDs, logger)
	invoiceService := payment.NewCryptoService(paymentService, db, cryptoClient, logger)
	referralService := referral.New(db, subscriptionService, tg,
		cfg.Referral, cfg.AdminIDs, tg.BotUsername(), logger)
	eventService := events.New(db, logger)
	statsService := stats.New(db, tg, cfg.AdminIDs, logger)
	broadcastService := broadcast.New(db, tg, ch, logger)
	schedulerService := scheduler.NewSchedulerService(subscriptionService, invoiceService,
		statsService, cfg.PollInterval, logger)

	app := &App{
		logger:        logger,
		db:            db,
		cache:         cacheRedis,
		conn:          conn,
		channel:       ch,
		subscriptions: subscriptionService,
		payments:      paymentService,
		invoices:      invoiceService,
		referrals:     referralService,
		events:        eventService,
		stats:         statsService,
		broadcasts:    broadcastService,
		scheduler:     schedulerService,
	}

	maker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := chi.NewRouter()
	app.RegisterRoutes(router, logger, maker, cfg.AdminUser, cfg.AdminPasswordHash)

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return app, nil
}

// Run запускает планировщик, потребителя рассылок и HTTP-сервер,
// блокируется до отмены контекста или ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start(ctx)

	go func() {
		if err := a.broadcasts.RunConsumer(ctx, a.channel); err != nil {
			a.logger.Error("broadcast consumer stopped", slog.Any("err", err))
		}
	}()

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

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if cerr := a.channel.Close(); cerr != nil {
			a.logger.Error("failed to close rabbitmq channel", slog.Any("err", cerr))
		}
		if cerr := a.conn.Close(); cerr != nil {
			a.logger.Error("failed to close rabbitmq connection", slog.Any("err", cerr))
		}
		if cerr := a.db.DB.Close(); cerr != nil {
			a.logger.Error("failed to close database", slog.Any("err", cerr))
		}
		return err
	}
}
