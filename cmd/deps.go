package cmd

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/auth"
	authPostgres "github.com/frahmantamala/order-assistant/internal/auth/postgres"
	"github.com/frahmantamala/order-assistant/internal/core/events"
	"github.com/frahmantamala/order-assistant/internal/lock"
	"github.com/frahmantamala/order-assistant/internal/menu"
	menuPostgres "github.com/frahmantamala/order-assistant/internal/menu/postgres"
	"github.com/frahmantamala/order-assistant/internal/notification"
	"github.com/frahmantamala/order-assistant/internal/ocr"
	"github.com/frahmantamala/order-assistant/internal/order"
	orderPostgres "github.com/frahmantamala/order-assistant/internal/order/postgres"
	"github.com/frahmantamala/order-assistant/internal/payment"
	paymentPostgres "github.com/frahmantamala/order-assistant/internal/payment/postgres"
	"github.com/frahmantamala/order-assistant/internal/proofqueue"
	"github.com/frahmantamala/order-assistant/internal/reminder"
	reminderPostgres "github.com/frahmantamala/order-assistant/internal/reminder/postgres"
	"github.com/frahmantamala/order-assistant/internal/transport"
	"github.com/frahmantamala/order-assistant/internal/transport/rest"
	"github.com/frahmantamala/order-assistant/internal/user"
	userPostgres "github.com/frahmantamala/order-assistant/internal/user/postgres"
	"github.com/frahmantamala/order-assistant/pkg/clock"
	"github.com/frahmantamala/order-assistant/pkg/logger"
)

// Dependencies is the composition root shared by every command.
type Dependencies struct {
	Config   *internal.Config
	Logger   *slog.Logger
	Location *time.Location
	Clock    clock.Clock

	SQL   *sqlx.DB
	Gorm  *gorm.DB
	Redis *redis.Client
	NATS  *nats.Conn

	Registry *prometheus.Registry
	Bus      *events.EventBus
	Guard    lock.Guard
	Sender   notification.Sender

	Auth      *auth.Service
	Users     *user.Service
	Menu      *menu.Service
	Orders    *order.Service
	Payments  *payment.Service
	Proofs    *proofqueue.Queue
	Scheduler *reminder.Scheduler
	Runner    *reminder.Runner

	OrderRepo   order.RepositoryAPI
	ReminderLog reminder.Log
}

// initializeDependencies opens every connection the configuration asks for and builds the services on top.
func initializeDependencies(cfg *internal.Config) (*Dependencies, error) {
	d := &Dependencies{
		Config:   cfg,
		Logger:   logger.LoggerWrapper(),
		Location: clock.LoadLocation(cfg.Scheduler.Timezone),
		Clock:    clock.System{},
	}

	if err := d.openStorage(); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.openMessaging(); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.buildServices(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Dependencies) openStorage() error {
	cfg := d.Config

	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	d.SQL = db

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to open gorm session: %w", err)
	}
	d.Gorm = gdb

	if cfg.Lock.Driver == "redis" || cfg.Payment.PendingStore == "redis" {
		d.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
	}

	switch cfg.Lock.Driver {
	case "memory":
		d.Guard = lock.NewMemoryGuard(cfg.Lock.TTL, d.Clock)
	case "redis":
		d.Guard = lock.NewRedisGuard(d.Redis, cfg.Lock.TTL)
	default:
		d.Guard = lock.NewSQLGuard(d.SQL, cfg.Lock.TTL, d.Clock)
	}
	return nil
}

func (d *Dependencies) openMessaging() error {
	cfg := d.Config

	var sender notification.Sender
	switch cfg.Messaging.Driver {
	case "telegram":
		sender = d.telegramSender()
	case "nats":
		conn, err := notification.ConnectNATS(cfg.NATS.URL, cfg.App.Name)
		if err != nil {
			return err
		}
		d.NATS = conn
		sender = notification.NewNATSSender(conn, cfg.NATS.Subject)
	default:
		d.Sender = notification.NewLogSender(logger.Component("messaging"))
		return nil
	}

	d.Sender = notification.NewRetryingSender(sender, cfg.Scheduler.SendMaxAttempts, cfg.Scheduler.SendBackoff, logger.Component("messaging"))
	return nil
}

func (d *Dependencies) telegramSender() *notification.TelegramSender {
	tg := d.Config.Messaging.Telegram
	return notification.NewTelegramSender(notification.TelegramConfig{
		BaseURL:  tg.BaseURL,
		BotToken: tg.BotToken,
		Timeout:  tg.Timeout,
	}, logger.Component("telegram"))
}

func (d *Dependencies) buildServices() error {
	cfg := d.Config
	lg := d.Logger

	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	d.Bus = events.NewEventBus(logger.Component("events"))

	d.Users = user.NewService(userPostgres.NewUserRepository(d.Gorm), lg)
	directory := notification.NewCachedDirectory(d.Users, cfg.Messaging.DirectoryTTL, d.Clock, cfg.Messaging.AdminRecipients, lg)
	notification.NewAdminNotifier(d.Sender, directory, logger.Component("admin_notifier")).Register(d.Bus)

	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	d.Auth = auth.NewService(authPostgres.NewRepository(d.Gorm), tokens, cfg.Security.BCryptCost, lg)

	d.Menu = menu.NewService(menuPostgres.NewMenuRepository(d.Gorm), lg)

	d.OrderRepo = orderPostgres.NewOrderRepository(d.Gorm, d.Location)
	d.Orders = order.NewService(d.OrderRepo, d.Guard, d.Bus, d.Menu, d.Clock, order.Config{
		WaitingThresholdDays: cfg.Order.WaitingThresholdDays,
		ListLimit:            cfg.Order.ListLimit,
		Location:             d.Location,
	}, logger.Component("order"))

	var pending payment.PendingStore
	if cfg.Payment.PendingStore == "redis" {
		pending = payment.NewRedisPendingStore(d.Redis, cfg.Payment.PendingTTL)
	} else {
		pending = payment.NewMemoryPendingStore(d.Clock)
	}

	var extractor payment.AmountExtractor
	if cfg.OCR.Enabled {
		extractor = ocr.NewClient(ocr.Config{
			BaseURL: cfg.OCR.BaseURL,
			APIKey:  cfg.OCR.APIKey,
			Timeout: cfg.OCR.Timeout,
			Bounds:  ocr.Bounds{Min: cfg.OCR.MinAmount, Max: cfg.OCR.MaxAmount},
		}, logger.Component("ocr"))
	}

	d.Payments = payment.NewService(
		d.OrderRepo,
		paymentPostgres.NewPaymentRepository(d.Gorm),
		pending,
		extractor,
		d.Guard,
		d.Bus,
		d.Clock,
		payment.Config{
			Tolerance: payment.Tolerance{
				Relative: cfg.Payment.RelativeTolerance,
				Absolute: cfg.Payment.AbsoluteTolerance,
			},
			PendingTTL: cfg.Payment.PendingTTL,
		},
		logger.Component("payment"),
	)

	d.Proofs = proofqueue.New(d.Payments, d.Sender, proofqueue.Config{
		MaxWorkers: cfg.ProofQueue.MaxWorkers,
		QueueSize:  cfg.ProofQueue.QueueSize,
	}, logger.Component("proof_queue"))

	d.ReminderLog = reminderPostgres.NewReminderLogRepository(d.Gorm, d.Location)
	d.Scheduler = reminder.NewScheduler(
		d.OrderRepo,
		d.Orders,
		d.ReminderLog,
		directory,
		d.Sender,
		d.Guard,
		d.Clock,
		reminder.NewMetrics(d.Registry),
		reminder.Config{Location: d.Location},
		logger.Component("reminder"),
	)

	hour, minute, err := cfg.Scheduler.RunAtClock()
	if err != nil {
		return err
	}
	d.Runner = reminder.NewRunner(d.Scheduler, d.Clock, reminder.RunnerConfig{
		Location:   d.Location,
		Hour:       hour,
		Minute:     minute,
		RunOnStart: true,
	}, logger.Component("reminder_runner"))

	return nil
}

// RouterDeps builds the handler set for the HTTP surface.
func (d *Dependencies) RouterDeps() rest.RouterDeps {
	base := transport.NewBaseHandler(d.Logger)

	health := map[string]rest.Pinger{"postgres": d.SQL}
	if d.Redis != nil {
		health["redis"] = rest.PingFunc(func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		})
	}
	if d.NATS != nil {
		health["nats"] = rest.PingFunc(d.NATS.FlushWithContext)
	}

	var metricsPath string
	var gatherer prometheus.Gatherer
	if d.Config.Observability.Metrics.Enabled {
		metricsPath = d.Config.Observability.Metrics.Path
		gatherer = d.Registry
	}

	return rest.RouterDeps{
		Logger:         d.Logger,
		Health:         health,
		Auth:           auth.NewHandler(base, d.Auth),
		RBAC:           auth.NewRBACAuthorization(base, d.Logger),
		User:           user.NewHandler(base, d.Users),
		Menu:           menu.NewHandler(base, d.Menu),
		Order:          order.NewHandler(base, d.Orders),
		Payment:        payment.NewHandler(base, d.Payments),
		Webhook:        payment.NewWebhookHandler(base, d.Payments, d.Proofs),
		Reminder:       reminder.NewHandler(base, d.Scheduler, d.ReminderLog, d.Location),
		WebhookSecret:  d.Config.Webhook.Secret,
		AllowedOrigins: d.Config.Server.AllowedOrigins,
		MetricsPath:    metricsPath,
		Registerer:     d.Registry,
		Gatherer:       gatherer,
	}
}

// Close releases every connection that was opened. Safe on a partially built set.
func (d *Dependencies) Close() {
	if d.Bus != nil {
		d.Bus.Wait()
	}
	if d.NATS != nil {
		if err := d.NATS.Drain(); err != nil {
			d.Logger.Error("nats drain error", "error", err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil && !stdErrors.Is(err, redis.ErrClosed) {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if d.SQL != nil {
		if err := d.SQL.Close(); err != nil {
			d.Logger.Error("database close error", "error", err)
		}
	}
}

// initDB opens the pgx-backed pool shared by sqlx and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Open(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbConn.PingContext(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
