package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/komgo/credit-lines/config"
	"github.com/komgo/credit-lines/internal/handlers"
	"github.com/komgo/credit-lines/pkg/database"
	"github.com/komgo/credit-lines/pkg/health"
	"github.com/komgo/credit-lines/pkg/httpclient"
	"github.com/komgo/credit-lines/pkg/logging"
	"github.com/komgo/credit-lines/pkg/messaging"
	"github.com/komgo/credit-lines/pkg/middleware"
	"github.com/komgo/credit-lines/pkg/notify"
	"github.com/komgo/credit-lines/pkg/redis"
	"github.com/komgo/credit-lines/pkg/registry"
	"github.com/komgo/credit-lines/pkg/repositories"
	"github.com/komgo/credit-lines/pkg/services"
	"github.com/komgo/credit-lines/pkg/startup"
	"github.com/komgo/credit-lines/pkg/tracing"
)

const version = "1.0.0"

// dependency adapts a pair of start/stop funcs to the startup graph.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string     { return d.name }
func (d *dependency) DependsOn() []string { return d.dependsOn }

func (d *dependency) Start(ctx context.Context) error {
	return d.start(ctx)
}

func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

// app holds the wired components shared by the startup dependencies.
type app struct {
	db          *database.Instance
	redisClient *redis.Client
	producer    *messaging.Producer
	consumer    *messaging.Consumer
	processor   *messaging.Processor
	server      *echo.Echo
	checker     *health.Checker
}

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, flushLogs, err := logging.New(cfg.AppName, cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer flushLogs()

	if err := run(&cfg, logger); err != nil {
		logger.WithError(err).Error("service exited with error")
		flushLogs()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.CompanyStaticID == "" {
		return fmt.Errorf("COMPANY_STATIC_ID is required")
	}

	if cfg.TracingEnabled {
		shutdownTracing, err := tracing.InitProvider(ctx, cfg.AppName, cfg.TracingEndpoint)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(flushCtx)
		}()
	}

	a := &app{}
	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			var err error
			a.db, err = database.Connect(ctx, database.Config{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				User:            cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}

			driver, err := migratepg.WithInstance(a.db.DB.DB, &migratepg.Config{})
			if err != nil {
				return fmt.Errorf("failed to create migration driver: %w", err)
			}
			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			return migrations.Migrate(cfg.DatabaseName, driver)
		},
		stop: func(ctx context.Context) error {
			return a.db.Close()
		},
	})

	boot.AddDependency(&dependency{
		name:      "redis",
		dependsOn: []string{"database"},
		start: func(ctx context.Context) error {
			var err error
			a.redisClient, err = redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			return err
		},
		stop: func(ctx context.Context) error {
			return a.redisClient.Close()
		},
	})

	boot.AddDependency(&dependency{
		name:      "kafka",
		dependsOn: []string{"redis"},
		start: func(ctx context.Context) error {
			var err error
			a.producer, err = messaging.NewProducer(messaging.ProducerConfig{
				Brokers:      cfg.KafkaBrokers,
				Topic:        cfg.KafkaOutboundTopic,
				BatchTimeout: 100 * time.Millisecond,
				MaxAttempts:  3,
				WriteTimeout: 10 * time.Second,
			}, logger)
			if err != nil {
				return err
			}
			return wire(cfg, a, logger)
		},
		stop: func(ctx context.Context) error {
			return a.producer.Close()
		},
	})

	boot.AddDependency(&dependency{
		name:      "consumer",
		dependsOn: []string{"kafka"},
		start: func(ctx context.Context) error {
			if !cfg.KafkaConsumerEnabled {
				logger.Info("Kafka consumer disabled")
				return nil
			}

			dlq := redis.NewDeadLetterQueue(a.redisClient, cfg.RedisDLQ, logger)
			var err error
			a.consumer, err = messaging.NewConsumer(messaging.ConsumerConfig{
				Brokers: cfg.KafkaBrokers,
				Topic:   cfg.KafkaInboundTopic,
				GroupID: cfg.KafkaConsumerGroup,
			}, dlq, logger)
			if err != nil {
				return err
			}
			return a.consumer.Start(ctx, a.processor.Process)
		},
		stop: func(ctx context.Context) error {
			if a.consumer == nil {
				return nil
			}
			return a.consumer.Stop()
		},
	})

	boot.AddDependency(&dependency{
		name:      "http",
		dependsOn: []string{"consumer"},
		start: func(ctx context.Context) error {
			go func() {
				address := fmt.Sprintf(":%d", cfg.Port)
				if err := a.server.Start(address); err != nil && err != http.ErrServerClosed {
					logger.WithError(err).Error("http server stopped")
				}
			}()
			return nil
		},
		stop: func(ctx context.Context) error {
			if a.server == nil {
				return nil
			}
			return a.server.Shutdown(ctx)
		},
	})

	if err := boot.Start(ctx); err != nil {
		return err
	}
	a.checker.SetReady(true)
	logger.WithField("port", cfg.Port).Info("credit lines service started")

	<-ctx.Done()
	logger.Info("shutdown signal received")
	a.checker.SetReady(false)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return boot.Stop(stopCtx)
}

// wire builds the service graph, the inbound processor and the HTTP surface
// once the storage and messaging connections exist.
func wire(cfg *config.Config, a *app, logger ectologger.Logger) error {
	httpClient := httpclient.NewClient(httpclient.Config{
		Timeout:         httpclient.DefaultTimeout,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
		MaxAttempts:     cfg.HTTPRetryMaxAttempts,
		BaseDelay:       cfg.HTTPRetryBaseDelay,
	}, logger)

	registryClient := registry.NewClient(httpClient, cfg.RegistryBaseURL, logger)
	taskClient := notify.NewTaskClient(httpClient, cfg.TasksBaseURL, logger)
	notificationClient := notify.NewNotificationClient(httpClient, cfg.NotificationsBaseURL, logger)

	creditLineRepo := repositories.NewCreditLineRepository(a.db, logger)
	sharedRepo := repositories.NewSharedCreditLineRepository(a.db, logger)
	requestRepo := repositories.NewCreditLineRequestRepository(a.db, logger)
	disclosedRepo := repositories.NewDisclosedCreditLineRepository(a.db, logger)
	depositLoanRepo := repositories.NewDepositLoanRepository(a.db, logger)

	validationBase := services.NewValidationServiceBase(registryClient, logger)
	validationFactory := services.NewCreditLineValidationFactory(validationBase, logger)

	shareService := services.NewShareCreditLineService(a.producer, cfg.CompanyStaticID, logger)

	requestService := services.NewCreditLineRequestService(
		requestRepo, sharedRepo, registryClient, validationFactory,
		a.producer, taskClient, notificationClient, cfg.CompanyStaticID, logger)

	disclosedService := services.NewDisclosedCreditLineService(
		disclosedRepo, requestService, registryClient, notificationClient, logger)

	locker := redis.NewLocker(a.redisClient, "")
	creditLineService := services.NewCreditLineService(
		creditLineRepo, sharedRepo, validationFactory, shareService,
		requestService, locker, logger)

	depositLoanService := services.NewDepositLoanService(
		depositLoanRepo, validationBase, a.producer, cfg.CompanyStaticID, logger)

	a.processor = messaging.NewProcessor(requestService, disclosedService, logger)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	a.checker = health.NewChecker(a.db, a.redisClient, version)
	a.checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	if cfg.AuthEnabled {
		authentication, err := middleware.Authentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return err
		}
		api.Use(authentication)
	}
	api.Use(middleware.RequireRole("manageCreditLines", cfg.AuthEnabled))

	handlers.NewCreditLineHandler(creditLineService).RegisterRoutes(api)
	handlers.NewRequestHandler(requestService).RegisterRoutes(api)
	handlers.NewDisclosedCreditLineHandler(disclosedService).RegisterRoutes(api)
	handlers.NewDepositLoanHandler(depositLoanService).RegisterRoutes(api)

	a.server = e
	return nil
}
