package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vibast-solutions/ms-go-channel-sync/app/cache"
	"github.com/vibast-solutions/ms-go-channel-sync/app/channel"
	"github.com/vibast-solutions/ms-go-channel-sync/app/controller"
	"github.com/vibast-solutions/ms-go-channel-sync/app/factory"
	"github.com/vibast-solutions/ms-go-channel-sync/app/metrics"
	"github.com/vibast-solutions/ms-go-channel-sync/app/repository"
	"github.com/vibast-solutions/ms-go-channel-sync/app/service"
	"github.com/vibast-solutions/ms-go-channel-sync/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server with the webhook gateway and the background sync scheduler.",
	Run:   runServe,
}

var demoMode bool

func init() {
	serveCmd.Flags().BoolVar(&demoMode, "demo", false, "register an in-memory demo channel alongside configured channels")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, app, cleanup := mustCreateApp()
	defer cleanup()

	rdb, err := cache.InitRedis(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to redis")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
	}()

	eventCache := cache.NewEventCache(rdb, cfg.Redis.DedupTTL)
	gateway := service.NewGateway(app.store, eventCache, app.reconciler, app.notifier, cfg.Webhooks.Endpoints)
	orderService := service.NewOrderService(app.store)
	scheduler := service.NewScheduler(app.engine, cfg.Sync.Interval)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go scheduler.Start(schedulerCtx)

	webhookController := controller.NewWebhookController(gateway)
	syncController := controller.NewSyncController(scheduler, app.engine)
	orderController := controller.NewOrderController(orderService, app.reconciler, app.engine)

	e := setupHTTPServer(webhookController, syncController, orderController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	webhookController *controller.WebhookController,
	syncController *controller.SyncController,
	orderController *controller.OrderController,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", webhookController.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	webhooks := e.Group("/webhooks/payments")
	webhooks.POST("/:endpoint", webhookController.HandlePaymentEvent)

	sync := e.Group("/sync")
	sync.POST("/trigger", syncController.Trigger)
	sync.GET("/logs", syncController.ListLogs)

	orders := e.Group("/orders")
	orders.GET("/:id", orderController.GetOrder)
	orders.POST("/:id/fulfill", orderController.FulfillOrder)
	orders.POST("/:id/refund-line", orderController.RefundOrderLine)

	e.POST("/payments/:processorRef/refund", orderController.RefundPayment)
	e.GET("/customers/:customerRef/loyalty", orderController.GetLoyaltyBalance)

	return e
}

type appComponents struct {
	store      *repository.Store
	notifier   service.Notifier
	reconciler *service.Reconciler
	engine     *service.SyncEngine
}

func mustCreateApp() (*config.Config, *appComponents, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := factory.ConfigureLogging(cfg.Log.Level); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	adapters := make([]channel.Adapter, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		adapters = append(adapters, channel.NewMiraklAdapter(channel.MiraklConfig{
			ChannelID:   ch.ID,
			BaseURL:     ch.BaseURL,
			APIKey:      ch.APIKey,
			ShopID:      ch.ShopID,
			HTTPTimeout: ch.HTTPTimeout,
		}))
	}
	if demoMode {
		adapters = append(adapters, channel.NewFakeAdapter("demo"))
	}
	registry := channel.NewRegistry(adapters...)

	var notifier service.Notifier = service.NoopNotifier{}
	closeProducer := func() {}
	if cfg.Kafka.Enabled {
		producer, err := service.NewKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to connect to kafka")
		}
		notifier = service.NewKafkaNotifier(producer, cfg.Kafka.Topic)
		closeProducer = func() {
			if err := producer.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close kafka producer")
			}
		}
	}

	store := repository.NewStore(db)
	reconciler := service.NewReconciler(store, cfg.Loyalty.PointsRate)
	engine := service.NewSyncEngine(store, registry, notifier, cfg.Channels, cfg.Sync)

	cleanup := func() {
		closeProducer()
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, &appComponents{
		store:      store,
		notifier:   notifier,
		reconciler: reconciler,
		engine:     engine,
	}, cleanup
}
