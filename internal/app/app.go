package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/localmart/order/internal/dal/postgres"
	"github.com/localmart/order/internal/dal/rabbitmq"
	agentrepo "github.com/localmart/order/internal/dal/repositories/agent/postgres"
	deliveryrepo "github.com/localmart/order/internal/dal/repositories/delivery/postgres"
	notificationrepo "github.com/localmart/order/internal/dal/repositories/notification/postgres"
	outboxrepo "github.com/localmart/order/internal/dal/repositories/outbox/postgres"
	productrepo "github.com/localmart/order/internal/dal/repositories/product/postgres"
	shoprepo "github.com/localmart/order/internal/dal/repositories/shop/postgres"
	"github.com/localmart/order/internal/geocode"
	"github.com/localmart/order/internal/otel"
	"github.com/localmart/order/internal/service/services/dispatchsvc"
	"github.com/localmart/order/internal/service/services/notifysvc"
	"github.com/localmart/order/internal/service/services/ordersvc"
	"github.com/localmart/order/internal/service/services/stocksvc"
	"github.com/localmart/order/internal/transport/consumer"
	httptransport "github.com/localmart/order/internal/transport/http"
	outboxworker "github.com/localmart/order/internal/worker/outbox"
)

// App represents the application.
type App struct {
	orderSvc       *ordersvc.OrderService
	notifySvc      *notifysvc.NotifyService
	transport      *httptransport.HTTPTransport
	consumerTransp *consumer.Consumer
	outboxWorker   *outboxworker.Worker
	rabbitMqClient *rabbitmq.Client
	postgresClient *postgres.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	rabbitMqClient := rabbitmq.MustNewClient()
	postgresClient := postgres.MustNewClient()

	pool := postgresClient.Pool()
	productRepository := productrepo.NewPostgresProductRepository(pool)
	shopRepository := shoprepo.NewPostgresShopRepository(pool)
	deliveryRepository := deliveryrepo.NewPostgresDeliveryRepository(pool)
	agentRepository := agentrepo.NewPostgresAgentRepository(pool)
	notificationRepository := notificationrepo.NewPostgresNotificationRepository(pool)
	outboxRepository := outboxrepo.NewPostgresOutboxRepository(pool)

	stockSvc := stocksvc.MustNewStockService(
		stocksvc.WithProductRepository(productRepository),
	)

	dispatchSvc := dispatchsvc.MustNewDispatchService(
		dispatchsvc.WithDeliveryRepository(deliveryRepository),
		dispatchsvc.WithAgentRepository(agentRepository),
		dispatchsvc.WithShopRepository(shopRepository),
		dispatchsvc.WithOutboxRepository(outboxRepository),
		dispatchsvc.WithGeocoder(geocode.MustNewClient()),
	)

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithShopRepository(shopRepository),
		ordersvc.WithProductRepository(productRepository),
		ordersvc.WithStockLedger(stockSvc),
		ordersvc.WithDispatcher(dispatchSvc),
	)

	notifySvc := notifysvc.MustNewNotifyService(
		notifysvc.WithNotificationRepository(notificationRepository),
	)

	transport := httptransport.NewHTTPTransport(orderSvc, notifySvc)
	transport.RegisterRoutes()

	consumerTransp := consumer.NewConsumer(rabbitMqClient, notifySvc)
	outboxWorker := outboxworker.NewWorker(outboxRepository, rabbitMqClient)

	return &App{
		orderSvc:       orderSvc,
		notifySvc:      notifySvc,
		transport:      transport,
		consumerTransp: consumerTransp,
		outboxWorker:   outboxWorker,
		rabbitMqClient: rabbitMqClient,
		postgresClient: postgresClient,
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting notification consumer")
		if err := a.consumerTransp.Run(ctx); err != nil {
			slog.Error("Notification consumer error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting outbox worker")
		a.outboxWorker.Start(ctx)
	}()

	<-stop
	slog.Info("Shutdown signal received")
	cancel()

	a.gracefulShutdown()
}

// gracefulShutdown stops components in dependency order: the HTTP edge
// first, then the consumer and worker, then the connections underneath.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.consumerTransp.Shutdown(); err != nil {
		slog.Error("Notification consumer shutdown error", "error", err)
	} else {
		slog.Info("Notification consumer stopped gracefully")
	}

	a.outboxWorker.Stop()
	slog.Info("Outbox worker stopped gracefully")

	if err := a.rabbitMqClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Otel trace provider close error", "error", err)
	} else {
		slog.Info("Otel trace provider closed gracefully")
	}

	slog.Info("Application shutdown complete")
}
