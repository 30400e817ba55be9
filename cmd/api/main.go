package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/meetingbots/backend/internal/config"
	"github.com/meetingbots/backend/internal/db"
	"github.com/meetingbots/backend/internal/events"
	apphttp "github.com/meetingbots/backend/internal/http"
	"github.com/meetingbots/backend/internal/http/handlers"
	"github.com/meetingbots/backend/internal/repositories"
	"github.com/meetingbots/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	botRepo := repositories.NewBotRepo(pool)
	projectRepo := repositories.NewProjectRepo(pool)
	webhookRepo := repositories.NewWebhookRepo(pool)
	creditRepo := repositories.NewCreditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	signatures := services.NewSignatureService()
	deliverer := services.NewDeliverer(cfg.WebhookDeliveryTimeout, cfg.WebhookUserAgent, signatures, log)
	webhookService := services.NewWebhookService(webhookRepo, deliverer, cfg.DeliveryWorkers, log)
	billingService := services.NewBillingService(creditRepo, botRepo, projectRepo, log)
	botService := services.NewBotService(botRepo, projectRepo, billingService, webhookService, publisher, log)

	// Handlers
	projectHandler := handlers.NewProjectHandler(projectRepo, log)
	botHandler := handlers.NewBotHandler(botService, projectRepo, log)
	webhookHandler := handlers.NewWebhookHandler(webhookRepo, projectRepo, signatures, log)
	creditHandler := handlers.NewCreditHandler(billingService, creditRepo, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, projectRepo, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, projectHandler, botHandler, webhookHandler, creditHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
