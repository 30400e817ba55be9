package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meetingbots/backend/internal/config"
	"github.com/meetingbots/backend/internal/db"
	"github.com/meetingbots/backend/internal/events"
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

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	botRepo := repositories.NewBotRepo(pool)
	projectRepo := repositories.NewProjectRepo(pool)
	webhookRepo := repositories.NewWebhookRepo(pool)
	creditRepo := repositories.NewCreditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	signatures := services.NewSignatureService()
	deliverer := services.NewDeliverer(cfg.WebhookDeliveryTimeout, cfg.WebhookUserAgent, signatures, log)
	webhookService := services.NewWebhookService(webhookRepo, deliverer, cfg.DeliveryWorkers, log)
	billingService := services.NewBillingService(creditRepo, botRepo, projectRepo, log)
	botService := services.NewBotService(botRepo, projectRepo, billingService, webhookService, publisher, log)

	log.Info("worker started")

	// Run jobs on tickers
	deliveryTicker := time.NewTicker(cfg.DeliveryPollInterval)
	watchdogTicker := time.NewTicker(cfg.WatchdogInterval)
	scheduledTicker := time.NewTicker(cfg.ScheduledJoinInterval)
	billingTicker := time.NewTicker(cfg.BillingSweepInterval)
	defer deliveryTicker.Stop()
	defer watchdogTicker.Stop()
	defer scheduledTicker.Stop()
	defer billingTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-deliveryTicker.C:
			runWebhookDelivery(ctx, webhookService, cfg, log)
		case <-watchdogTicker.C:
			runHeartbeatWatchdog(ctx, botService, cfg, log)
		case <-scheduledTicker.C:
			runScheduledJoins(ctx, botService, log)
		case <-billingTicker.C:
			runBillingSweep(ctx, billingService, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runWebhookDelivery drains due attempts until the backlog is empty or a
// batch errors out, so a long redelivery queue does not wait for the next
// tick.
func runWebhookDelivery(ctx context.Context, webhookService *services.WebhookService, cfg *config.Config, log *zap.Logger) {
	for {
		n, err := webhookService.DeliverDue(ctx, cfg.DeliveryBatchSize)
		if err != nil {
			log.Error("webhook delivery batch failed", zap.Error(err))
			return
		}
		if n < cfg.DeliveryBatchSize {
			return
		}
	}
}

func runHeartbeatWatchdog(ctx context.Context, botService *services.BotService, cfg *config.Config, log *zap.Logger) {
	failed, err := botService.WatchdogSweep(ctx, cfg.HeartbeatTimeoutSeconds, 100)
	if err != nil {
		log.Error("heartbeat watchdog failed", zap.Error(err))
		return
	}
	if failed > 0 {
		log.Warn("failed stale bots", zap.Int("count", failed))
	}
}

func runScheduledJoins(ctx context.Context, botService *services.BotService, log *zap.Logger) {
	if _, err := botService.PromoteScheduled(ctx, 100); err != nil {
		log.Error("scheduled join promotion failed", zap.Error(err))
	}
}

func runBillingSweep(ctx context.Context, billingService *services.BillingService, log *zap.Logger) {
	if _, err := billingService.FinalizeUnbilled(ctx, 100); err != nil {
		log.Error("billing sweep failed", zap.Error(err))
	}
}
