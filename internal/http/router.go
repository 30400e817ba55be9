package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/meetingbots/backend/internal/config"
	"github.com/meetingbots/backend/internal/http/handlers"
	"github.com/meetingbots/backend/internal/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	projectHandler *handlers.ProjectHandler,
	botHandler *handlers.BotHandler,
	webhookHandler *handlers.WebhookHandler,
	creditHandler *handlers.CreditHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Internal endpoints for bot runtime infrastructure. Not exposed publicly;
	// network isolation is handled at deploy level.
	internal := app.Group("/internal/v1")
	internal.Post("/bots/:id/events", botHandler.ReportEvent)
	internal.Post("/bots/:id/heartbeat", botHandler.Heartbeat)

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Projects
	protected.Post("/projects", projectHandler.CreateProject)
	protected.Get("/projects", projectHandler.ListProjects)

	// Bots
	protected.Post("/bots", botHandler.CreateBot)
	protected.Get("/bots", botHandler.ListBots)
	protected.Get("/bots/:id", botHandler.GetBot)
	protected.Delete("/bots/:id", botHandler.DeleteBot)
	protected.Post("/bots/:id/join", botHandler.Join)
	protected.Post("/bots/:id/leave", botHandler.Leave)
	protected.Post("/bots/:id/start-recording", botHandler.StartRecording)
	protected.Post("/bots/:id/pause-recording", botHandler.PauseRecording)
	protected.Post("/bots/:id/resume-recording", botHandler.ResumeRecording)
	protected.Get("/bots/:id/events", botHandler.ListBotEvents)

	// Webhooks
	protected.Post("/webhooks/subscriptions", webhookHandler.CreateSubscription)
	protected.Get("/webhooks/subscriptions", webhookHandler.ListSubscriptions)
	protected.Delete("/webhooks/subscriptions/:id", webhookHandler.DeactivateSubscription)
	protected.Get("/webhooks/subscriptions/:id/deliveries", webhookHandler.ListDeliveries)
	protected.Get("/webhooks/deliveries/:rootId/chain", webhookHandler.GetDeliveryChain)
	protected.Post("/webhooks/projects/:projectId/rotate-secret", webhookHandler.RotateSecret)

	// Credits
	protected.Get("/credits/balance", creditHandler.GetBalance)
	protected.Get("/credits/transactions", creditHandler.ListTransactions)
	protected.Post("/credits/top-up", creditHandler.AddCredits)

	// Admin
	admin := protected.Group("/admin", middleware.AdminMiddleware(cfg))
	admin.Post("/credits/adjustments", creditHandler.CreateAdjustment)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
