package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/meetingbots/backend/internal/http/dto"
	"github.com/meetingbots/backend/internal/middleware"
	"github.com/meetingbots/backend/internal/models"
	"github.com/meetingbots/backend/internal/repositories"
	"github.com/meetingbots/backend/internal/services"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	webhookRepo *repositories.WebhookRepo
	projectRepo *repositories.ProjectRepo
	signatures  *services.SignatureService
	log         *zap.Logger
}

func NewWebhookHandler(webhookRepo *repositories.WebhookRepo, projectRepo *repositories.ProjectRepo, signatures *services.SignatureService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{webhookRepo: webhookRepo, projectRepo: projectRepo, signatures: signatures, log: log}
}

func (h *WebhookHandler) authorizeProject(c *fiber.Ctx, projectID uuid.UUID) bool {
	project, err := h.projectRepo.GetByID(c.Context(), projectID)
	return err == nil && project.OrganizationID == middleware.GetOrganizationID(c)
}

func validTriggers(triggers []string) bool {
	if len(triggers) == 0 {
		return false
	}
	known := map[string]bool{
		models.TriggerBotStateChange:       true,
		models.TriggerTranscriptUpdate:     true,
		models.TriggerChatMessagesUpdate:   true,
		models.TriggerParticipantJoinLeave: true,
	}
	for _, t := range triggers {
		if !known[t] {
			return false
		}
	}
	return true
}

func (h *WebhookHandler) CreateSubscription(c *fiber.Ctx) error {
	var req dto.CreateSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project_id"})
	}
	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "url is required"})
	}
	if !validTriggers(req.TriggerTypes) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "trigger_types must be a non-empty list of known triggers"})
	}
	if !h.authorizeProject(c, projectID) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "project not found"})
	}

	var botID *uuid.UUID
	if req.BotID != nil {
		id, err := uuid.Parse(*req.BotID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid bot_id"})
		}
		botID = &id
	}

	sub := &models.WebhookSubscription{
		ProjectID:    projectID,
		BotID:        botID,
		URL:          req.URL,
		TriggerTypes: req.TriggerTypes,
		IsActive:     true,
	}
	if err := h.webhookRepo.CreateSubscription(c.Context(), sub); err != nil {
		h.log.Error("create subscription failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: sub})
}

func (h *WebhookHandler) ListSubscriptions(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Query("project_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "project_id query param is required"})
	}
	if !h.authorizeProject(c, projectID) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "project not found"})
	}

	subs, err := h.webhookRepo.ListSubscriptions(c.Context(), projectID)
	if err != nil {
		h.log.Error("list subscriptions failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: subs})
}

func (h *WebhookHandler) DeactivateSubscription(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid subscription id"})
	}
	sub, err := h.webhookRepo.GetSubscription(c.Context(), id)
	if err != nil || !h.authorizeProject(c, sub.ProjectID) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "subscription not found"})
	}
	if err := h.webhookRepo.DeactivateSubscription(c.Context(), id); err != nil {
		h.log.Error("deactivate subscription failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// RotateSecret replaces the project's signing secret. Pending deliveries will
// be signed with the new secret because signing happens at send time.
func (h *WebhookHandler) RotateSecret(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}
	if !h.authorizeProject(c, projectID) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "project not found"})
	}

	secret, err := h.signatures.GenerateWebhookSecret()
	if err != nil {
		h.log.Error("secret generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	stored, err := h.webhookRepo.RotateSecret(c.Context(), projectID, secret)
	if err != nil {
		h.log.Error("secret rotation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.RotateSecretResponse{
		SecretID: stored.ObjectID,
		Secret:   secret,
	}})
}

func (h *WebhookHandler) ListDeliveries(c *fiber.Ctx) error {
	subID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid subscription id"})
	}
	sub, err := h.webhookRepo.GetSubscription(c.Context(), subID)
	if err != nil || !h.authorizeProject(c, sub.ProjectID) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "subscription not found"})
	}

	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	attempts, err := h.webhookRepo.ListAttempts(c.Context(), subID, limit, offset)
	if err != nil {
		h.log.Error("list deliveries failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: attempts})
}

// GetDeliveryChain returns every attempt of one delivery in order, useful for
// debugging a receiver that flaps.
func (h *WebhookHandler) GetDeliveryChain(c *fiber.Ctx) error {
	rootID, err := uuid.Parse(c.Params("rootId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid root attempt id"})
	}

	attempts, err := h.webhookRepo.ListChain(c.Context(), rootID)
	if err != nil || len(attempts) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "delivery not found"})
	}
	sub, err := h.webhookRepo.GetSubscription(c.Context(), attempts[0].SubscriptionID)
	if err != nil || !h.authorizeProject(c, sub.ProjectID) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "delivery not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: attempts})
}
