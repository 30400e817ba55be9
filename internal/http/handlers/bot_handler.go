package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meetingbots/backend/internal/http/dto"
	"github.com/meetingbots/backend/internal/middleware"
	"github.com/meetingbots/backend/internal/models"
	"github.com/meetingbots/backend/internal/repositories"
	"github.com/meetingbots/backend/internal/services"
	"go.uber.org/zap"
)

type BotHandler struct {
	botService  *services.BotService
	projectRepo *repositories.ProjectRepo
	log         *zap.Logger
}

func NewBotHandler(botService *services.BotService, projectRepo *repositories.ProjectRepo, log *zap.Logger) *BotHandler {
	return &BotHandler{botService: botService, projectRepo: projectRepo, log: log}
}

// authorizeProject checks the project belongs to the caller's organization.
func (h *BotHandler) authorizeProject(c *fiber.Ctx, projectID uuid.UUID) (*models.Project, error) {
	project, err := h.projectRepo.GetByID(c.Context(), projectID)
	if err != nil {
		return nil, err
	}
	if project.OrganizationID != middleware.GetOrganizationID(c) {
		return nil, pgx.ErrNoRows
	}
	return project, nil
}

// authorizeBot resolves a bot and checks it through its project.
func (h *BotHandler) authorizeBot(c *fiber.Ctx) (*models.Bot, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, errors.New("invalid bot id")
	}
	bot, err := h.botService.GetBot(c.Context(), id)
	if err != nil {
		return nil, pgx.ErrNoRows
	}
	if _, err := h.authorizeProject(c, bot.ProjectID); err != nil {
		return nil, pgx.ErrNoRows
	}
	return bot, nil
}

// transitionError maps service errors to http statuses: invalid edges are
// conflicts, credit refusals are payment required.
func transitionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrInsufficientCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "bot not found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
}

func (h *BotHandler) CreateBot(c *fiber.Ctx) error {
	var req dto.CreateBotRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project_id"})
	}
	if req.MeetingURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "meeting_url is required"})
	}
	if _, err := h.authorizeProject(c, projectID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "project not found"})
	}

	bot, err := h.botService.CreateBot(c.Context(), projectID, req.Name, req.MeetingURL, req.MeetingUUID, req.JoinAt, req.Settings)
	if err != nil {
		h.log.Error("create bot failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: bot})
}

func (h *BotHandler) GetBot(c *fiber.Ctx) error {
	bot, err := h.authorizeBot(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "bot not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: bot})
}

func (h *BotHandler) ListBots(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Query("project_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "project_id query param is required"})
	}
	if _, err := h.authorizeProject(c, projectID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "project not found"})
	}

	limit, offset := 20, 0
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
	var state *string
	if v := c.Query("state"); v != "" {
		state = &v
	}

	bots, err := h.botService.ListBots(c.Context(), projectID, state, limit, offset)
	if err != nil {
		h.log.Error("list bots failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: bots})
}

func (h *BotHandler) DeleteBot(c *fiber.Ctx) error {
	bot, err := h.authorizeBot(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "bot not found"})
	}
	if err := h.botService.DeleteBot(c.Context(), bot.ID); err != nil {
		h.log.Error("delete bot failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *BotHandler) Join(c *fiber.Ctx) error {
	bot, err := h.authorizeBot(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "bot not found"})
	}
	updated, err := h.botService.RequestJoin(c.Context(), bot.ID)
	if err != nil {
		return transitionError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: updated})
}

func (h *BotHandler) Leave(c *fiber.Ctx) error {
	bot, err := h.authorizeBot(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "bot not found"})
	}
	updated, err := h.botService.RequestLeave(c.Context(), bot.ID)
	if err != nil {
		return transitionError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: updated})
}

func (h *BotHandler) StartRecording(c *fiber.Ctx) error {
	bot, err := h.authorizeBot(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "bot not found"})
	}
	updated, err := h.botService.StartRecording(c.Context(), bot.ID)
	if err != nil {
		return transitionError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: updated})
}

func (h *BotHandler) PauseRecording(c *fiber.Ctx) error {
	bot, err := h.authorizeBot(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "bot not found"})
	}
	updated, err := h.botService.PauseRecording(c.Context(), bot.ID)
	if err != nil {
		return transitionError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: updated})
}

func (h *BotHandler) ResumeRecording(c *fiber.Ctx) error {
	bot, err := h.authorizeBot(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "bot not found"})
	}
	updated, err := h.botService.ResumeRecording(c.Context(), bot.ID)
	if err != nil {
		return transitionError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: updated})
}

func (h *BotHandler) ListBotEvents(c *fiber.Ctx) error {
	bot, err := h.authorizeBot(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "bot not found"})
	}
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	botEvents, err := h.botService.ListEvents(c.Context(), bot.ID, limit)
	if err != nil {
		h.log.Error("list bot events failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: botEvents})
}

// ReportEvent ingests a runtime event from bot infrastructure. Unlike the
// action endpoints, any event type can be posted here.
func (h *BotHandler) ReportEvent(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid bot id"})
	}
	var req dto.ReportEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.EventType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "event_type is required"})
	}

	bot, err := h.botService.ApplyEvent(c.Context(), id, req.EventType, req.EventSubType, req.Metadata)
	if err != nil {
		return transitionError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: bot})
}

// Heartbeat records bot liveness from runtime infrastructure.
func (h *BotHandler) Heartbeat(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid bot id"})
	}
	var req dto.HeartbeatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if err := h.botService.Heartbeat(c.Context(), id, req.Timestamp); err != nil {
		h.log.Error("heartbeat failed", zap.String("bot_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
