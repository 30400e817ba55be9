package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/meetingbots/backend/internal/http/dto"
	"github.com/meetingbots/backend/internal/middleware"
	"github.com/meetingbots/backend/internal/models"
	"github.com/meetingbots/backend/internal/repositories"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	projectRepo *repositories.ProjectRepo
	log         *zap.Logger
}

func NewProjectHandler(projectRepo *repositories.ProjectRepo, log *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projectRepo: projectRepo, log: log}
}

func (h *ProjectHandler) CreateProject(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "name is required"})
	}

	project := &models.Project{
		OrganizationID: middleware.GetOrganizationID(c),
		Name:           req.Name,
	}
	if err := h.projectRepo.Create(c.Context(), project); err != nil {
		h.log.Error("create project failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: project})
}

func (h *ProjectHandler) ListProjects(c *fiber.Ctx) error {
	projects, err := h.projectRepo.ListByOrganization(c.Context(), middleware.GetOrganizationID(c))
	if err != nil {
		h.log.Error("list projects failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: projects})
}
