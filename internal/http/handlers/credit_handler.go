package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/meetingbots/backend/internal/http/dto"
	"github.com/meetingbots/backend/internal/middleware"
	"github.com/meetingbots/backend/internal/repositories"
	"github.com/meetingbots/backend/internal/services"
	"go.uber.org/zap"
)

type CreditHandler struct {
	billingService *services.BillingService
	creditRepo     *repositories.CreditRepo
	log            *zap.Logger
}

func NewCreditHandler(billingService *services.BillingService, creditRepo *repositories.CreditRepo, log *zap.Logger) *CreditHandler {
	return &CreditHandler{billingService: billingService, creditRepo: creditRepo, log: log}
}

func (h *CreditHandler) GetBalance(c *fiber.Ctx) error {
	orgID := middleware.GetOrganizationID(c)
	org, err := h.creditRepo.GetOrganization(c.Context(), orgID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "organization not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.BalanceResponse{
		OrganizationID: org.ID.String(),
		Centicredits:   org.Centicredits,
		Credits:        org.Credits(),
	}})
}

func (h *CreditHandler) ListTransactions(c *fiber.Ctx) error {
	orgID := middleware.GetOrganizationID(c)

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

	txs, err := h.creditRepo.ListTransactions(c.Context(), orgID, limit, offset)
	if err != nil {
		h.log.Error("list transactions failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txs})
}

func (h *CreditHandler) AddCredits(c *fiber.Ctx) error {
	var req dto.AddCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Centicredits <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "centicredits must be positive"})
	}
	if req.PaymentReference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "payment_reference is required"})
	}

	orgID := middleware.GetOrganizationID(c)
	ct, err := h.billingService.AddCredits(c.Context(), orgID, req.Centicredits, req.PaymentReference)
	if err != nil {
		h.log.Error("add credits failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: ct})
}

// CreateAdjustment is admin-only: manual ledger corrections referencing the
// transaction they correct.
func (h *CreditHandler) CreateAdjustment(c *fiber.Ctx) error {
	var req dto.CreateAdjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	parentID, err := uuid.Parse(req.ParentTransactionID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid parent_transaction_id"})
	}
	parent, err := h.creditRepo.GetTransaction(c.Context(), parentID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "parent transaction not found"})
	}

	ct, err := h.billingService.CreateAdjustment(c.Context(), parent.OrganizationID, req.Centicredits, parentID, req.Description)
	if err != nil {
		h.log.Error("create adjustment failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: ct})
}
