package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meetingbots/backend/internal/models"
	"go.uber.org/zap"
)

// billingCreditStore is the ledger surface BillingService writes through.
// *repositories.CreditRepo satisfies it.
type billingCreditStore interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	CreateTransaction(ctx context.Context, orgID uuid.UUID, delta int64, botID, parentID *uuid.UUID, paymentRef, description *string) (*models.CreditTransaction, error)
	CreateBotUsageTransaction(ctx context.Context, orgID, botID uuid.UUID, delta int64, description *string) (*models.CreditTransaction, bool, error)
}

type billingBotStore interface {
	MarkBilled(ctx context.Context, id uuid.UUID) (bool, error)
	ListUnbilledTerminal(ctx context.Context, limit int) ([]models.Bot, error)
}

type billingProjectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// BillingService owns the credit ledger: launch pre-flight checks, end-of-run
// usage debits, top-ups and corrections.
type BillingService struct {
	credits  billingCreditStore
	bots     billingBotStore
	projects billingProjectStore
	log      *zap.Logger
}

func NewBillingService(credits billingCreditStore, bots billingBotStore, projects billingProjectStore, log *zap.Logger) *BillingService {
	return &BillingService{
		credits:  credits,
		bots:     bots,
		projects: projects,
		log:      log,
	}
}

// CheckCanLaunch refuses a bot launch when the organization has no positive
// balance. This is the only place credits gate anything; a run in progress is
// never cut off and its debit may overdraw.
func (s *BillingService) CheckCanLaunch(ctx context.Context, orgID uuid.UUID) error {
	org, err := s.credits.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org.Centicredits <= 0 {
		return fmt.Errorf("%w: organization %s has %d centicredits", models.ErrInsufficientCredits, orgID, org.Centicredits)
	}
	return nil
}

// FinalizeBot debits a finished bot's runtime exactly once. Zero-cost runs
// (no heartbeats) get no ledger row but still flip the billed flag so the
// sweep stops picking them up.
func (s *BillingService) FinalizeBot(ctx context.Context, bot *models.Bot) error {
	cost := models.RuntimeCostCenticredits(bot.FirstHeartbeatTS, bot.LastHeartbeatTS)
	if cost == 0 {
		_, err := s.bots.MarkBilled(ctx, bot.ID)
		return err
	}

	project, err := s.projects.GetByID(ctx, bot.ProjectID)
	if err != nil {
		return err
	}

	desc := fmt.Sprintf("bot runtime usage %s", bot.ObjectID)
	ct, created, err := s.credits.CreateBotUsageTransaction(ctx, project.OrganizationID, bot.ID, -cost, &desc)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	s.log.Info("bot runtime billed",
		zap.String("bot_id", bot.ID.String()),
		zap.Int64("centicredits", cost),
		zap.Int64("balance_after", ct.CenticreditsAfter))
	return nil
}

// FinalizeUnbilled sweeps terminal bots the inline path missed, for example
// after an api crash between transition and debit. Returns how many bots were
// processed.
func (s *BillingService) FinalizeUnbilled(ctx context.Context, limit int) (int, error) {
	bots, err := s.bots.ListUnbilledTerminal(ctx, limit)
	if err != nil {
		return 0, err
	}
	for i := range bots {
		if err := s.FinalizeBot(ctx, &bots[i]); err != nil {
			s.log.Error("failed to finalize bot billing",
				zap.String("bot_id", bots[i].ID.String()), zap.Error(err))
		}
	}
	return len(bots), nil
}

// AddCredits records a top-up. The payment reference is opaque; charging the
// payment provider happens elsewhere.
func (s *BillingService) AddCredits(ctx context.Context, orgID uuid.UUID, centicredits int64, paymentRef string) (*models.CreditTransaction, error) {
	if centicredits <= 0 {
		return nil, fmt.Errorf("top-up must be positive, got %d", centicredits)
	}
	desc := "credit top-up"
	return s.credits.CreateTransaction(ctx, orgID, centicredits, nil, nil, &paymentRef, &desc)
}

// CreateAdjustment records a manual correction referencing the transaction it
// corrects. The parent row is never modified.
func (s *BillingService) CreateAdjustment(ctx context.Context, orgID uuid.UUID, centicredits int64, parentID uuid.UUID, description string) (*models.CreditTransaction, error) {
	return s.credits.CreateTransaction(ctx, orgID, centicredits, nil, &parentID, nil, &description)
}
