package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meetingbots/backend/internal/models"
)

type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

func (r *CreditRepo) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, centicredits, created_at
		FROM organizations WHERE id = $1
	`, id).Scan(&org.ID, &org.Name, &org.Centicredits, &org.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// CreateTransaction appends a ledger row and moves the organization balance in
// one transaction. The row lock on organizations serializes concurrent writers
// so after == before + delta holds across the whole ledger.
func (r *CreditRepo) CreateTransaction(ctx context.Context, orgID uuid.UUID, delta int64, botID, parentID *uuid.UUID, paymentRef, description *string) (*models.CreditTransaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var before int64
	if err := tx.QueryRow(ctx, `
		SELECT centicredits FROM organizations WHERE id = $1 FOR UPDATE
	`, orgID).Scan(&before); err != nil {
		return nil, err
	}

	ct := models.NewCreditTransaction(orgID, before, delta, botID, parentID, description)
	ct.PaymentReference = paymentRef

	if _, err := tx.Exec(ctx, `
		UPDATE organizations SET centicredits = $2 WHERE id = $1
	`, orgID, ct.CenticreditsAfter); err != nil {
		return nil, err
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO credit_transactions
			(id, object_id, organization_id, bot_id, centicredits_before, centicredits_after,
			 centicredits_delta, parent_transaction_id, payment_reference, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, ct.ID, ct.ObjectID, ct.OrganizationID, ct.BotID, ct.CenticreditsBefore, ct.CenticreditsAfter,
		ct.CenticreditsDelta, ct.ParentTransactionID, ct.PaymentReference, ct.Description).
		Scan(&ct.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ct, nil
}

// CreateBotUsageTransaction debits a finished bot's runtime cost and flips its
// billed flag atomically. Returns (nil, false, nil) when the bot was already
// billed, which makes the end-of-run debit idempotent under worker races.
// Overdraft is allowed here: the run already happened.
func (r *CreditRepo) CreateBotUsageTransaction(ctx context.Context, orgID, botID uuid.UUID, delta int64, description *string) (*models.CreditTransaction, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE bots SET billed = true, updated_at = now()
		WHERE id = $1 AND billed = false
	`, botID)
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() == 0 {
		return nil, false, nil
	}

	var before int64
	if err := tx.QueryRow(ctx, `
		SELECT centicredits FROM organizations WHERE id = $1 FOR UPDATE
	`, orgID).Scan(&before); err != nil {
		return nil, false, err
	}

	ct := models.NewCreditTransaction(orgID, before, delta, &botID, nil, description)

	if _, err := tx.Exec(ctx, `
		UPDATE organizations SET centicredits = $2 WHERE id = $1
	`, orgID, ct.CenticreditsAfter); err != nil {
		return nil, false, err
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO credit_transactions
			(id, object_id, organization_id, bot_id, centicredits_before, centicredits_after,
			 centicredits_delta, parent_transaction_id, payment_reference, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, ct.ID, ct.ObjectID, ct.OrganizationID, ct.BotID, ct.CenticreditsBefore, ct.CenticreditsAfter,
		ct.CenticreditsDelta, ct.ParentTransactionID, ct.PaymentReference, ct.Description).
		Scan(&ct.CreatedAt); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return ct, true, nil
}

func (r *CreditRepo) ListTransactions(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, object_id, organization_id, bot_id, centicredits_before, centicredits_after,
		       centicredits_delta, parent_transaction_id, payment_reference, description, created_at
		FROM credit_transactions
		WHERE organization_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.CreditTransaction
	for rows.Next() {
		var ct models.CreditTransaction
		if err := rows.Scan(&ct.ID, &ct.ObjectID, &ct.OrganizationID, &ct.BotID,
			&ct.CenticreditsBefore, &ct.CenticreditsAfter, &ct.CenticreditsDelta,
			&ct.ParentTransactionID, &ct.PaymentReference, &ct.Description, &ct.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, ct)
	}
	return txs, rows.Err()
}

func (r *CreditRepo) GetTransaction(ctx context.Context, id uuid.UUID) (*models.CreditTransaction, error) {
	var ct models.CreditTransaction
	err := r.pool.QueryRow(ctx, `
		SELECT id, object_id, organization_id, bot_id, centicredits_before, centicredits_after,
		       centicredits_delta, parent_transaction_id, payment_reference, description, created_at
		FROM credit_transactions WHERE id = $1
	`, id).Scan(&ct.ID, &ct.ObjectID, &ct.OrganizationID, &ct.BotID,
		&ct.CenticreditsBefore, &ct.CenticreditsAfter, &ct.CenticreditsDelta,
		&ct.ParentTransactionID, &ct.PaymentReference, &ct.Description, &ct.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ct, nil
}
