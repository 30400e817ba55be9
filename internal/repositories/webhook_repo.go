package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meetingbots/backend/internal/models"
)

type WebhookRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookRepo(pool *pgxpool.Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

// --- Secrets ---

// RotateSecret deactivates every secret for the project and installs a fresh
// one in a single transaction, keeping the at-most-one-active invariant.
func (r *WebhookRepo) RotateSecret(ctx context.Context, projectID uuid.UUID, secret string) (*models.WebhookSecret, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE webhook_secrets SET is_active = false
		WHERE project_id = $1 AND is_active = true
	`, projectID); err != nil {
		return nil, err
	}

	s := &models.WebhookSecret{
		ObjectID:  models.NewObjectID("whs"),
		ProjectID: projectID,
		Secret:    secret,
		IsActive:  true,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO webhook_secrets (object_id, project_id, secret, is_active)
		VALUES ($1, $2, $3, true)
		RETURNING id, created_at
	`, s.ObjectID, s.ProjectID, s.Secret).Scan(&s.ID, &s.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// GetActiveSecret resolves the project's current signing secret; deliveries
// always sign with this one, never with a secret pinned at enqueue time.
func (r *WebhookRepo) GetActiveSecret(ctx context.Context, projectID uuid.UUID) (*models.WebhookSecret, error) {
	var s models.WebhookSecret
	err := r.pool.QueryRow(ctx, `
		SELECT id, object_id, project_id, secret, is_active, created_at
		FROM webhook_secrets
		WHERE project_id = $1 AND is_active = true
		ORDER BY created_at DESC LIMIT 1
	`, projectID).Scan(&s.ID, &s.ObjectID, &s.ProjectID, &s.Secret, &s.IsActive, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// --- Subscriptions ---

func (r *WebhookRepo) CreateSubscription(ctx context.Context, s *models.WebhookSubscription) error {
	if s.ObjectID == "" {
		s.ObjectID = models.NewObjectID("whs")
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO webhook_subscriptions (object_id, project_id, bot_id, url, trigger_types, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, s.ObjectID, s.ProjectID, s.BotID, s.URL, s.TriggerTypes, s.IsActive).Scan(&s.ID, &s.CreatedAt)
}

func (r *WebhookRepo) GetSubscription(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
	var s models.WebhookSubscription
	err := r.pool.QueryRow(ctx, `
		SELECT id, object_id, project_id, bot_id, url, trigger_types, is_active, created_at
		FROM webhook_subscriptions WHERE id = $1
	`, id).Scan(&s.ID, &s.ObjectID, &s.ProjectID, &s.BotID, &s.URL, &s.TriggerTypes, &s.IsActive, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *WebhookRepo) ListSubscriptions(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, object_id, project_id, bot_id, url, trigger_types, is_active, created_at
		FROM webhook_subscriptions WHERE project_id = $1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.WebhookSubscription
	for rows.Next() {
		var s models.WebhookSubscription
		if err := rows.Scan(&s.ID, &s.ObjectID, &s.ProjectID, &s.BotID, &s.URL, &s.TriggerTypes, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *WebhookRepo) DeactivateSubscription(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE webhook_subscriptions SET is_active = false WHERE id = $1
	`, id)
	return err
}

// ListMatching returns active subscriptions covering a trigger for a project,
// either project-wide (bot_id null) or scoped to the originating bot.
func (r *WebhookRepo) ListMatching(ctx context.Context, projectID uuid.UUID, botID *uuid.UUID, trigger string) ([]models.WebhookSubscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, object_id, project_id, bot_id, url, trigger_types, is_active, created_at
		FROM webhook_subscriptions
		WHERE project_id = $1
		  AND is_active = true
		  AND trigger_types @> to_jsonb(ARRAY[$2::text])
		  AND (bot_id IS NULL OR bot_id = $3)
	`, projectID, trigger, botID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.WebhookSubscription
	for rows.Next() {
		var s models.WebhookSubscription
		if err := rows.Scan(&s.ID, &s.ObjectID, &s.ProjectID, &s.BotID, &s.URL, &s.TriggerTypes, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// --- Delivery attempts ---

const attemptColumns = `id, object_id, webhook_subscription_id, bot_id, root_attempt_id, trigger_type,
	       status, payload, attempt_number, http_status_code, response_body, error_message,
	       next_retry_at, completed_at, created_at`

func (r *WebhookRepo) CreateAttempt(ctx context.Context, a *models.WebhookDeliveryAttempt) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO webhook_delivery_attempts
			(id, object_id, webhook_subscription_id, bot_id, root_attempt_id, trigger_type, status, payload, attempt_number, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, a.ID, a.ObjectID, a.SubscriptionID, a.BotID, a.RootAttemptID, a.TriggerType,
		a.Status, a.Payload, a.AttemptNumber, a.NextRetryAt).Scan(&a.CreatedAt)
}

// DueDelivery pairs a claimed attempt with its delivery target.
type DueDelivery struct {
	Attempt   models.WebhookDeliveryAttempt
	URL       string
	ProjectID uuid.UUID
}

// ClaimDue atomically claims pending attempts whose eligibility time has
// passed. SKIP LOCKED keeps competing workers off the same rows; a chain has
// at most one pending row, so claimed chains never run concurrently. Rows
// claimed longer than five minutes ago are considered abandoned and reclaimed.
func (r *WebhookRepo) ClaimDue(ctx context.Context, limit int) ([]DueDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		WITH claimed AS (
			SELECT id FROM webhook_delivery_attempts
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= now())
			  AND (claimed_at IS NULL OR claimed_at < now() - interval '5 minutes')
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE webhook_delivery_attempts a
		SET claimed_at = now()
		FROM claimed, webhook_subscriptions s
		WHERE a.id = claimed.id AND s.id = a.webhook_subscription_id
		RETURNING a.id, a.object_id, a.webhook_subscription_id, a.bot_id, a.root_attempt_id, a.trigger_type,
		          a.status, a.payload, a.attempt_number, a.http_status_code, a.response_body, a.error_message,
		          a.next_retry_at, a.completed_at, a.created_at, s.url, s.project_id
	`, models.DeliveryStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []DueDelivery
	for rows.Next() {
		var d DueDelivery
		a := &d.Attempt
		if err := rows.Scan(&a.ID, &a.ObjectID, &a.SubscriptionID, &a.BotID, &a.RootAttemptID, &a.TriggerType,
			&a.Status, &a.Payload, &a.AttemptNumber, &a.HTTPStatusCode, &a.ResponseBody, &a.ErrorMessage,
			&a.NextRetryAt, &a.CompletedAt, &a.CreatedAt, &d.URL, &d.ProjectID); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

// MarkSuccess finalizes an attempt after a 2xx response. The chain ends here.
func (r *WebhookRepo) MarkSuccess(ctx context.Context, id uuid.UUID, httpStatus int, responseBody string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE webhook_delivery_attempts
		SET status = $2, http_status_code = $3, response_body = $4,
		    next_retry_at = NULL, completed_at = now()
		WHERE id = $1
	`, id, models.DeliveryStatusSuccess, httpStatus, responseBody)
	return err
}

// MarkFailure records a failed attempt; scheduling of the follow-up row is the
// delivery engine's call.
func (r *WebhookRepo) MarkFailure(ctx context.Context, id uuid.UUID, httpStatus *int, responseBody *string, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE webhook_delivery_attempts
		SET status = $2, http_status_code = $3, response_body = $4, error_message = $5,
		    next_retry_at = NULL, completed_at = now()
		WHERE id = $1
	`, id, models.DeliveryStatusFailure, httpStatus, responseBody, errMsg)
	return err
}

func (r *WebhookRepo) ListAttempts(ctx context.Context, subscriptionID uuid.UUID, limit, offset int) ([]models.WebhookDeliveryAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM webhook_delivery_attempts
		WHERE webhook_subscription_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, subscriptionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []models.WebhookDeliveryAttempt
	for rows.Next() {
		var a models.WebhookDeliveryAttempt
		if err := rows.Scan(&a.ID, &a.ObjectID, &a.SubscriptionID, &a.BotID, &a.RootAttemptID, &a.TriggerType,
			&a.Status, &a.Payload, &a.AttemptNumber, &a.HTTPStatusCode, &a.ResponseBody, &a.ErrorMessage,
			&a.NextRetryAt, &a.CompletedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListChain returns a full delivery chain in attempt order.
func (r *WebhookRepo) ListChain(ctx context.Context, rootAttemptID uuid.UUID) ([]models.WebhookDeliveryAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM webhook_delivery_attempts
		WHERE root_attempt_id = $1
		ORDER BY attempt_number ASC
	`, rootAttemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []models.WebhookDeliveryAttempt
	for rows.Next() {
		var a models.WebhookDeliveryAttempt
		if err := rows.Scan(&a.ID, &a.ObjectID, &a.SubscriptionID, &a.BotID, &a.RootAttemptID, &a.TriggerType,
			&a.Status, &a.Payload, &a.AttemptNumber, &a.HTTPStatusCode, &a.ResponseBody, &a.ErrorMessage,
			&a.NextRetryAt, &a.CompletedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
