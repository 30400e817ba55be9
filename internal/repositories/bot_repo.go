package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meetingbots/backend/internal/models"
)

type BotRepo struct {
	pool *pgxpool.Pool
}

func NewBotRepo(pool *pgxpool.Pool) *BotRepo {
	return &BotRepo{pool: pool}
}

const botColumns = `id, object_id, project_id, name, meeting_url, meeting_uuid, state, settings,
	       first_heartbeat_ts, last_heartbeat_ts, join_at, billed, is_deleted, created_at, updated_at`

func scanBot(row interface{ Scan(dest ...any) error }) (*models.Bot, error) {
	var b models.Bot
	err := row.Scan(&b.ID, &b.ObjectID, &b.ProjectID, &b.Name, &b.MeetingURL, &b.MeetingUUID,
		&b.State, &b.Settings, &b.FirstHeartbeatTS, &b.LastHeartbeatTS, &b.JoinAt,
		&b.Billed, &b.IsDeleted, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BotRepo) Create(ctx context.Context, b *models.Bot) error {
	if b.ObjectID == "" {
		b.ObjectID = models.NewObjectID("bot")
	}
	if b.Settings == nil {
		b.Settings = map[string]any{}
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO bots (object_id, project_id, name, meeting_url, meeting_uuid, state, settings, join_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, b.ObjectID, b.ProjectID, b.Name, b.MeetingURL, b.MeetingUUID, b.State, b.Settings, b.JoinAt).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *BotRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Bot, error) {
	return scanBot(r.pool.QueryRow(ctx, `
		SELECT `+botColumns+`
		FROM bots WHERE id = $1 AND is_deleted = false
	`, id))
}

func (r *BotRepo) ListByProject(ctx context.Context, projectID uuid.UUID, state *string, limit, offset int) ([]models.Bot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+botColumns+`
		FROM bots
		WHERE project_id = $1 AND is_deleted = false AND ($2::text IS NULL OR state = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, projectID, state, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []models.Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, *b)
	}
	return bots, rows.Err()
}

func (r *BotRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE bots SET is_deleted = true, updated_at = now()
		WHERE id = $1 AND is_deleted = false
	`, id)
	return err
}

// UpdateHeartbeat records a liveness signal. Single statement, no event row,
// no state machine involvement.
func (r *BotRepo) UpdateHeartbeat(ctx context.Context, id uuid.UUID, ts int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE bots
		SET last_heartbeat_ts = $2,
		    first_heartbeat_ts = COALESCE(first_heartbeat_ts, $2),
		    updated_at = now()
		WHERE id = $1 AND is_deleted = false
	`, id, ts)
	return err
}

// ApplyTransition validates and applies one state machine edge under a per-bot
// advisory lock, appending the immutable BotEvent row in the same transaction.
// On an invalid edge nothing is written and models.ErrInvalidTransition is
// returned.
func (r *BotRepo) ApplyTransition(ctx context.Context, botID uuid.UUID, eventType string, subType *string, metadata map[string]any) (*models.Bot, *models.BotEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	// Serializes racing control messages for the same bot.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, botID); err != nil {
		return nil, nil, err
	}

	bot, err := scanBot(tx.QueryRow(ctx, `
		SELECT `+botColumns+`
		FROM bots WHERE id = $1 AND is_deleted = false
	`, botID))
	if err != nil {
		return nil, nil, err
	}

	newState, ok := models.NextState(bot.State, eventType)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s + %s", models.ErrInvalidTransition, bot.State, eventType)
	}

	oldState := bot.State
	if _, err := tx.Exec(ctx, `
		UPDATE bots SET state = $2, updated_at = now() WHERE id = $1
	`, botID, newState); err != nil {
		return nil, nil, err
	}
	bot.State = newState

	if metadata == nil {
		metadata = map[string]any{}
	}
	event := &models.BotEvent{
		ObjectID:     models.NewObjectID("bevt"),
		BotID:        botID,
		OldState:     oldState,
		NewState:     newState,
		EventType:    eventType,
		EventSubType: subType,
		Metadata:     metadata,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO bot_events (object_id, bot_id, old_state, new_state, event_type, event_sub_type, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, event.ObjectID, event.BotID, event.OldState, event.NewState, event.EventType, event.EventSubType, event.Metadata).
		Scan(&event.ID, &event.CreatedAt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return bot, event, nil
}

func (r *BotRepo) ListEvents(ctx context.Context, botID uuid.UUID, limit int) ([]models.BotEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, object_id, bot_id, old_state, new_state, event_type, event_sub_type, metadata, created_at
		FROM bot_events WHERE bot_id = $1
		ORDER BY created_at ASC LIMIT $2
	`, botID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.BotEvent
	for rows.Next() {
		var e models.BotEvent
		if err := rows.Scan(&e.ID, &e.ObjectID, &e.BotID, &e.OldState, &e.NewState,
			&e.EventType, &e.EventSubType, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListStale returns active bots whose last heartbeat is older than the cutoff.
func (r *BotRepo) ListStale(ctx context.Context, cutoff int64, limit int) ([]models.Bot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+botColumns+`
		FROM bots
		WHERE is_deleted = false
		  AND state = ANY($1)
		  AND last_heartbeat_ts IS NOT NULL AND last_heartbeat_ts < $2
		ORDER BY last_heartbeat_ts ASC LIMIT $3
	`, activeStates(), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBots(rows)
}

// ListDueScheduled returns scheduled bots whose join_at has passed.
func (r *BotRepo) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]models.Bot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+botColumns+`
		FROM bots
		WHERE is_deleted = false AND state = $1 AND join_at IS NOT NULL AND join_at <= $2
		ORDER BY join_at ASC LIMIT $3
	`, models.BotStateScheduled, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBots(rows)
}

// ListUnbilledTerminal returns finished bots whose runtime has not been
// debited yet.
func (r *BotRepo) ListUnbilledTerminal(ctx context.Context, limit int) ([]models.Bot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+botColumns+`
		FROM bots
		WHERE is_deleted = false AND billed = false AND state = ANY($1)
		ORDER BY updated_at ASC LIMIT $2
	`, []string{models.BotStateEnded, models.BotStateFatalError}, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBots(rows)
}

// MarkBilled flips the billed flag; returns false if it was already set.
func (r *BotRepo) MarkBilled(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bots SET billed = true, updated_at = now()
		WHERE id = $1 AND billed = false
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func activeStates() []string {
	return []string{
		models.BotStateJoining,
		models.BotStateWaitingRoom,
		models.BotStateJoinedNotRecording,
		models.BotStateJoinedRecording,
		models.BotStateJoinedRecordingPaused,
	}
}

func collectBots(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.Bot, error) {
	var bots []models.Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, *b)
	}
	return bots, rows.Err()
}
