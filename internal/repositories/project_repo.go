package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meetingbots/backend/internal/models"
)

type ProjectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

func (r *ProjectRepo) Create(ctx context.Context, p *models.Project) error {
	if p.ObjectID == "" {
		p.ObjectID = models.NewObjectID("proj")
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO projects (object_id, organization_id, name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, p.ObjectID, p.OrganizationID, p.Name).Scan(&p.ID, &p.CreatedAt)
}

func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	err := r.pool.QueryRow(ctx, `
		SELECT id, object_id, organization_id, name, is_deleted, created_at
		FROM projects WHERE id = $1 AND is_deleted = false
	`, id).Scan(&p.ID, &p.ObjectID, &p.OrganizationID, &p.Name, &p.IsDeleted, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, object_id, organization_id, name, is_deleted, created_at
		FROM projects WHERE organization_id = $1 AND is_deleted = false
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.ObjectID, &p.OrganizationID, &p.Name, &p.IsDeleted, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
