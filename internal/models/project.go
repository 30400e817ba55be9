package models

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID             uuid.UUID `json:"id"`
	ObjectID       string    `json:"object_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	IsDeleted      bool      `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
