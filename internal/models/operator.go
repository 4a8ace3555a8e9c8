package models

import (
	"time"

	"github.com/google/uuid"
)

// Operator is a staff account allowed to ingest documents.
type Operator struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
