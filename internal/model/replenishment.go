package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Replenishment request statuses. COMPLETED is reached implicitly when the
// ordered delivery completes.
const (
	ReplenishmentDraft     = "DRAFT"
	ReplenishmentSubmitted = "SUBMITTED"
	ReplenishmentValidated = "VALIDATED"
	ReplenishmentOrdered   = "ORDERED"
	ReplenishmentCompleted = "COMPLETED"
)

// ReplenishmentRequest is a station's ask to refill one tank. The ullage gate
// (requested ≤ capacity − currentLevel) is checked at submission time, not at
// draft creation, because the tank level moves between the two.
type ReplenishmentRequest struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StationID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	TankID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	RequestedVolume decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status          string          `gorm:"type:varchar(15);not null;default:'DRAFT'"`
	RequestedByID   uuid.UUID       `gorm:"type:uuid;not null"`
	SubmittedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
