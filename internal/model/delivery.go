package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Delivery statuses.
const (
	DeliveryPending    = "PENDING"
	DeliveryInProgress = "IN_PROGRESS"
	DeliveryCompleted  = "COMPLETED"
)

// FuelDelivery is one truck delivery against a bill-of-lading number. The BL
// number is globally unique at the storage layer — a duplicate submission is
// rejected by the constraint, not by a check-then-insert.
type FuelDelivery struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StationID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	BLNumber    string          `gorm:"column:bl_number;uniqueIndex;not null"`
	Supplier    string          `gorm:"not null"`
	BLVolume    decimal.Decimal `gorm:"column:bl_volume;type:decimal(12,2);not null"`
	Status      string          `gorm:"type:varchar(15);not null;default:'PENDING'"`
	StartedAt   *time.Time
	CompletedAt *time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Compartments []DeliveryCompartment `gorm:"foreignKey:DeliveryID"`
}

// DeliveryCompartment is one truck compartment emptied into one tank.
// Opening dips are snapshotted from the tank at start; closing dips come with
// the complete call. ReceivedVolume = closing − opening.
//
// VarianceFlagged marks |received − blVolume| / blVolume beyond the 0.5%
// tolerance. The flag never blocks completion — it feeds the alert queue.
type DeliveryCompartment struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DeliveryID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	TankID          uuid.UUID        `gorm:"type:uuid;not null;index"`
	BLVolume        decimal.Decimal  `gorm:"column:bl_volume;type:decimal(12,2);not null"`
	OpeningDip      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ClosingDip      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ReceivedVolume  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	VariancePct     *decimal.Decimal `gorm:"type:decimal(6,2)"`
	VarianceFlagged bool             `gorm:"not null;default:false"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
