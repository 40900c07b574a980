package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Shift statuses. CLOSED and LOCKED are terminal for the ordinary flow —
// no transition ever returns a shift to OPEN.
const (
	ShiftOpen   = "OPEN"
	ShiftClosed = "CLOSED"
	ShiftLocked = "LOCKED"
)

// Shift types. One station runs at most two shifts per date.
const (
	ShiftMorning = "MORNING"
	ShiftEvening = "EVENING"
)

// Shift is one operating period of a station. The (station, date, type)
// triple is unique at the storage layer so two concurrent opens cannot both
// succeed.
//
// All Cash* / *Variance fields stay null until the close transaction writes
// them together with the CLOSED status.
type Shift struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_shift_station_date_type,priority:1"`
	ShiftDate time.Time `gorm:"type:date;not null;uniqueIndex:ux_shift_station_date_type,priority:2"`
	ShiftType string    `gorm:"type:varchar(10);not null;uniqueIndex:ux_shift_station_date_type,priority:3"`
	Status    string    `gorm:"type:varchar(10);not null;default:'OPEN';index"`

	// PriceSnapshot freezes the active price per fuel type at open time.
	PriceSnapshot PriceSnapshot `gorm:"serializer:json;not null"`

	TotalRevenue    *decimal.Decimal `gorm:"type:decimal(14,2)"`
	TheoreticalCash *decimal.Decimal `gorm:"type:decimal(14,2)"`
	CashCounted     *decimal.Decimal `gorm:"type:decimal(14,2)"`
	CardAmount      *decimal.Decimal `gorm:"type:decimal(14,2)"`
	ExpensesAmount  *decimal.Decimal `gorm:"type:decimal(14,2)"`
	CashVariance    *decimal.Decimal `gorm:"type:decimal(14,2)"`
	StockVariance   *decimal.Decimal `gorm:"type:decimal(14,2)"`
	Justification   *string

	OpenedByID uuid.UUID  `gorm:"type:uuid;not null"`
	ClosedByID *uuid.UUID `gorm:"type:uuid"`
	OpenedAt   time.Time  `gorm:"not null"`
	ClosedAt   *time.Time

	Sales    []Sale    `gorm:"foreignKey:ShiftID"`
	TankDips []TankDip `gorm:"foreignKey:ShiftID"`
}

// Sale is the per-nozzle meter record of a shift. Rows are created at open
// with the opening index copied from the nozzle; closing index, volume and
// revenue are written once by the close transaction.
//
// UnitPrice is the per-row fallback used when the shift snapshot has no entry
// for the nozzle's fuel type.
type Sale struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ShiftID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	NozzleID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	TankID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	FuelType     FuelType         `gorm:"type:varchar(20);not null"`
	OpeningIndex decimal.Decimal  `gorm:"type:decimal(14,2);not null"`
	ClosingIndex *decimal.Decimal `gorm:"type:decimal(14,2)"`
	VolumeSold   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	UnitPrice    decimal.Decimal  `gorm:"type:decimal(10,2);not null"`
	Revenue      *decimal.Decimal `gorm:"type:decimal(14,2)"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TankDip is the per-tank stock record of a shift. TheoreticalStock and
// StockVariance are the core loss-detection signals:
//
//	theoretical = opening − Σ volumeSold(tank) + Σ receivedDuringShift(tank)
//	variance    = closing − theoretical
//
// Negative variance is a shortage (possible leak or theft); positive is a
// measurement surplus. Magnitude is never an error at this layer.
type TankDip struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ShiftID          uuid.UUID        `gorm:"type:uuid;not null;index"`
	TankID           uuid.UUID        `gorm:"type:uuid;not null;index"`
	OpeningLevel     decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	ClosingLevel     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TheoreticalStock *decimal.Decimal `gorm:"type:decimal(12,2)"`
	StockVariance    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
