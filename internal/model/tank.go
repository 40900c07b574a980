package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FuelType identifies the product stored in a tank.
type FuelType string

const (
	FuelGasoil FuelType = "gasoil"
	FuelSuper  FuelType = "super"
	FuelDiesel FuelType = "diesel"
)

// Tank is a physical underground tank. CurrentLevel is rewritten by shift
// closes (last closing dip) and delivery completions (closing dip), never
// incrementally adjusted.
//
// Version is the optimistic-lock counter: every level write goes through a
// compare-and-swap on it, so a delivery completing mid shift-close cannot
// silently overwrite the other write.
type Tank struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StationID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name         string          `gorm:"not null"`
	FuelType     FuelType        `gorm:"type:varchar(20);not null"`
	Capacity     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CurrentLevel decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Version      int64           `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Station *Station `gorm:"foreignKey:StationID"`
}

// Ullage returns the empty volume remaining (capacity − current level).
func (t *Tank) Ullage() decimal.Decimal {
	return t.Capacity.Sub(t.CurrentLevel)
}

// Pump is a dispenser unit on the forecourt.
type Pump struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StationID uuid.UUID `gorm:"type:uuid;not null;index"`
	Number    int       `gorm:"not null"`
	CreatedAt time.Time
}

// Nozzle is one hose on a pump, drawing from exactly one tank. CurrentIndex
// is the cumulative meter reading; it only ever moves forward (a shift close
// advances it to the closing index).
type Nozzle struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PumpID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	TankID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Number       int             `gorm:"not null"`
	CurrentIndex decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Pump *Pump `gorm:"foreignKey:PumpID"`
	Tank *Tank `gorm:"foreignKey:TankID"`
}
