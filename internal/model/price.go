package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FuelPrice is one entry in the append-only price history of a station.
// The active price for a fuel type at time T is the record with the latest
// EffectiveDate <= T. Records are never updated or deleted.
type FuelPrice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StationID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_prices_station_fuel"`
	FuelType      FuelType        `gorm:"type:varchar(20);not null;index:idx_prices_station_fuel"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	EffectiveDate time.Time       `gorm:"not null;index"`
	CreatedAt     time.Time
}

// PriceSnapshot is the fuel-type → unit-price mapping frozen onto a shift at
// open time, so later price changes never alter a shift's revenue.
type PriceSnapshot map[FuelType]decimal.Decimal
