package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateDeliveryRequest struct {
	StationID string          `json:"station_id" validate:"required,uuid"`
	BLNumber  string          `json:"bl_number"  validate:"required,min=3"`
	Supplier  string          `json:"supplier"   validate:"required"`
	BLVolume  decimal.Decimal `json:"bl_volume"  validate:"required,gt=0"`
}

type AddCompartmentRequest struct {
	TankID   string          `json:"tank_id"   validate:"required,uuid"`
	BLVolume decimal.Decimal `json:"bl_volume" validate:"required,gt=0"`
}

// CompleteDeliveryRequest carries the closing dip per compartment id.
type CompleteDeliveryRequest struct {
	ClosingDips map[string]decimal.Decimal `json:"closing_dips" validate:"required,min=1"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CompartmentResponse struct {
	ID              string           `json:"id"`
	TankID          string           `json:"tank_id"`
	BLVolume        decimal.Decimal  `json:"bl_volume"`
	OpeningDip      *decimal.Decimal `json:"opening_dip"`
	ClosingDip      *decimal.Decimal `json:"closing_dip"`
	ReceivedVolume  *decimal.Decimal `json:"received_volume"`
	VariancePct     *decimal.Decimal `json:"variance_pct"`
	VarianceFlagged bool             `json:"variance_flagged"`
}

type DeliveryResponse struct {
	ID           string                `json:"id"`
	StationID    string                `json:"station_id"`
	BLNumber     string                `json:"bl_number"`
	Supplier     string                `json:"supplier"`
	BLVolume     decimal.Decimal       `json:"bl_volume"`
	Status       string                `json:"status"`
	StartedAt    *string               `json:"started_at"`
	CompletedAt  *string               `json:"completed_at"`
	Compartments []CompartmentResponse `json:"compartments"`
}
