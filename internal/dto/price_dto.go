package dto

import "github.com/shopspring/decimal"

type CreatePriceRequest struct {
	StationID     string          `json:"station_id"     validate:"required,uuid"`
	FuelType      string          `json:"fuel_type"      validate:"required,oneof=gasoil super diesel"`
	Price         decimal.Decimal `json:"price"          validate:"required,gt=0"`
	EffectiveDate string          `json:"effective_date" validate:"required"`
}

type PriceResponse struct {
	ID            string          `json:"id"`
	StationID     string          `json:"station_id"`
	FuelType      string          `json:"fuel_type"`
	Price         decimal.Decimal `json:"price"`
	EffectiveDate string          `json:"effective_date"`
}

// PriceBoardResponse is the currently active price per fuel type — the same
// mapping a shift open freezes into its snapshot.
type PriceBoardResponse struct {
	StationID string                     `json:"station_id"`
	Prices    map[string]decimal.Decimal `json:"prices"`
	AsOf      string                     `json:"as_of"`
}
