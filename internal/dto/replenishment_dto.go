package dto

import "github.com/shopspring/decimal"

type CreateReplenishmentRequest struct {
	StationID       string          `json:"station_id"       validate:"required,uuid"`
	TankID          string          `json:"tank_id"          validate:"required,uuid"`
	RequestedVolume decimal.Decimal `json:"requested_volume" validate:"required,gt=0"`
}

type ReplenishmentResponse struct {
	ID              string          `json:"id"`
	StationID       string          `json:"station_id"`
	TankID          string          `json:"tank_id"`
	RequestedVolume decimal.Decimal `json:"requested_volume"`
	Status          string          `json:"status"`
	SubmittedAt     *string         `json:"submitted_at"`
	CreatedAt       string          `json:"created_at"`
}
